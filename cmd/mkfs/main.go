// Command mkfs formats a disk image with a fresh filesystem: an all-free
// sector bitmap and an empty root directory. Grounded on the teacher's
// cmd/mkfs/main.go for its flag-based CLI shape, adapted from minix's
// multi-region superblock layout to this spec's single free-map sector
// plus fixed-sector root directory (§6, do_format in original_source's
// filesys.c).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mcpads/pintos-filesys/device"
	"github.com/mcpads/pintos-filesys/fs"
)

func ferr(f string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, f, a...)
}

func main() {
	var filename string
	var sectors uint
	var help bool

	flag.StringVar(&filename, "file", "", "the disk image filename to create")
	flag.UintVar(&sectors, "sectors", 4096, "the size of the filesystem, in sectors")
	flag.BoolVar(&help, "help", false, "display usage")
	flag.Parse()

	if help || filename == "" {
		ferr("Usage: %s -file <image> [-sectors N]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	dev, err := device.CreateFile(filename, uint32(sectors))
	if err != nil {
		ferr("mkfs: couldn't create image file %q: %s\n", filename, err)
		os.Exit(1)
	}
	defer dev.Close()

	fmt.Printf("Formatting file system (%d sectors)...\n", sectors)
	fsys, err := fs.Format(dev, fs.Config{FlushInterval: 5 * time.Second})
	if err != nil {
		ferr("mkfs: format failed: %s\n", err)
		os.Exit(1)
	}
	fsys.Close()
	fmt.Println("done.")
}
