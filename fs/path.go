package fs

import "strings"

// splitPath divides a path into a directory part and a final component,
// exactly mirroring pintos' div_part: a bare name with no slash at all
// yields hasDir=false (resolve against the caller's cwd), while a name
// that does contain a slash always yields hasDir=true, even when the
// directory part is empty (a single leading "/" divides to dir="",
// final=name — and an empty dir string resolves to root, not cwd).
func splitPath(name string) (dirPart string, hasDir bool, final string) {
	name = strings.TrimRight(name, "/")
	if name == "" {
		// the original was "/", or "", or all slashes: root itself, no
		// final component.
		return "", true, ""
	}
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return "", false, name
	}
	return name[:idx], true, name[idx+1:]
}
