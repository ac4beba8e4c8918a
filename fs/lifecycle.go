package fs

// ProcessLifecycle is the contract a process-management layer built on top
// of this filesystem core would implement for halt/exit/exec/wait (§6).
// No such layer exists here — there is no process scheduler in this
// module, only the filesystem's view of one process' descriptor table —
// so this is a pure interface, not a stub with a body to fill in later.
type ProcessLifecycle interface {
	// Halt powers the system off; it never returns.
	Halt()
	// Exit records status and never returns to its caller.
	Exit(status int)
	// Exec spawns a child process running the executable at path,
	// returning its pid, or ok=false if the child could not be started.
	Exec(path string) (pid int, ok bool)
	// Wait blocks until the child pid exits, returning its exit status.
	// A pid that is not a child, or that has already been waited on,
	// reports ok=false.
	Wait(pid int) (status int, ok bool)
}
