//go:build windows

package process

import (
	"os/exec"
	"strconv"
)

// spawnCommand invokes the converter directly, there is no /bin/sh.
func spawnCommand(binary string) *exec.Cmd {
	return exec.Command(binary, "--read-args-from-stdin")
}

// killProcessGroup kills a process and all its children using taskkill.
// /F = force kill, /T = terminate child processes (tree kill).
func killProcessGroup(pid int) {
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
