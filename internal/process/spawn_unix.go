//go:build !windows

package process

import (
	"os/exec"
	"strings"
	"syscall"
)

// spawnCommand runs the converter through "sh -c '... | cat'".
//
// Piping stdout through cat switches the converter's stdio to pipe
// buffering; invoked directly it can stall while flushing the PDF on some
// platforms. Only the binary path appears on the command line, every
// conversion option is sent over stdin.
func spawnCommand(binary string) *exec.Cmd {
	script := shellQuote(binary) + " --quiet --read-args-from-stdin | cat"
	cmd := exec.Command("/bin/sh", "-c", script)
	// Own process group so a kill reaches sh, the converter and cat.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// killProcessGroup kills a process and all its children by sending SIGKILL
// to the process group (negative PID).
func killProcessGroup(pid int) {
	// Best-effort; Process.Kill is the fallback
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
