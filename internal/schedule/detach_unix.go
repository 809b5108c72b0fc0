//go:build unix

package schedule

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own session so it survives the parent's
// terminal going away.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
