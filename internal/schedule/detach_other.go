//go:build !unix

package schedule

import "os/exec"

func detach(cmd *exec.Cmd) {}
