//go:build unix

package extractor

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the extractor in its own process group so that
// cancellation also kills anything it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
