//go:build !unix

package extractor

import "os/exec"

func configureProcess(cmd *exec.Cmd) {}
