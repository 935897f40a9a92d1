//go:build !windows

package browser

import (
	"os/exec"
	"syscall"
)

// setProcessGroup 让浏览器及其子进程（渲染、GPU）处于同一进程组，退出时一起回收
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd, force bool) {
	if cmd.Process == nil {
		return
	}
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	_ = syscall.Kill(-cmd.Process.Pid, sig)
}
