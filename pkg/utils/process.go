package utils

import (
	"fmt"
	"os"
	"syscall"
)

// SendSignalToPIDFile sends a signal to the process identified by the PID file
func SendSignalToPIDFile(pidFile string, sig syscall.Signal) error {
	if pidFile == "" {
		return fmt.Errorf("PID file path is empty")
	}

	pid, err := NewPIDManager(pidFile).ReadPID()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("process not found: %w", err)
	}

	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}

	return nil
}

// ParseSignal maps a signal name from configuration to a syscall.Signal.
// Unknown names fall back to SIGHUP.
func ParseSignal(name string) syscall.Signal {
	switch name {
	case "SIGUSR1", "USR1":
		return syscall.SIGUSR1
	case "SIGUSR2", "USR2":
		return syscall.SIGUSR2
	default:
		return syscall.SIGHUP
	}
}
