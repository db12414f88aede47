package server

import (
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-ps"
)

var (
	// errAlreadyRunning indicates that another server process was found.
	errAlreadyRunning = errors.New("another pingbot server is already running")
	// errOwnProcessNotFound indicates the process table has no entry for this process.
	errOwnProcessNotFound = errors.New("own process not found")
)

// ensureSingleInstance fails when another process runs the same executable.
// Two servers would each own a State Actor and broadcast twice.
func ensureSingleInstance() error {
	processList, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	self, err := ownProcess(ps.FindProcess, os.Getpid())
	if err != nil {
		return err
	}

	if pid, found := otherInstance(processList, self.Executable(), self.Pid()); found {
		return fmt.Errorf("%w (pid %d)", errAlreadyRunning, pid)
	}

	return nil
}

// ownProcess looks up pid with find. A missing entry is errOwnProcessNotFound.
//
//nolint:ireturn // ps.Process is the library's own interface.
func ownProcess(find func(int) (ps.Process, error), pid int) (ps.Process, error) {
	self, err := find(pid)
	if err != nil {
		return nil, fmt.Errorf("find own process: %w", err)
	}

	if self == nil {
		return nil, fmt.Errorf("%w (pid %d)", errOwnProcessNotFound, pid)
	}

	return self, nil
}

// otherInstance returns the pid of a process named name other than self.
func otherInstance(processList []ps.Process, name string, self int) (int, bool) {
	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if process.Executable() == name {
			return process.Pid(), true
		}
	}

	return 0, false
}
