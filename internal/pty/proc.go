package pty

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// Cwd returns the current working directory of the session's foreground
// process. The foreground process may differ from the shell itself while a
// command is running, so the process tree under the shell's pid is consulted
// first. The result is advisory: the query races against the process tree
// and its failure never affects session liveness.
func (m *Manager) Cwd(id uint32) (string, error) {
	sess, ok := m.sessions.Get(id)
	if !ok {
		return "", fmt.Errorf("pty: session %d not found", id)
	}
	if sess.pid <= 0 {
		return "", fmt.Errorf("pty: session %d has no recorded pid", id)
	}
	return processCwd(foregroundPID(sess.pid))
}

// foregroundPID finds the most recently spawned child of the shell via
// pgrep. With no children the shell's own pid is returned; this can report
// a stale directory when the shell has backgrounded everything, which
// matches the shell-pid fallback callers expect.
func foregroundPID(shellPID int) int {
	out, err := exec.Command("pgrep", "-P", strconv.Itoa(shellPID)).Output()
	if err != nil {
		return shellPID
	}

	pid := shellPID
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if child, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
			pid = child
		}
	}
	return pid
}

// processCwd resolves a pid's working directory through the OS process
// inspection facilities: the /proc symlink on Linux, lsof's file-descriptor
// table on Darwin.
func processCwd(pid int) (string, error) {
	switch runtime.GOOS {
	case "linux":
		path, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
		if err != nil {
			return "", fmt.Errorf("pty: cwd of pid %d: %w", pid, err)
		}
		return path, nil

	case "darwin":
		out, err := exec.Command("lsof", "-a", "-d", "cwd", "-p", strconv.Itoa(pid), "-Fn").Output()
		if err != nil {
			return "", fmt.Errorf("pty: lsof pid %d: %w", pid, err)
		}
		for _, line := range strings.Split(string(out), "\n") {
			if path, ok := strings.CutPrefix(line, "n"); ok {
				return path, nil
			}
		}
		return "", fmt.Errorf("pty: cwd of pid %d not in lsof output", pid)

	default:
		return "", fmt.Errorf("pty: cwd introspection unsupported on %s", runtime.GOOS)
	}
}
