// Package pty manages interactive shell sessions running on pseudo-terminals.
// A Manager spawns the user's login shell attached to a pty, registers it
// under a monotonically increasing numeric ID, and streams raw output through
// a stream.Emitter from a dedicated read-loop goroutine. Operations against
// an unknown or already-removed ID succeed as no-ops; this tolerance absorbs
// races between a kill and in-flight writes or resizes.
package pty

import (
	"fmt"
	"os"
	"os/exec"

	creackpty "github.com/creack/pty"
	"github.com/kballard/go-shellquote"

	"github.com/user/termpad/internal/registry"
	"github.com/user/termpad/internal/stream"
)

const defaultShell = "/bin/zsh"

// Manager tracks all live PTY sessions.
type Manager struct {
	// optional command line overriding $SHELL, parsed with shellquote
	shellOverride string

	sessions *registry.Registry[*Session]
}

// NewManager creates a Manager. shellOverride, when non-empty, is a command
// line (e.g. "bash --login") used instead of the environment's shell.
func NewManager(shellOverride string) *Manager {
	return &Manager{
		shellOverride: shellOverride,
		sessions:      registry.New[*Session](),
	}
}

// Create spawns a login shell on a new pty sized rows x cols and returns its
// session ID. The ID is registered and returned before the read loop can
// produce any output, so callers can correlate subsequent events with it.
// cwd selects the child's working directory; when empty the user's home
// directory is used, falling back to the inherited working directory. On
// error nothing is registered.
func (m *Manager) Create(rows, cols uint16, cwd string, em stream.Emitter) (uint32, error) {
	argv, err := m.shellArgv()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = resolveWorkDir(cwd)
	cmd.Env = childEnv()

	ptmx, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return 0, fmt.Errorf("pty: spawn %q: %w", argv[0], err)
	}

	sess := &Session{cmd: cmd, ptmx: ptmx}
	if cmd.Process != nil {
		sess.pid = cmd.Process.Pid
	}

	id := m.sessions.NextID()
	sess.id = id
	if err := m.sessions.Insert(id, sess); err != nil {
		sess.close()
		_ = cmd.Wait()
		return 0, err
	}

	go m.readLoop(sess, em)

	return id, nil
}

// Write sends bytes to the session's shell, retrying short writes until the
// whole sequence is on the pty. An unknown ID is a successful no-op.
func (m *Manager) Write(id uint32, data []byte) error {
	sess, ok := m.sessions.Get(id)
	if !ok {
		return nil
	}

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	for len(data) > 0 {
		n, err := sess.ptmx.Write(data)
		if err != nil {
			return fmt.Errorf("pty: write session %d: %w", id, err)
		}
		data = data[n:]
	}
	return nil
}

// Resize changes the pty dimensions. An unknown ID is a successful no-op.
func (m *Manager) Resize(id uint32, rows, cols uint16) error {
	sess, ok := m.sessions.Get(id)
	if !ok {
		return nil
	}
	if err := creackpty.Setsize(sess.ptmx, &creackpty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf("pty: resize session %d: %w", id, err)
	}
	return nil
}

// Kill removes the session and tears down its process and pty. The read
// loop notices the closed master on its next read and terminates itself;
// its own removal attempt then misses harmlessly. An unknown ID is a
// successful no-op.
func (m *Manager) Kill(id uint32) error {
	sess, ok := m.sessions.Remove(id)
	if !ok {
		return nil
	}
	sess.close()
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int { return m.sessions.Len() }

// Close kills every remaining session. Used at daemon shutdown.
func (m *Manager) Close() {
	for _, sess := range m.sessions.Drain() {
		sess.close()
	}
}

// shellArgv resolves the program to spawn: the configured override wins,
// otherwise $SHELL (default /bin/zsh) invoked as a login shell so the user's
// shell configuration is loaded.
func (m *Manager) shellArgv() ([]string, error) {
	if m.shellOverride != "" {
		argv, err := shellquote.Split(m.shellOverride)
		if err != nil {
			return nil, fmt.Errorf("pty: parse shell override %q: %w", m.shellOverride, err)
		}
		if len(argv) == 0 {
			return nil, fmt.Errorf("pty: empty shell override")
		}
		return argv, nil
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = defaultShell
	}
	return []string{shell, "-l"}, nil
}

// resolveWorkDir picks the child's working directory: caller-supplied cwd,
// else $HOME, else empty (inherit the daemon's own directory).
func resolveWorkDir(cwd string) string {
	if cwd != "" {
		return cwd
	}
	return os.Getenv("HOME")
}

// childEnv builds the child's environment as an explicit allow-list: a
// terminal type override plus HOME, USER, PATH, and LANG when set in the
// parent. Everything else is omitted so the shell sees a terminal-aware
// environment regardless of what launched the daemon.
func childEnv() []string {
	env := []string{"TERM=xterm-256color"}
	for _, key := range []string{"HOME", "USER", "PATH", "LANG"} {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	return env
}
