package pty

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/user/termpad/internal/stream"
)

const readChunkSize = 4096

// Session is one shell process attached to a pseudo-terminal. The ptmx file
// carries writes, resizes, and the read loop; the registry entry is the sole
// owner of the process/pty pair, so removal is the only release path.
type Session struct {
	id   uint32
	cmd  *exec.Cmd
	ptmx *os.File
	pid  int

	// serializes Write callers; the read loop never takes it
	writeMu sync.Mutex
}

// ID returns the session identifier.
func (s *Session) ID() uint32 { return s.id }

// PID returns the shell's OS process ID, or 0 if it was never recorded.
func (s *Session) PID() int { return s.pid }

// close terminates the child and releases the pty master. Best-effort and
// idempotent: a dead process or already-closed ptmx is ignored.
func (s *Session) close() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.ptmx.Close()
}

// readLoop blocks on fixed-size reads from the pty master and emits one
// Output event per successful read, preserving chunk boundaries and order.
// When the read ends for any reason the loop removes its own registry entry
// (a no-op if a kill got there first), reaps the child, and emits the
// session's single Exit event. Exit is always last and always follows
// removal, so a caller that sees it may assume the session is gone.
func (m *Manager) readLoop(s *Session, em stream.Emitter) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			em.Emit(stream.Event{Session: s.id, Type: stream.Output, Data: data})
		}
		if err != nil {
			if !cleanReadEnd(err) {
				em.Emit(stream.Event{Session: s.id, Type: stream.Error, Message: err.Error()})
			}
			break
		}
	}

	if sess, ok := m.sessions.Remove(s.id); ok {
		sess.close()
	}
	_ = s.cmd.Wait()

	em.Emit(stream.Event{Session: s.id, Type: stream.Exit})
}

// cleanReadEnd reports whether a read error means normal termination rather
// than a failure worth surfacing. EOF and "file already closed" are the
// obvious cases; Linux additionally returns EIO from the master once the
// slave side is gone.
func cleanReadEnd(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EIO)
}
