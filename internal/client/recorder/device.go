package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// AudioDevice opens captures into files.
type AudioDevice interface {
	// Open configures the device to capture into path. It does not start
	// capturing.
	Open(path string) (Capture, error)
}

// Capture is one capture session bound to a file.
type Capture interface {
	// Start begins or resumes capturing.
	Start() error
	Pause() error
	// Reroute re-configures input after the active route went away.
	Reroute() error
	// Active is false once the host terminated the capture.
	Active() bool
	// LevelDB is the most recent input level in dBFS.
	LevelDB() float64
	// Close finalizes the file.
	Close() error
}

// FileDevice captures bytes from a source reader into the target file. Each
// Open asks NewSource for a fresh reader, such as a pipe from an encoder.
type FileDevice struct {
	NewSource func() (io.ReadCloser, error)
	ChunkSize int
}

func (d *FileDevice) Open(path string) (Capture, error) {
	if d.NewSource == nil {
		return nil, errors.New("no audio source configured")
	}
	src, err := d.NewSource()
	if err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	size := d.ChunkSize
	if size <= 0 {
		size = 3200
	}
	return &fileCapture{src: src, out: f, chunk: size, level: silenceDB, done: make(chan struct{})}, nil
}

type fileCapture struct {
	src   io.ReadCloser
	out   *os.File
	chunk int

	mu         sync.Mutex
	started    bool
	capturing  bool
	terminated bool
	level      float64
	writeErr   error

	done      chan struct{}
	closeOnce sync.Once
}

func (c *fileCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return errors.New("capture terminated")
	}
	c.capturing = true
	if !c.started {
		c.started = true
		go c.pump()
	}
	return nil
}

func (c *fileCapture) Pause() error {
	c.mu.Lock()
	c.capturing = false
	c.mu.Unlock()
	return nil
}

func (c *fileCapture) Reroute() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return errors.New("capture terminated")
	}
	return nil
}

func (c *fileCapture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.terminated
}

func (c *fileCapture) LevelDB() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// pump reads the source continuously; chunks arriving while paused are
// dropped.
func (c *fileCapture) pump() {
	defer close(c.done)
	buf := make([]byte, c.chunk)
	for {
		n, err := c.src.Read(buf)
		if n > 0 {
			c.mu.Lock()
			if c.capturing {
				c.level = rmsDB(buf[:n])
				if _, werr := c.out.Write(buf[:n]); werr != nil && c.writeErr == nil {
					c.writeErr = werr
				}
			}
			c.mu.Unlock()
		}
		if err != nil {
			c.mu.Lock()
			c.terminated = true
			c.capturing = false
			c.mu.Unlock()
			return
		}
	}
}

func (c *fileCapture) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.src.Close()

		c.mu.Lock()
		started := c.started
		c.mu.Unlock()
		if started {
			select {
			case <-c.done:
			case <-time.After(time.Second):
			}
		}

		c.mu.Lock()
		werr := c.writeErr
		c.mu.Unlock()

		serr := c.out.Sync()
		cerr := c.out.Close()
		err = errors.Join(werr, serr, cerr)
	})
	return err
}

// SilenceSource produces real-time paced 16 kHz mono 16-bit silence until
// closed.
func SilenceSource() (io.ReadCloser, error) {
	return &silence{closed: make(chan struct{})}, nil
}

type silence struct {
	closed chan struct{}
	once   sync.Once
}

func (s *silence) Read(p []byte) (int, error) {
	const bytesPerSecond = 32000
	n := len(p)
	if n > bytesPerSecond/10 {
		n = bytesPerSecond / 10
	}
	select {
	case <-s.closed:
		return 0, io.EOF
	case <-time.After(time.Duration(n) * time.Second / bytesPerSecond):
	}
	clear(p[:n])
	return n, nil
}

func (s *silence) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// CommandSource returns a NewSource func that runs command with sh -c and
// streams its stdout. Closing the reader kills the process.
func CommandSource(command string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		cmd := exec.Command("sh", "-c", command)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start capture command: %w", err)
		}
		return &commandSource{ReadCloser: stdout, cmd: cmd}, nil
	}
}

type commandSource struct {
	io.ReadCloser
	cmd  *exec.Cmd
	once sync.Once
}

func (s *commandSource) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.cmd.Process.Kill()
		err = s.ReadCloser.Close()
		_ = s.cmd.Wait()
	})
	return err
}
