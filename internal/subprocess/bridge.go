package subprocess

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/bridge-sdk-go/internal/cli"
	"github.com/wagiedev/bridge-sdk-go/internal/config"
	"github.com/wagiedev/bridge-sdk-go/internal/errors"
)

const (
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded memory usage.
	maxStderrBufferSize = 64 * 1024

	// maxStderrLineSize truncates single stderr lines. The rest of a longer
	// line is read and dropped.
	maxStderrLineSize = 64 * 1024

	// maxLoggedPrefix is how much of a discarded output line is logged.
	maxLoggedPrefix = 256

	// writeAbandonTimeout bounds the wait for a blocked write after stdin was
	// closed to unblock it.
	writeAbandonTimeout = time.Second
)

// BridgeTransport implements Transport by spawning a bridge subprocess.
type BridgeTransport struct {
	log            *slog.Logger
	options        *config.Options
	bridgePath     string
	args           []string
	env            []string
	cwd            string
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	stderrCallback func(string) // Callback for streaming stderr output
	maxLineSize    int
	mu             sync.Mutex // Protects stdin writes
	closing        bool       // Whether Close() has been called (intentional shutdown)
	stdinClosed    bool       // Whether stdin was closed (EndInput or context cancellation)
}

// Compile-time verification that BridgeTransport implements the Transport interface.
var _ config.Transport = (*BridgeTransport)(nil)

// NewBridgeTransport creates a new bridge transport with the given options.
//
// The logger is used for operation tracking and debugging. It will receive
// debug, info, warn, and error messages during transport operations.
//
// Bridge discovery is deferred to Start(), which returns BridgeNotFoundError
// if the executable cannot be located.
func NewBridgeTransport(log *slog.Logger, options *config.Options) *BridgeTransport {
	return &BridgeTransport{
		log:            log.With("component", "bridge_transport"),
		options:        options,
		stderrCallback: options.Stderr,
		maxLineSize:    options.MaxBufferSizeOrDefault(),
	}
}

// Start starts the bridge subprocess.
//
// This method discovers the bridge executable, builds the adapter argument,
// and spawns the process with the configured environment variables. It sets
// up stdin, stdout, and stderr pipes for communication. No shell is involved.
//
// The context bounds discovery only; cancelling it after Start returns does
// not terminate the process. Use Close for that.
//
// Returns BridgeNotFoundError if the executable cannot be located,
// or ConnectionError if the process fails to start.
func (t *BridgeTransport) Start(ctx context.Context) error {
	t.log.Info("Starting bridge subprocess")

	discoverer := cli.NewDiscoverer(&cli.Config{
		BridgePath: t.options.BridgePath,
		Logger:     t.log,
	})

	bridgePath, err := discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover bridge: %w", err)
	}

	t.bridgePath = bridgePath

	t.args = cli.BuildArgs(t.options, t.log)
	t.log.Debug("Built command arguments", "args", t.args)

	t.env = cli.BuildEnvironment(t.options)

	t.cwd = t.options.Cwd
	if t.cwd == "" {
		t.cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	t.log.Debug("Set working directory", "cwd", t.cwd)

	//nolint:gosec // G204: Subprocess launching with a configured executable is the purpose of this transport
	cmd := exec.Command(t.bridgePath, t.args...)
	cmd.Dir = t.cwd
	cmd.Env = t.env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start bridge process", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.mu.Lock()
	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.stderr = stderr
	t.mu.Unlock()

	t.log.Info("Bridge subprocess started successfully",
		"pid", cmd.Process.Pid,
		"bridge_path", t.bridgePath,
		"adapter", t.args[0],
	)

	return nil
}

// ReadLines reads lines from the bridge stdout.
//
// This method starts a goroutine that reads newline-delimited output from
// the bridge process. Each non-blank line is sent to the lines channel as
// its own copy, without the trailing newline; no line is ever interpreted
// here.
//
// The line channel is closed when the bridge closes its output, reading
// fails, or the context is cancelled. A read failure is then sent to the
// error channel, followed by a ProcessError if the bridge exited abnormally
// and Close was not called. The error channel is closed last.
func (t *BridgeTransport) ReadLines(ctx context.Context) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errs := make(chan error, 2)

	if t.stdout == nil || t.cmd == nil {
		close(lines)
		errs <- errors.ErrTransportNotConnected
		close(errs)

		return lines, errs
	}

	stderrBuf := newStderrCollector(maxStderrBufferSize, t.stderrCallback)

	// Always buffer stderr for error reporting (must complete reads before Wait())
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe
	var stderrWg sync.WaitGroup

	stderrWg.Go(func() {
		if err := stderrBuf.consume(t.stderr); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(errs)
		defer t.log.Debug("ReadLines goroutine stopped")

		err := scanLines(ctx, t.log, t.stdout, t.maxLineSize, lines)

		close(lines)

		if err != nil {
			if ctx.Err() != nil {
				t.log.Debug("Context cancelled while reading bridge output", "error", err)

				errs <- err
			} else {
				t.log.Error("Scanner error while reading bridge output", "error", err)

				errs <- fmt.Errorf("scanner error: %w", err)
			}
		}

		// Wait for stderr goroutine before process wait
		stderrWg.Wait()

		t.log.Debug("Waiting for bridge process to exit")

		if err := t.cmd.Wait(); err != nil {
			t.mu.Lock()
			isClosing := t.closing
			t.mu.Unlock()

			if isClosing {
				t.log.Debug("Bridge process terminated during shutdown")

				return
			}

			stderrOutput := stderrBuf.String()
			exitCode := 0

			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				exitCode = exitErr.ExitCode()
			}

			t.log.Error("Bridge process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

			errs <- &errors.ProcessError{
				ExitCode: exitCode,
				Stderr:   stderrOutput,
				Err:      err,
			}
		} else {
			t.log.Info("Bridge process exited successfully")
		}
	}()

	return lines, errs
}

// WriteLine writes one line to the bridge stdin.
//
// The data must not contain a newline except, optionally, a single trailing
// one. This method is safe for concurrent use: lines are written whole, one
// at a time. It respects context cancellation even during blocking writes.
//
// If context is cancelled during a blocked write, stdin is closed to unblock
// the goroutine. Subsequent calls will return ErrStdinClosed.
func (t *BridgeTransport) WriteLine(ctx context.Context, data []byte) error {
	body := bytes.TrimSuffix(data, []byte{'\n'})
	if bytes.ContainsAny(body, "\r\n") {
		return fmt.Errorf("write line: data contains a line break")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	if t.stdin == nil {
		return errors.ErrTransportNotConnected
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Writing line to bridge", "data_len", len(body))

	// Copy so the caller's backing array is never mutated
	line := make([]byte, len(body)+1)
	copy(line, body)
	line[len(body)] = '\n'

	stdin := t.stdin
	done := make(chan error, 1)

	go func() {
		_, err := stdin.Write(line)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write line to bridge", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		_ = stdin.Close()
		t.stdinClosed = true

		select {
		case <-done:
		case <-time.After(writeAbandonTimeout):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// IsReady checks if the transport is ready for communication.
//
// Returns true if the bridge process is running and stdin is open.
func (t *BridgeTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && t.stdin != nil && !t.stdinClosed && !t.closing
}

// EndInput closes the stdin pipe to signal end of input.
//
// The bridge is expected to finish pending work, close its output and exit.
func (t *BridgeTransport) EndInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil && !t.stdinClosed {
		t.log.Debug("Closing stdin pipe")

		err := t.stdin.Close()
		t.stdinClosed = true
		t.stdin = nil

		return err
	}

	return nil
}

// Close terminates the bridge process.
//
// This forcefully kills the bridge process. It's safe to call Close
// multiple times or on an already-terminated process.
func (t *BridgeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = true
	t.stdinClosed = true

	if t.cmd != nil && t.cmd.Process != nil {
		t.log.Debug("Killing bridge process", "pid", t.cmd.Process.Pid)

		if err := t.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill bridge process (pid %d): %w", t.cmd.Process.Pid, err)
		}
	}

	return nil
}

// scanLines splits r into lines and sends each non-blank one to out.
//
// A line longer than maxLineSize is discarded up to its newline and logged;
// reading continues with the next line. Returns nil at EOF, the read error
// if reading fails, or ctx.Err().
func scanLines(ctx context.Context, log *slog.Logger, r io.Reader, maxLineSize int, out chan<- []byte) error {
	reader := bufio.NewReaderSize(r, min(64*1024, maxLineSize))

	var (
		line      []byte
		discarded int
		prefix    []byte
	)

	for {
		chunk, err := reader.ReadSlice('\n')
		if err != nil && !stderrors.Is(err, bufio.ErrBufferFull) && !stderrors.Is(err, io.EOF) {
			return err
		}

		if discarded > 0 {
			discarded += len(chunk)
		} else {
			line = append(line, chunk...)

			if len(bytes.TrimRight(line, "\r\n")) > maxLineSize {
				prefix = bytes.Clone(line[:min(len(line), maxLoggedPrefix)])
				discarded = len(line)
				line = line[:0]
			}
		}

		if stderrors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if discarded > 0 {
			log.Warn("Discarding oversized bridge output line",
				"bytes", discarded,
				"limit", maxLineSize,
				"prefix", string(prefix),
			)

			discarded = 0
			prefix = nil
		} else if raw := bytes.TrimRight(line, "\r\n"); len(bytes.TrimSpace(raw)) > 0 {
			select {
			case out <- bytes.Clone(raw):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		line = line[:0]

		if err != nil {
			return ctx.Err()
		}
	}
}

// stderrCollector forwards stderr lines to a callback and keeps a capped
// copy for error reporting.
type stderrCollector struct {
	mu       sync.Mutex
	buf      strings.Builder
	limit    int
	callback func(string)
}

func newStderrCollector(limit int, callback func(string)) *stderrCollector {
	return &stderrCollector{limit: limit, callback: callback}
}

// consume reads r line by line until EOF. It relies on process exit to
// close the pipe. Lines longer than maxStderrLineSize are truncated, and
// reading always continues so the bridge never blocks on a full stderr pipe.
func (s *stderrCollector) consume(r io.Reader) error {
	if r == nil {
		return nil
	}

	reader := bufio.NewReader(r)

	var line []byte

	for {
		chunk, err := reader.ReadSlice('\n')

		if room := maxStderrLineSize - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}

		switch {
		case stderrors.Is(err, bufio.ErrBufferFull):
			continue

		case err == nil:
			s.add(string(bytes.TrimRight(line, "\r\n")))
			line = line[:0]

		case stderrors.Is(err, io.EOF):
			if len(line) > 0 {
				s.add(string(bytes.TrimRight(line, "\r\n")))
			}

			return nil

		default:
			return err
		}
	}
}

func (s *stderrCollector) add(line string) {
	s.mu.Lock()

	if s.buf.Len() < s.limit {
		if s.buf.Len() > 0 {
			s.buf.WriteString("\n")
		}

		s.buf.WriteString(line)
	}

	s.mu.Unlock()

	if s.callback != nil {
		s.callback(line)
	}
}

// String returns the buffered stderr output without surrounding whitespace.
func (s *stderrCollector) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return strings.TrimSpace(s.buf.String())
}
