package transcoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

// FFmpegConfig holds configuration for the FFmpeg runner.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// TailLines is how many trailing output lines are kept for failure diagnostics.
	// Default: 20
	TailLines int

	// WaitDelay bounds how long Run waits for output pipes to drain after the
	// process has exited or been killed.
	// Default: 5s
	WaitDelay time.Duration
}

// DefaultFFmpegConfig returns an FFmpegConfig with production-ready defaults.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath: "ffmpeg",
		TailLines:  20,
		WaitDelay:  5 * time.Second,
	}
}

// FFmpegRunner implements Runner by spawning the ffmpeg CLI.
type FFmpegRunner struct {
	config FFmpegConfig
}

// Compile-time verification that FFmpegRunner implements Runner.
var _ Runner = (*FFmpegRunner)(nil)

// NewFFmpegRunner creates a new FFmpeg-based runner.
func NewFFmpegRunner(cfg FFmpegConfig) *FFmpegRunner {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = 20
	}
	return &FFmpegRunner{
		config: cfg,
	}
}

// Run executes ffmpeg with args and waits for it to exit.
// Stdout and stderr share one pipe; every line is logged at debug level as it arrives.
func (r *FFmpegRunner) Run(ctx context.Context, args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	pr, pw := io.Pipe()

	cmd := exec.CommandContext(ctx, r.config.FFmpegPath, args...)
	cmd.Stdin = nil
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.WaitDelay = r.config.WaitDelay

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return fmt.Errorf("%w: %v", ErrStart, err)
	}

	tail := newOutputTail(r.config.TailLines)
	done := make(chan struct{})
	go func() {
		defer close(done)
		streamOutput(pr, tail, logger)
	}()

	waitErr := cmd.Wait()
	_ = pw.Close()
	<-done

	if waitErr == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return &ExitError{
			Code: exitErr.ExitCode(),
			Tail: tail.lines(),
		}
	}
	return fmt.Errorf("wait for ffmpeg: %w", waitErr)
}

// streamOutput logs each output line and keeps the most recent ones in tail.
// The reader is always drained so the process never blocks on a full pipe.
func streamOutput(rd io.Reader, tail *outputTail, logger *slog.Logger) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanOutputLines)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		tail.add(line)
		logger.Debug("ffmpeg output", slog.String("line", line))
	}

	_, _ = io.Copy(io.Discard, rd)
}

// scanOutputLines splits on either '\n' or '\r'; ffmpeg rewrites its progress
// line with carriage returns.
func scanOutputLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// outputTail keeps the last max lines written to it.
type outputTail struct {
	max int
	buf []string
}

func newOutputTail(max int) *outputTail {
	return &outputTail{max: max}
}

func (t *outputTail) add(line string) {
	t.buf = append(t.buf, line)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
}

func (t *outputTail) lines() []string {
	out := make([]string, len(t.buf))
	copy(out, t.buf)
	return out
}
