package transcoder

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/hszk-dev/dashstream/internal/infrastructure/metrics"
)

// FFprobe implements AudioProber using the ffprobe CLI.
type FFprobe struct {
	path   string
	logger *slog.Logger
}

// Compile-time verification that FFprobe implements AudioProber.
var _ AudioProber = (*FFprobe)(nil)

// NewFFprobe creates a prober. If path is empty, "ffprobe" is resolved from PATH.
func NewFFprobe(path string, logger *slog.Logger) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFprobe{path: path, logger: logger}
}

// HasAudio reports whether sourcePath has at least one audio stream.
// Any failure is treated as "no audio" so an unprobeable source still encodes video-only.
// Each call runs its own ffprobe under ctx.
func (p *FFprobe) HasAudio(ctx context.Context, sourcePath string) bool {
	out, err := exec.CommandContext(ctx, p.path, probeArgs(sourcePath)...).Output()
	if err != nil {
		p.logger.Warn("audio probe failed, assuming no audio",
			slog.String("source_path", sourcePath),
			slog.String("error", err.Error()),
		)
		metrics.AudioProbesTotal.WithLabelValues(metrics.ProbeResultError).Inc()
		return false
	}

	if strings.TrimSpace(string(out)) == "" {
		metrics.AudioProbesTotal.WithLabelValues(metrics.ProbeResultNoAudio).Inc()
		return false
	}

	metrics.AudioProbesTotal.WithLabelValues(metrics.ProbeResultAudio).Inc()
	return true
}

// probeArgs lists the index of every audio stream, one per line.
func probeArgs(sourcePath string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		sourcePath,
	}
}
