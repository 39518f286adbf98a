package transcoder

import (
	"encoding/xml"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/dashstream/internal/domain/model"
)

type mpd struct {
	Periods []struct {
		AdaptationSets []struct {
			ContentType     string `xml:"contentType,attr"`
			MimeType        string `xml:"mimeType,attr"`
			Representations []struct {
				ID     string `xml:"id,attr"`
				Width  int    `xml:"width,attr"`
				Height int    `xml:"height,attr"`
			} `xml:"Representation"`
		} `xml:"AdaptationSet"`
	} `xml:"Period"`
}

// TestSupervisor_EndToEnd encodes a generated clip with the real ffmpeg.
// Skipped unless ffmpeg and ffprobe are installed.
func TestSupervisor_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end encode in short mode")
	}
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}

	dir := t.TempDir()
	source := filepath.Join(dir, "source.mp4")

	gen := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "testsrc=duration=10:size=640x360:rate=25",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", source)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Fatalf("failed to generate test clip: %v\n%s", err, out)
	}

	cfg := DefaultSupervisorConfig()
	cfg.Ladder = Ladder{
		{Width: 320, Height: 180, Bitrate: "300k"},
		{Width: 640, Height: 360, Bitrate: "750k"},
		{Width: 1280, Height: 720, Bitrate: "2850k"},
	}
	cfg.DASH.VideoPreset = "ultrafast"

	sup := newTestSupervisor(t,
		NewFFmpegRunner(DefaultFFmpegConfig()),
		NewFFprobe("ffprobe", discardLogger()),
		cfg,
	)

	manifest := filepath.Join(dir, model.ManifestFileName)
	outcomes, err := sup.Submit(EncodeRequest{JobID: uuid.New(), SourcePath: source, ManifestPath: manifest})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	var outcome Outcome
	select {
	case outcome = <-outcomes:
	case <-time.After(2 * time.Minute):
		t.Fatal("encode did not finish in time")
	}
	if outcome.Status != model.StatusComplete {
		t.Fatalf("Status: got %s (%v), expected Complete", outcome.Status, outcome.Err)
	}
	if outcome.HasAudio {
		t.Error("testsrc clip should have no audio")
	}

	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}

	var doc mpd
	if err := xml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to parse manifest: %v", err)
	}
	if len(doc.Periods) == 0 {
		t.Fatal("manifest has no periods")
	}

	var video, audio int
	for _, set := range doc.Periods[0].AdaptationSets {
		kind := set.ContentType
		if kind == "" {
			kind = strings.SplitN(set.MimeType, "/", 2)[0]
		}
		switch kind {
		case "video":
			video += len(set.Representations)
		case "audio":
			audio++
		}
	}
	if video != 3 {
		t.Errorf("video representations: got %d, expected 3", video)
	}
	if audio != 0 {
		t.Errorf("audio adaptation sets: got %d, expected 0", audio)
	}

	for _, name := range []string{"init_0.mp4", "init_1.mp4", "init_2.mp4"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected init segment %s: %v", name, err)
		}
	}
}
