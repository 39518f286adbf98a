package transcoder

import (
	"errors"
	"testing"
)

func TestDefaultLadder(t *testing.T) {
	ladder := DefaultLadder()

	if len(ladder) != 9 {
		t.Fatalf("expected 9 renditions, got %d", len(ladder))
	}

	tests := []struct {
		index   int
		width   int
		height  int
		bitrate string
	}{
		{0, 320, 180, "20k"},
		{1, 320, 180, "300k"},
		{2, 512, 288, "480k"},
		{3, 640, 360, "750k"},
		{4, 768, 432, "1200k"},
		{5, 1024, 576, "1850k"},
		{6, 1280, 720, "2850k"},
		{7, 1280, 720, "4300k"},
		{8, 1920, 1080, "5300k"},
	}

	for _, tt := range tests {
		t.Run(tt.bitrate, func(t *testing.T) {
			r := ladder[tt.index]
			if r.Width != tt.width || r.Height != tt.height {
				t.Errorf("size: got %dx%d, expected %dx%d", r.Width, r.Height, tt.width, tt.height)
			}
			if r.Bitrate != tt.bitrate {
				t.Errorf("bitrate: got %q, expected %q", r.Bitrate, tt.bitrate)
			}
		})
	}

	if err := ladder.Validate(); err != nil {
		t.Errorf("default ladder should be valid: %v", err)
	}
}

func TestDefaultLadder_ReturnsCopy(t *testing.T) {
	first := DefaultLadder()
	first[0].Bitrate = "1k"
	first[0].Width = 1

	second := DefaultLadder()
	if second[0].Bitrate != "20k" || second[0].Width != 320 {
		t.Errorf("mutating a returned ladder changed the default: %v", second[0])
	}
}

func TestLadder_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ladder  Ladder
		wantErr bool
	}{
		{"nil ladder", nil, true},
		{"empty ladder", Ladder{}, true},
		{"zero width", Ladder{{Width: 0, Height: 360, Bitrate: "750k"}}, true},
		{"negative height", Ladder{{Width: 640, Height: -1, Bitrate: "750k"}}, true},
		{"empty bitrate", Ladder{{Width: 640, Height: 360}}, true},
		{"second rendition invalid", Ladder{{640, 360, "750k"}, {0, 0, ""}}, true},
		{"single rendition", Ladder{{640, 360, "750k"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ladder.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLadder) {
					t.Errorf("expected ErrInvalidLadder, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRendition_String(t *testing.T) {
	r := Rendition{Width: 1280, Height: 720, Bitrate: "2850k"}
	if got := r.String(); got != "1280x720@2850k" {
		t.Errorf("got %q, expected %q", got, "1280x720@2850k")
	}
}
