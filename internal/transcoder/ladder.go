package transcoder

import "fmt"

// Rendition is a single quality level in the DASH package.
type Rendition struct {
	// Width is the target frame width in pixels.
	Width int
	// Height is the target frame height in pixels.
	Height int
	// Bitrate is the target video bitrate in ffmpeg notation (e.g., "750k").
	Bitrate string
}

// String returns a short human-readable label such as "640x360@750k".
func (r Rendition) String() string {
	return fmt.Sprintf("%dx%d@%s", r.Width, r.Height, r.Bitrate)
}

// Ladder is an ordered list of renditions.
// Index i becomes DASH representation id i, so reordering changes client-visible ids.
type Ladder []Rendition

var defaultLadder = Ladder{
	{Width: 320, Height: 180, Bitrate: "20k"},     // 180p low
	{Width: 320, Height: 180, Bitrate: "300k"},    // 180p high
	{Width: 512, Height: 288, Bitrate: "480k"},    // 240p
	{Width: 640, Height: 360, Bitrate: "750k"},    // 360p
	{Width: 768, Height: 432, Bitrate: "1200k"},   // 480p
	{Width: 1024, Height: 576, Bitrate: "1850k"},  // 576p
	{Width: 1280, Height: 720, Bitrate: "2850k"},  // 720p low
	{Width: 1280, Height: 720, Bitrate: "4300k"},  // 720p high
	{Width: 1920, Height: 1080, Bitrate: "5300k"}, // 1080p
}

// DefaultLadder returns the production ladder, lowest quality first.
// A fresh copy is returned so callers cannot alter the shared table.
func DefaultLadder() Ladder {
	out := make(Ladder, len(defaultLadder))
	copy(out, defaultLadder)
	return out
}

// Validate checks that the ladder is non-empty and every rendition is usable.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("%w: at least one rendition is required", ErrInvalidLadder)
	}
	for i, r := range l {
		if r.Width <= 0 || r.Height <= 0 {
			return fmt.Errorf("%w: rendition %d has invalid size %dx%d", ErrInvalidLadder, i, r.Width, r.Height)
		}
		if r.Bitrate == "" {
			return fmt.Errorf("%w: rendition %d has no bitrate", ErrInvalidLadder, i)
		}
	}
	return nil
}
