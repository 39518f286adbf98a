package transcoder

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// InitSegmentTemplate names the initialization segment of each representation.
	InitSegmentTemplate = "init_$RepresentationID$.mp4"
	// MediaSegmentTemplate names the numbered media segments of each representation.
	MediaSegmentTemplate = "chunk_$RepresentationID$_$Number$.m4s"
)

// DASHOptions holds the encoder settings shared by every rendition.
type DASHOptions struct {
	// VideoCodec is the video codec used for every representation.
	// Default: libx264
	VideoCodec string

	// VideoPreset controls the encoding speed/quality tradeoff.
	// Empty omits the -preset flag.
	// Default: fast
	VideoPreset string

	// AudioCodec is the audio codec.
	// Default: aac
	AudioCodec string

	// AudioBitrate is the audio bitrate in ffmpeg notation.
	// Default: 128k
	AudioBitrate string

	// SegmentDuration is the target duration of each DASH segment in seconds.
	// Default: 4
	SegmentDuration int
}

// DefaultDASHOptions returns DASHOptions with production defaults.
func DefaultDASHOptions() DASHOptions {
	return DASHOptions{
		VideoCodec:      "libx264",
		VideoPreset:     "fast",
		AudioCodec:      "aac",
		AudioBitrate:    "128k",
		SegmentDuration: 4,
	}
}

// BuildDASHArgs constructs the ffmpeg argument list that encodes sourcePath into
// every rendition of ladder and writes a DASH manifest to manifestPath.
//
// Each rendition i is scaled to fit its box, padded to the exact size and
// mapped to video output stream i. Audio is mapped optionally; the audio
// adaptation set is declared only when hasAudio is true.
//
// The result depends only on the arguments.
func BuildDASHArgs(sourcePath, manifestPath string, ladder Ladder, hasAudio bool, opts DASHOptions) ([]string, error) {
	if sourcePath == "" {
		return nil, fmt.Errorf("%w: source path is required", ErrInvalidRequest)
	}
	if manifestPath == "" {
		return nil, fmt.Errorf("%w: manifest path is required", ErrInvalidRequest)
	}
	if err := ladder.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-y",
		"-i", sourcePath,
		"-filter_complex", buildFilterGraph(ladder),
	}

	for i, r := range ladder {
		idx := strconv.Itoa(i)
		args = append(args,
			"-map", "[v"+idx+"]",
			"-b:v:"+idx, r.Bitrate,
			"-c:v:"+idx, opts.VideoCodec,
		)
	}

	if opts.VideoPreset != "" {
		args = append(args, "-preset", opts.VideoPreset)
	}

	// "?" keeps sources without audio from failing the command
	args = append(args,
		"-map", "0:a?",
		"-c:a", opts.AudioCodec,
		"-b:a", opts.AudioBitrate,
	)

	args = append(args,
		"-f", "dash",
		"-seg_duration", strconv.Itoa(opts.SegmentDuration),
		"-use_template", "1",
		"-use_timeline", "1",
		"-init_seg_name", InitSegmentTemplate,
		"-media_seg_name", MediaSegmentTemplate,
		"-adaptation_sets", buildAdaptationSets(len(ladder), hasAudio),
		manifestPath,
	)

	return args, nil
}

// buildFilterGraph returns one scale+pad stage per rendition, all reading the
// first video stream of the input and labelled [v0]..[vN-1].
func buildFilterGraph(ladder Ladder) string {
	stages := make([]string, len(ladder))
	for i, r := range ladder {
		stages[i] = fmt.Sprintf(
			"[0:v]scale=w=%d:h=%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2[v%d]",
			r.Width, r.Height, r.Width, r.Height, i,
		)
	}
	return strings.Join(stages, ";")
}

// buildAdaptationSets declares video streams 0..n-1 as set 0 and, when present,
// the single audio stream n as set 1.
func buildAdaptationSets(n int, hasAudio bool) string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}

	sets := "id=0,streams=" + strings.Join(ids, ",")
	if hasAudio {
		sets += " id=1,streams=" + strconv.Itoa(n)
	}
	return sets
}
