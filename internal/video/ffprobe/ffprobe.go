package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`

	SideDataList []SideData        `json:"side_data_list"`
	Tags         map[string]string `json:"tags"`
}

// SideData is one entry of a stream's side_data_list. Only the display
// matrix rotation is decoded.
type SideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-select_streams", "v:0", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream, if any.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// FrameRate returns the stream's frame rate, preferring r_frame_rate and
// falling back to avg_frame_rate. It returns 0 when neither parses.
func (s Stream) FrameRate() float64 {
	if rate := parseRational(s.RFrameRate); rate > 0 {
		return rate
	}
	return parseRational(s.AvgFrameRate)
}

// FrameCount returns nb_frames, or 0 when the container does not record it.
func (s Stream) FrameCount() int {
	count, err := strconv.Atoi(strings.TrimSpace(s.NBFrames))
	if err != nil || count < 0 {
		return 0
	}
	return count
}

// Rotation returns the display rotation in degrees normalized to [0, 360),
// read from the display matrix side data or, for older containers, the
// rotate tag.
func (s Stream) Rotation() int {
	for _, side := range s.SideDataList {
		if side.Rotation != 0 {
			return normalizeDegrees(int(math.Round(side.Rotation)))
		}
	}
	if tag, ok := s.Tags["rotate"]; ok {
		if deg, err := strconv.Atoi(strings.TrimSpace(tag)); err == nil {
			return normalizeDegrees(deg)
		}
	}
	return 0
}

// DisplaySize returns the frame size after rotation, which is what ffmpeg
// emits when it auto-rotates.
func (s Stream) DisplaySize() (int, int) {
	switch s.Rotation() {
	case 90, 270:
		return s.Height, s.Width
	default:
		return s.Width, s.Height
	}
}

func normalizeDegrees(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

func parseRational(value string) float64 {
	cleaned := strings.TrimSpace(value)
	num, den, ok := strings.Cut(cleaned, "/")
	if !ok {
		rate := parseFloat(cleaned)
		if math.IsNaN(rate) || rate < 0 {
			return 0
		}
		return rate
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if math.IsNaN(n) || math.IsNaN(d) || d <= 0 || n < 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
