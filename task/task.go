package task

import (
	"fmt"
	"strings"
)

type Mode int32

const (
	_ Mode = iota
	ModePixels
	ModePercentage
)

func (m Mode) String() string {
	switch m {
	case ModePixels:
		return "PIXELS"
	case ModePercentage:
		return "PERCENTAGE"
	default:
		return fmt.Sprintf("UNKNOWN MODE %d", m)
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(s) {
	case "PIXELS", "PX":
		return ModePixels, nil
	case "PERCENTAGE", "PERCENT", "%":
		return ModePercentage, nil
	}

	return 0, fmt.Errorf("unknown mode %q", s)
}

type Format int32

const (
	_ Format = iota
	FormatJPEG
	FormatPNG
	FormatWEBP
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "JPEG"
	case FormatPNG:
		return "PNG"
	case FormatWEBP:
		return "WEBP"
	default:
		return fmt.Sprintf("UNKNOWN FORMAT %d", f)
	}
}

// Extension is the file extension used for downloads, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatPNG:
		return "png"
	case FormatWEBP:
		return "webp"
	default:
		return "bin"
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimPrefix(strings.ToLower(s), "image/")) {
	case "JPEG", "JPG":
		return FormatJPEG, nil
	case "PNG":
		return FormatPNG, nil
	case "WEBP":
		return FormatWEBP, nil
	}

	return 0, fmt.Errorf("unknown format %q", s)
}

// Axis names the field a user edited.
type Axis int32

const (
	_ Axis = iota
	AxisWidth
	AxisHeight
	AxisPercentage
)

func (a Axis) String() string {
	switch a {
	case AxisWidth:
		return "WIDTH"
	case AxisHeight:
		return "HEIGHT"
	case AxisPercentage:
		return "PERCENTAGE"
	default:
		return fmt.Sprintf("UNKNOWN AXIS %d", a)
	}
}

func ParseAxis(s string) (Axis, error) {
	switch strings.ToUpper(s) {
	case "WIDTH", "W":
		return AxisWidth, nil
	case "HEIGHT", "H":
		return AxisHeight, nil
	case "PERCENTAGE", "PERCENT", "%":
		return AxisPercentage, nil
	}

	return 0, fmt.Errorf("unknown axis %q", s)
}

const (
	MinPercentage = 1
	MaxPercentage = 500

	MinQuality     = 0.1
	MaxQuality     = 1.0
	DefaultQuality = 0.8
)

// Dimensions is the natural size of a decoded source image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Options struct {
	Width               int     `json:"width"`
	Height              int     `json:"height"`
	Percentage          int     `json:"percentage"`
	Mode                Mode    `json:"mode"`
	Quality             float64 `json:"quality"`
	Format              Format  `json:"format"`
	MaintainAspectRatio bool    `json:"maintain_aspect_ratio"`
}

// ClampQuality keeps q inside [MinQuality, MaxQuality].
func ClampQuality(q float64) float64 {
	if q < MinQuality || q != q {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}

	return q
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v

	return nil
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v

	return nil
}

func (a Axis) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Axis) UnmarshalText(b []byte) error {
	v, err := ParseAxis(string(b))
	if err != nil {
		return err
	}
	*a = v

	return nil
}
