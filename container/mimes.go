package container

import (
	"github.com/h2non/filetype/matchers"
	"github.com/seventv/image-resizer/task"
)

var (
	MimeAVIF = TypeAvif.MIME.Value
	MimeWEBP = matchers.TypeWebp.MIME.Value
	MimeGIF  = matchers.TypeGif.MIME.Value
	MimePNG  = matchers.TypePng.MIME.Value
	MimeJPEG = matchers.TypeJpeg.MIME.Value
	MimeBMP  = matchers.TypeBmp.MIME.Value
	MimeTIFF = matchers.TypeTiff.MIME.Value
)

// MimeOf returns the content type an output format is served with.
func MimeOf(f task.Format) string {
	switch f {
	case task.FormatJPEG:
		return MimeJPEG
	case task.FormatPNG:
		return MimePNG
	case task.FormatWEBP:
		return MimeWEBP
	default:
		return "application/octet-stream"
	}
}
