package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"

	// decoders beyond jpeg, png and gif
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/seventv/image-resizer/task"
)

// Source is a single-shot decode of an encoded image. Decoding starts as soon
// as the Source is created and its outcome is kept for every later Wait.
type Source struct {
	size int

	done chan struct{}
	img  image.Image
	err  error
}

func NewSource(data []byte) *Source {
	s := &Source{
		size: len(data),
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer func() {
			if pnk := recover(); pnk != nil {
				s.img = nil
				s.err = fmt.Errorf("%w: panic at runtime: %v", ErrDecode, pnk)
			}
		}()

		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			s.err = fmt.Errorf("%w: %v", ErrDecode, err)
			return
		}

		b := img.Bounds()
		if b.Dx() <= 0 || b.Dy() <= 0 {
			s.err = fmt.Errorf("%w: empty image", ErrDecode)
			return
		}

		s.img = img
	}()

	return s
}

// FromImage wraps an already decoded image.
func FromImage(img image.Image) *Source {
	s := &Source{
		done: make(chan struct{}),
		img:  img,
	}
	if img == nil {
		s.err = fmt.Errorf("%w: nil image", ErrDecode)
	}
	close(s.done)

	return s
}

// Wait blocks until decoding has finished or ctx is done.
func (s *Source) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
	}

	return s.img, s.err
}

// Dimensions waits for the decode and reports the natural size.
func (s *Source) Dimensions(ctx context.Context) (task.Dimensions, error) {
	img, err := s.Wait(ctx)
	if err != nil {
		return task.Dimensions{}, err
	}

	b := img.Bounds()

	return task.Dimensions{Width: b.Dx(), Height: b.Dy()}, nil
}

// Size is the length of the encoded input in bytes.
func (s *Source) Size() int {
	return s.size
}
