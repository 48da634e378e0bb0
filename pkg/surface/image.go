package surface

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	imageMargin = 4
	// Face7x13 metrics.
	glyphAdvance = 7
	lineAdvance  = 13
)

// ImageSurface rasterizes the text/plain payload onto a fixed-size white
// canvas and keeps the PNG encoding alongside the original payload. Lines
// wrap at the canvas edge; content past the bottom edge is dropped.
type ImageSurface struct {
	width   int
	height  int
	face    font.Face
	img     *image.RGBA
	content DisplayData
}

// NewImageSurface returns a blank canvas of the given pixel size.
func NewImageSurface(width, height int) *ImageSurface {
	s := &ImageSurface{
		width:  width,
		height: height,
		face:   basicfont.Face7x13,
	}
	s.reset()
	return s
}

// SetContent rasterizes data's text/plain payload and stores both the
// payload and its image/png encoding.
func (s *ImageSurface) SetContent(data DisplayData) error {
	s.reset()
	text := data.PlainText()

	drawer := font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(color.Black),
		Face: s.face,
	}
	y := imageMargin + s.face.Metrics().Ascent.Ceil()
	for _, line := range s.wrap(text) {
		if y > s.height-imageMargin {
			break
		}
		drawer.Dot = fixed.P(imageMargin, y)
		drawer.DrawString(line)
		y += lineAdvance
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return fmt.Errorf("encode surface png: %w", err)
	}
	s.content = data.Clone()
	if s.content == nil {
		s.content = DisplayData{}
	}
	s.content[MimePNG] = buf.Bytes()
	return nil
}

// Clear resets the canvas to blank.
func (s *ImageSurface) Clear() error {
	s.reset()
	s.content = nil
	return nil
}

// Content returns the payload of the last SetContent, including the
// image/png encoding.
func (s *ImageSurface) Content() DisplayData {
	return s.content
}

// PNG returns the image/png encoding of the current content, or nil if
// the surface is blank.
func (s *ImageSurface) PNG() []byte {
	return s.content[MimePNG]
}

// Image exposes the backing canvas.
func (s *ImageSurface) Image() *image.RGBA {
	return s.img
}

func (s *ImageSurface) reset() {
	s.img = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
}

// wrap splits text into display lines, breaking at newlines and at the
// canvas edge.
func (s *ImageSurface) wrap(text string) []string {
	cols := (s.width - 2*imageMargin) / glyphAdvance
	if cols < 1 {
		cols = 1
	}
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		runes := []rune(raw)
		if len(runes) == 0 {
			lines = append(lines, "")
			continue
		}
		for len(runes) > cols {
			lines = append(lines, string(runes[:cols]))
			runes = runes[cols:]
		}
		lines = append(lines, string(runes))
	}
	return lines
}
