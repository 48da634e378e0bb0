// Package surface defines the display targets views project onto.
//
// A surface accepts mime-keyed display payloads. The built-in surfaces
// are deliberately small: TextSurface keeps the payload in memory for
// terminals and tests, ImageSurface rasterizes the text/plain payload to
// a PNG for hosts that want pixels. Surfaces are loop-confined like the
// views that drive them.
package surface

// Mime types produced by the built-in surfaces.
const (
	MimeText = "text/plain"
	MimePNG  = "image/png"
)

// DisplayData is a mime-keyed display payload, one renderable
// representation per mime type.
type DisplayData map[string][]byte

// Text wraps a plain string as display data.
func Text(s string) DisplayData {
	return DisplayData{MimeText: []byte(s)}
}

// PlainText returns the text/plain representation, or "" if absent.
func (d DisplayData) PlainText() string {
	return string(d[MimeText])
}

// Clone returns a deep copy.
func (d DisplayData) Clone() DisplayData {
	if d == nil {
		return nil
	}
	out := make(DisplayData, len(d))
	for mime, payload := range d {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		out[mime] = buf
	}
	return out
}

// Surface is a display target for a view.
type Surface interface {
	// SetContent replaces what the surface displays.
	SetContent(data DisplayData) error
	// Clear releases the displayed content.
	Clear() error
}
