package surface

// TextSurface keeps the latest display payload in memory. It backs
// terminal rendering and is the default surface in tests.
type TextSurface struct {
	content DisplayData
}

// NewTextSurface returns an empty text surface.
func NewTextSurface() *TextSurface {
	return &TextSurface{}
}

// SetContent replaces the displayed payload.
func (s *TextSurface) SetContent(data DisplayData) error {
	s.content = data.Clone()
	return nil
}

// Clear drops the displayed payload.
func (s *TextSurface) Clear() error {
	s.content = nil
	return nil
}

// Content returns the current payload.
func (s *TextSurface) Content() DisplayData {
	return s.content
}

// String returns the text/plain part of the current payload.
func (s *TextSurface) String() string {
	return s.content.PlainText()
}
