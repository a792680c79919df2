//go:build !gosseract

package ocr

// NewGosseract reports ErrEngineUnavailable; build with -tags gosseract to link libtesseract.
func NewGosseract() (Engine, error) {
	return nil, ErrEngineUnavailable
}
