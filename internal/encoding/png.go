package encoding

import (
	qrcode "github.com/skip2/go-qrcode"

	"github.com/ginjaninja78/laminar/internal/errs"
)

// Renderer turns frame data into QR images. Low error recovery is used so a
// full single-frame budget still fits the largest QR version.
type Renderer struct {
	Size  int
	Level qrcode.RecoveryLevel
}

// NewRenderer returns a renderer producing size x size pixel images.
func NewRenderer(size int) *Renderer {
	return &Renderer{Size: size, Level: qrcode.Low}
}

// Render returns the PNG bytes for data.
func (r *Renderer) Render(data string) ([]byte, error) {
	png, err := qrcode.Encode(data, r.Level, r.Size)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to render QR frame")
	}
	return png, nil
}

// Terminal renders data as a compact block-character QR code for display in
// a terminal.
func (r *Renderer) Terminal(data string) (string, error) {
	q, err := qrcode.New(data, r.Level)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeInternal, "failed to render QR frame")
	}
	return q.ToSmallString(false), nil
}
