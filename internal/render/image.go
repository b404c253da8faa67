package render

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-pdf/fpdf"

	"catalog/internal/pkg/errors"
)

// CheckImage reports whether data can be embedded as typ ("PNG", "JPG" or
// "GIF"). The header must decode and the PDF writer must accept the
// encoding; interlaced PNGs decode but cannot be embedded.
func CheckImage(typ string, data []byte) error {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "render.CheckImage", "image does not decode")
	}
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.RegisterImageOptionsReader("check", fpdf.ImageOptions{ImageType: typ}, bytes.NewReader(data))
	if err := pdf.Error(); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "render.CheckImage", "image cannot be embedded")
	}
	return nil
}
