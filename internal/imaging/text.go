package imaging

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/chaz8081/fichero/internal/ble/protocol"
	"github.com/chaz8081/fichero/internal/raster"
)

var (
	regularOnce sync.Once
	regularFont *opentype.Font
	regularErr  error
)

func loadRegular() (*opentype.Font, error) {
	regularOnce.Do(func() {
		regularFont, regularErr = opentype.Parse(goregular.TTF)
	})
	return regularFont, regularErr
}

// RenderText draws text centred on a labelHeight by PrintheadPx canvas in
// black on white, then turns it a quarter turn so the text runs along the
// label. The result is PrintheadPx wide and labelHeight tall, with every
// pixel pure black or white. Text longer than the label is clipped.
func RenderText(text string, fontSize float64, labelHeight int) (*image.Gray, error) {
	if text == "" {
		return nil, fmt.Errorf("imaging: empty text: %w", protocol.ErrInvalidArgument)
	}
	if fontSize <= 0 {
		return nil, fmt.Errorf("imaging: font size must be positive, got %g: %w", fontSize, protocol.ErrInvalidArgument)
	}
	if labelHeight < 1 {
		return nil, fmt.Errorf("imaging: label height must be positive, got %d: %w", labelHeight, protocol.ErrInvalidArgument)
	}

	f, err := loadRegular()
	if err != nil {
		return nil, fmt.Errorf("imaging: parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("imaging: font face: %w", err)
	}
	defer face.Close()

	w, h := labelHeight, raster.PrintheadPx
	canvas := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	bounds, _ := font.BoundString(face, text)
	tw := (bounds.Max.X - bounds.Min.X).Ceil()
	th := (bounds.Max.Y - bounds.Min.Y).Ceil()
	if tw > w || th > h {
		slog.Warn("[IMG] text larger than label, clipping", "text_px", fmt.Sprintf("%dx%d", tw, th), "label_px", fmt.Sprintf("%dx%d", w, h))
	}

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.Black,
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I((w-tw)/2) - bounds.Min.X,
			Y: fixed.I((h-th)/2) - bounds.Min.Y,
		},
	}
	d.DrawString(text)
	binarize(canvas)

	return rotate90(canvas), nil
}
