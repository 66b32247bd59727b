// Package imaging turns arbitrary images and text into print-head-wide 1-bit
// bitmaps for the raster encoder.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"log/slog"
	"os"

	_ "golang.org/x/image/bmp"  // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/chaz8081/fichero/internal/ble/protocol"
	"github.com/chaz8081/fichero/internal/raster"
)

const (
	// Threshold is the gray level below which a pixel prints.
	Threshold = 128
	// ContrastCutoff is the percentage of pixels ignored at each end of the
	// histogram when stretching contrast.
	ContrastCutoff = 1.0
)

// Decode reads any registered image format (PNG, JPEG, GIF, BMP, WebP).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode: %w", err)
	}
	return img, format, nil
}

// Open decodes the image file at path.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imaging: %w", err)
	}
	defer f.Close()

	img, format, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	slog.Debug("[IMG] decoded", "path", path, "format", format, "size", img.Bounds().Size())
	return img, nil
}

// Prepare converts img into a PrintheadPx-wide bitmap: grayscale, scaled to
// the print head width with the aspect ratio kept, contrast stretched, then
// thresholded. Images taller than maxRows after scaling lose their bottom
// rows, and truncated reports that this happened. The rows that will not
// print are dropped before scaling, so they never reach the contrast stretch.
func Prepare(img image.Image, maxRows int) (m *raster.Mono, truncated bool, err error) {
	if maxRows < 1 {
		return nil, false, fmt.Errorf("imaging: max rows must be positive, got %d: %w", maxRows, protocol.ErrInvalidArgument)
	}
	sb := img.Bounds()
	if sb.Empty() {
		return nil, false, fmt.Errorf("imaging: empty image: %w", protocol.ErrInvalidArgument)
	}

	src := sb
	rows := max(1, sb.Dy()*raster.PrintheadPx/sb.Dx())
	if rows > maxRows {
		slog.Warn("[IMG] image taller than label, cropping bottom", "rows", rows, "max_rows", maxRows)
		keep := (maxRows*sb.Dx() + raster.PrintheadPx/2) / raster.PrintheadPx
		src.Max.Y = src.Min.Y + min(sb.Dy(), max(1, keep))
		rows = maxRows
		truncated = true
	}

	gray := toGray(img, src, raster.PrintheadPx, rows)
	autocontrast(gray, ContrastCutoff)

	m = raster.NewMono(rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < raster.PrintheadPx; x++ {
			if gray.GrayAt(x, y).Y < Threshold {
				m.Set(x, y, true)
			}
		}
	}
	return m, truncated, nil
}

// toGray scales the src region of img onto a white w by h grayscale canvas.
// Transparent areas come out white.
func toGray(img image.Image, src image.Rectangle, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}

// autocontrast stretches the gray levels of g so the darkest and lightest
// levels left after dropping cutoff percent of pixels at each end map to 0
// and 255.
func autocontrast(g *image.Gray, cutoff float64) {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}

	cut := int(float64(len(g.Pix)) * cutoff / 100)
	for i, remaining := 0, cut; i < 256 && remaining > 0; i++ {
		n := min(hist[i], remaining)
		hist[i] -= n
		remaining -= n
	}
	for i, remaining := 255, cut; i >= 0 && remaining > 0; i-- {
		n := min(hist[i], remaining)
		hist[i] -= n
		remaining -= n
	}

	lo, hi := 0, 255
	for lo < 256 && hist[lo] == 0 {
		lo++
	}
	for hi >= 0 && hist[hi] == 0 {
		hi--
	}
	if hi <= lo {
		return
	}

	var lut [256]uint8
	scale := 255.0 / float64(hi-lo)
	for i := range lut {
		v := int(float64(i-lo) * scale)
		lut[i] = uint8(max(0, min(255, v)))
	}
	for i, v := range g.Pix {
		g.Pix[i] = lut[v]
	}
}

// rotate90 rotates g a quarter turn counterclockwise.
func rotate90(g *image.Gray) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			dst.SetGray(x, y, g.GrayAt(b.Min.X+w-1-y, b.Min.Y+x))
		}
	}
	return dst
}

// binarize snaps every pixel of g to black or white.
func binarize(g *image.Gray) {
	for i, v := range g.Pix {
		if v < Threshold {
			g.Pix[i] = color.Gray{}.Y
		} else {
			g.Pix[i] = color.Gray{Y: 0xFF}.Y
		}
	}
}
