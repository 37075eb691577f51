package imagex

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif" // register gif

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp (decode only)
)

// Decode sniffs and decodes an image, returning the registered format name
// ("jpeg", "png", "webp", "gif").
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Compress downscales img to fit within maxW x maxH (aspect ratio preserved)
// and re-encodes it. PNG input stays PNG; everything else comes out as JPEG
// at the given quality, since Go has no webp/heic encoder.
func Compress(img image.Image, format string, maxW, maxH, quality int) ([]byte, string, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w > maxW || h > maxH {
		scale := float64(maxW) / float64(w)
		if s := float64(maxH) / float64(h); s < scale {
			scale = s
		}
		nw := int(float64(w) * scale)
		nh := int(float64(h) * scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "png", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "jpeg", nil
	}
}
