// Package thumbnail downscales captured frames before they are persisted,
// so the cache holds preview-sized images rather than full screenshots.
package thumbnail

import (
	"bytes"
	"fmt"

	"github.com/sunshineplan/imgconv"
)

// Options bound the persisted image. Zero MaxWidth and MaxHeight disable
// scaling; Format selects the output encoding ("png" or "jpeg").
type Options struct {
	MaxWidth  int
	MaxHeight int
	Format    string
}

// Fit decodes a captured frame, scales it down to fit the bounding box
// while keeping aspect ratio, and re-encodes it in the requested format.
// Images already inside the box are re-encoded only when the format differs;
// otherwise the input bytes are returned untouched.
func Fit(data []byte, opt Options) ([]byte, error) {
	if opt.MaxWidth <= 0 && opt.MaxHeight <= 0 {
		return data, nil
	}

	img, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decode: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := 1.0
	if opt.MaxWidth > 0 && w > opt.MaxWidth {
		scale = float64(opt.MaxWidth) / float64(w)
	}
	if opt.MaxHeight > 0 && h > opt.MaxHeight {
		if s := float64(opt.MaxHeight) / float64(h); s < scale {
			scale = s
		}
	}

	if scale >= 1.0 {
		return data, nil
	}

	resized := imgconv.Resize(img, &imgconv.ResizeOption{
		Width: int(float64(w) * scale),
	})

	format := imgconv.PNG
	var encOpts []imgconv.EncodeOption
	if opt.Format == "jpeg" {
		format = imgconv.JPEG
		encOpts = append(encOpts, imgconv.Quality(85))
	}

	var buf bytes.Buffer
	err = imgconv.Write(&buf, resized, &imgconv.FormatOption{
		Format:       format,
		EncodeOption: encOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("thumbnail: encode: %w", err)
	}
	return buf.Bytes(), nil
}
