package probe

import (
	"context"
	"errors"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io/fs"
	"path"
	"slices"
	"strings"

	_ "golang.org/x/image/webp" // register decoder
)

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Images summarizes the image tree.
type Images struct {
	Total       int            `json:"total_images"`
	TotalSizeMB float64        `json:"total_size_mb"`
	Large       []LargeImage   `json:"large_images"`
	Unoptimized []string       `json:"unoptimized_images"`
	Formats     map[string]int `json:"formats,omitempty"`
	Mismatched  []string       `json:"mismatched_extensions,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// LargeImage is an image above the size threshold.
type LargeImage struct {
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

// scanImages walks dir in fsys. An image is unoptimized when it is named
// .jpg or .jpeg but its pixels carry an alpha channel, which JPEG cannot
// store; such a file is really a PNG or WebP under the wrong name.
func scanImages(ctx context.Context, fsys fs.FS, dir string, largeBytes int64) (Images, error) {
	out := Images{Large: []LargeImage{}, Unoptimized: []string{}, Formats: map[string]int{}}
	var total int64

	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(p))
		if !slices.Contains(imageExts, ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		out.Total++
		total += info.Size()
		if info.Size() > largeBytes {
			out.Large = append(out.Large, LargeImage{Path: p, SizeMB: mib(info.Size())})
		}

		format, model, ok := decodeConfig(fsys, p)
		if !ok {
			return nil
		}
		out.Formats[format]++
		if !extMatches(ext, format) {
			out.Mismatched = append(out.Mismatched, p)
		}
		if (ext == ".jpg" || ext == ".jpeg") && hasAlpha(model) {
			out.Unoptimized = append(out.Unoptimized, p)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Images{}, err
		}
		out.Error = err.Error()
	}
	out.TotalSizeMB = mib(total)
	return out, nil
}

func decodeConfig(fsys fs.FS, p string) (string, color.Model, bool) {
	f, err := fsys.Open(p)
	if err != nil {
		return "", nil, false
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", nil, false
	}
	return format, cfg.ColorModel, true
}

func hasAlpha(m color.Model) bool {
	switch m {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return true
	}
	// A webp with alpha decodes to its own model type. Paletted images
	// are not flagged even when the palette has a transparent entry.
	return m == color.NYCbCrAModel
}

func extMatches(ext, format string) bool {
	switch format {
	case "jpeg":
		return ext == ".jpg" || ext == ".jpeg"
	default:
		return ext == "."+format
	}
}
