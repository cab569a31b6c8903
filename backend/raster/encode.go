package raster

import (
	"errors"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
)

// ErrUnsupportedFormat is returned by Encode for unknown output extensions.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Encode writes the frame to w in the format named by ext (".png", ".jpg",
// ".jpeg" or ".bmp"). An empty ext picks the extension of w when it is a file
// and falls back to jpeg.
func (d *Device) Encode(w io.Writer, ext string) error {
	if ext == "" {
		if f, ok := w.(*os.File); ok {
			ext = filepath.Ext(f.Name())
		}
	}

	switch strings.ToLower(ext) {
	case "", ".jpg", ".jpeg":
		return jpeg.Encode(w, d.frame, &jpeg.Options{Quality: 100})
	case ".png":
		return png.Encode(w, d.frame)
	case ".bmp":
		return bmp.Encode(w, d.frame)
	}
	return ErrUnsupportedFormat
}
