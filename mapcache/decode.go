package mapcache

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/esimov/freestyle/pyramid"
	"github.com/esimov/freestyle/utils"

	// Register the webp decoder next to the formats known by imaging.
	_ "golang.org/x/image/webp"
)

// Decoder loads the source image of a map as an 8 bit gray grid.
type Decoder interface {
	Decode(path string) (*image.Gray, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(path string) (*image.Gray, error)

// Decode calls f(path).
func (f DecoderFunc) Decode(path string) (*image.Gray, error) { return f(path) }

// ImageDecoder is the default Decoder. It reads local files or downloads remote
// ones, accepts every format registered with the image package (jpeg, png, gif,
// bmp, tiff, webp) and flattens color images to gray.
type ImageDecoder struct{}

// Decode implements Decoder.
func (ImageDecoder) Decode(path string) (*image.Gray, error) {
	var (
		img image.Image
		err error
	)

	if utils.IsValidUrl(path) {
		img, err = decodeRemote(path)
	} else {
		img, err = decodeLocal(path)
	}
	if err != nil {
		return nil, err
	}
	return pyramid.FromImage(img).ToGray(), nil
}

func decodeLocal(path string) (image.Image, error) {
	ctype, err := utils.DetectContentType(path)
	if err != nil {
		return nil, fmt.Errorf("could not open the map file: %w", err)
	}
	// TIFF sniffs as application/octet-stream, so only textual payloads are refused here.
	if strings.HasPrefix(ctype, "text/") {
		return nil, fmt.Errorf("the map %q should be an image file, got %s", path, ctype)
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not decode the map file: %w", err)
	}
	return img, nil
}

func decodeRemote(uri string) (image.Image, error) {
	f, err := utils.DownloadImage(uri)
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode the map file: %w", err)
	}
	return img, nil
}
