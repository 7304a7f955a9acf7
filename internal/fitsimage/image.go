// Package fitsimage decodes compressed survey frames and encodes cutouts as FITS files.
package fitsimage

import (
	"bytes"
	"io"
	"os"

	"github.com/astrogo/fitsio"
	"github.com/dsnet/compress/bzip2"
	"github.com/pkg/errors"
)

// Image is a two dimensional pixel array stored row-major with x varying fastest.
// Pixel values are physical, BSCALE and BZERO already applied.
type Image struct {
	Width  int
	Height int
	Bitpix int
	Pixels []float64
	Header *fitsio.Header
}

// At returns the pixel at zero-based (x, y).
func (img *Image) At(x, y int) float64 {
	return img.Pixels[y*img.Width+x]
}

// Decompress reads a whole bzip2 stream into memory.
func Decompress(r io.Reader) ([]byte, error) {
	zr, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open bzip2 stream")
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress bzip2 stream")
	}
	return raw, nil
}

// Decode parses the primary HDU of a FITS file.
func Decode(raw []byte) (*Image, error) {
	f, err := fitsio.Open(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open FITS file")
	}
	defer f.Close()

	if len(f.HDUs()) == 0 {
		return nil, errors.New("FITS file has no HDU")
	}
	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, errors.New("primary HDU is not an image")
	}
	hdr := hdu.Header()
	axes := hdr.Axes()
	if len(axes) != 2 {
		return nil, errors.Errorf("primary HDU has %d axes, expected 2", len(axes))
	}
	if axes[0] <= 0 || axes[1] <= 0 {
		return nil, errors.Errorf("primary HDU is empty (%dx%d)", axes[0], axes[1])
	}

	pixels, err := readPixels(hdu, axes[0]*axes[1])
	if err != nil {
		return nil, err
	}
	if len(pixels) != axes[0]*axes[1] {
		return nil, errors.Errorf("primary HDU holds %d pixels, expected %d", len(pixels), axes[0]*axes[1])
	}

	bscale, bzero := 1.0, 0.0
	if v, ok := headerFloat(hdr, "BSCALE"); ok {
		bscale = v
	}
	if v, ok := headerFloat(hdr, "BZERO"); ok {
		bzero = v
	}
	if bscale != 1 || bzero != 0 {
		for i, p := range pixels {
			pixels[i] = bzero + bscale*p
		}
	}

	return &Image{
		Width:  axes[0],
		Height: axes[1],
		Bitpix: hdr.Bitpix(),
		Pixels: pixels,
		Header: hdr,
	}, nil
}

// fitsio only reads into slices whose element size matches BITPIX and whose
// length already covers the n pixels of the HDU.
func readPixels(hdu fitsio.Image, n int) ([]float64, error) {
	var out []float64
	switch bitpix := hdu.Header().Bitpix(); bitpix {
	case 8:
		raw := make([]uint8, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to read 8-bit pixels")
		}
		out = make([]float64, len(raw))
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 16:
		raw := make([]int16, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to read 16-bit pixels")
		}
		out = make([]float64, len(raw))
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 32:
		raw := make([]int32, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to read 32-bit pixels")
		}
		out = make([]float64, len(raw))
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 64:
		raw := make([]int64, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to read 64-bit pixels")
		}
		out = make([]float64, len(raw))
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -32:
		raw := make([]float32, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to read float pixels")
		}
		out = make([]float64, len(raw))
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -64:
		out = make([]float64, n)
		if err := hdu.Read(&out); err != nil {
			return nil, errors.Wrap(err, "failed to read double pixels")
		}
	default:
		return nil, errors.Errorf("unsupported BITPIX %d", bitpix)
	}
	return out, nil
}

// OutputBitpix is the BITPIX a cutout of img is written with.
func OutputBitpix(img *Image) int {
	if img.Bitpix == -64 {
		return -64
	}
	return -32
}

// Encode writes img as a single primary HDU carrying the given extra cards.
// img.Header is ignored.
func Encode(w io.Writer, img *Image, cards []fitsio.Card) error {
	if img.Width <= 0 || img.Height <= 0 || len(img.Pixels) != img.Width*img.Height {
		return errors.Errorf("invalid image geometry %dx%d with %d pixels", img.Width, img.Height, len(img.Pixels))
	}

	f, err := fitsio.Create(w)
	if err != nil {
		return errors.Wrap(err, "failed to create FITS stream")
	}

	bitpix := OutputBitpix(img)
	phdu := fitsio.NewImage(bitpix, []int{img.Width, img.Height})
	defer phdu.Close()

	if len(cards) > 0 {
		if err := phdu.Header().Append(cards...); err != nil {
			return errors.Wrap(err, "failed to append header cards")
		}
	}

	if bitpix == -64 {
		err = phdu.Write(img.Pixels)
	} else {
		data := make([]float32, len(img.Pixels))
		for i, v := range img.Pixels {
			data[i] = float32(v)
		}
		err = phdu.Write(data)
	}
	if err != nil {
		return errors.Wrap(err, "failed to write pixels")
	}

	if err := f.Write(phdu); err != nil {
		return errors.Wrap(err, "failed to write primary HDU")
	}
	return errors.Wrap(f.Close(), "failed to close FITS stream")
}

// WriteFile encodes img to path, replacing any existing file.
func WriteFile(path string, img *Image, cards []fitsio.Card) error {
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	if err := Encode(out, img, cards); err != nil {
		out.Close()
		return err
	}
	return errors.Wrap(out.Close(), "failed to close output file")
}

func headerFloat(hdr *fitsio.Header, key string) (float64, bool) {
	card := hdr.Get(key)
	if card == nil {
		return 0, false
	}
	switch v := card.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
