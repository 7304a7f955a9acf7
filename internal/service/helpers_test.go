package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/dsnet/compress/bzip2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/basel-ax/skycutout/internal/fitsimage"
)

const (
	frameWidth  = 400
	frameHeight = 300
	pixelScale  = 0.4 / 3600.0
)

const votableTemplate = `<?xml version="1.0" encoding="UTF-16"?>
<VOTABLE version="1.1">
 <RESOURCE type="results">
  <TABLE>
   <FIELD name="Title" datatype="char" arraysize="*"/>
   <FIELD name="url" datatype="char" arraysize="*"/>
   <DATA><TABLEDATA>%s</TABLEDATA></DATA>
  </TABLE>
 </RESOURCE>
</VOTABLE>`

func votable(rows ...[2]string) []byte {
	var buf bytes.Buffer
	for _, r := range rows {
		fmt.Fprintf(&buf, "<TR><TD>%s</TD><TD>%s</TD></TR>", r[0], r[1])
	}
	return []byte(fmt.Sprintf(votableTemplate, buf.String()))
}

func frameCards() []fitsio.Card {
	return []fitsio.Card{
		{Name: "CTYPE1", Value: "RA---TAN"},
		{Name: "CTYPE2", Value: "DEC--TAN"},
		{Name: "CRPIX1", Value: 200.5},
		{Name: "CRPIX2", Value: 150.5},
		{Name: "CRVAL1", Value: 150.0},
		{Name: "CRVAL2", Value: 20.0},
		{Name: "CD1_1", Value: -pixelScale},
		{Name: "CD1_2", Value: 0.0},
		{Name: "CD2_1", Value: 0.0},
		{Name: "CD2_2", Value: pixelScale},
		{Name: "RADESYS", Value: "ICRS"},
		{Name: "EQUINOX", Value: 2000.0},
	}
}

// frame returns a bzip2 compressed FITS frame whose pixel (x, y) holds x + 1000*y.
func frame(t *testing.T) []byte {
	t.Helper()
	img := &fitsimage.Image{Width: frameWidth, Height: frameHeight, Bitpix: -32, Pixels: make([]float64, frameWidth*frameHeight)}
	for y := 0; y < frameHeight; y++ {
		for x := 0; x < frameWidth; x++ {
			img.Pixels[y*frameWidth+x] = float64(x + 1000*y)
		}
	}
	var raw bytes.Buffer
	require.NoError(t, fitsimage.Encode(&raw, img, frameCards()))

	var buf bytes.Buffer
	zw, err := bzip2.NewWriter(&buf, nil)
	require.NoError(t, err)
	_, err = zw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type fakeSource struct {
	table      []byte
	image      []byte
	queryErr   error
	downErr    error
	queries    int
	downloads  []string
	lastSize   float64
	lastCenter [2]float64
}

func (f *fakeSource) QueryImages(_ context.Context, ra, dec, sizeDeg float64) ([]byte, error) {
	f.queries++
	f.lastCenter = [2]float64{ra, dec}
	f.lastSize = sizeDeg
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.table, nil
}

func (f *fakeSource) Download(_ context.Context, url string) ([]byte, error) {
	f.downloads = append(f.downloads, url)
	if f.downErr != nil {
		return nil, f.downErr
	}
	return f.image, nil
}

func (f *fakeSource) calls() int {
	return f.queries + len(f.downloads)
}

var errUnreachable = errors.New("connection refused")
