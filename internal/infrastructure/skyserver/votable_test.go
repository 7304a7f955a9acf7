package skyserver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siapResponse = `<?xml version="1.0" encoding="%s"?>
<VOTABLE version="1.1" xmlns="http://www.ivoa.net/xml/VOTable/v1.1">
 <RESOURCE type="results">
  <INFO name="QUERY_STATUS" value="OK"/>
  <TABLE>
   <FIELD name="Title" datatype="char" arraysize="*" ucd="VOX:Image_Title"/>
   <FIELD name="ra" datatype="double"/>
   <FIELD name="url" datatype="char" arraysize="*" ucd="VOX:Image_AccessReference"/>
   <DATA><TABLEDATA>
    <TR><TD>SDSS DR17 Filter u Field 3918-3-213</TD><TD>150.0</TD><TD>http://data/u.fits.bz2</TD></TR>
    <TR><TD> SDSS DR17 Filter r Field 3918-3-213 </TD><TD>150.0</TD><TD>http://data/r1.fits.bz2</TD></TR>
    <TR><TD>SDSS DR17 Filter r Field 3918-3-214</TD><TD>150.1</TD><TD>http://data/r2.fits.bz2</TD></TR>
   </TABLEDATA></DATA>
  </TABLE>
 </RESOURCE>
</VOTABLE>`

func response(encoding string) []byte {
	return []byte(fmt.Sprintf(siapResponse, encoding))
}

func TestParseVOTable(t *testing.T) {
	table, err := ParseVOTable(response("utf-8"))
	require.NoError(t, err)
	require.Len(t, table.Fields, 3)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, 2, table.Column("url"))
	assert.Equal(t, 0, table.Column("title"))
	assert.Equal(t, -1, table.Column("dec"))
	assert.Equal(t, "SDSS DR17 Filter r Field 3918-3-213", table.Rows[1][0])
}

func TestParseVOTableMisdeclaredEncoding(t *testing.T) {
	for _, enc := range []string{"UTF-16", "ISO-8859-1", "us-ascii"} {
		body := response(enc)
		body = append(body[:len(body)-len("</VOTABLE>")], []byte("<!-- \xff\xfe -->\n</VOTABLE>")...)
		table, err := ParseVOTable(body)
		require.NoError(t, err, enc)
		assert.Len(t, table.Rows, 3, enc)
	}
}

func TestNormalizeEncoding(t *testing.T) {
	got := NormalizeEncoding([]byte("<?xml version='1.0' encoding='latin-1'?><a>\xff</a>"))
	assert.Equal(t, "<?xml version='1.0' encoding=\"utf-8\"?><a>\uFFFD</a>", string(got))
}

func TestParseVOTableErrors(t *testing.T) {
	cases := map[string]string{
		"not xml":  "<<<",
		"no table": `<VOTABLE><RESOURCE/></VOTABLE>`,
		"binary":   `<VOTABLE><RESOURCE><TABLE><FIELD name="Title"/><DATA><BINARY/></DATA></TABLE></RESOURCE></VOTABLE>`,
		"status":   `<VOTABLE><RESOURCE><INFO name="QUERY_STATUS" value="ERROR">bad POS</INFO></RESOURCE></VOTABLE>`,
		"wide row": `<VOTABLE><RESOURCE><TABLE><FIELD name="Title"/><DATA><TABLEDATA><TR><TD>a</TD><TD>b</TD></TR></TABLEDATA></DATA></TABLE></RESOURCE></VOTABLE>`,
	}
	for name, body := range cases {
		_, err := ParseVOTable([]byte(body))
		assert.Error(t, err, name)
	}
}

func TestParseVOTableNestedAndEmpty(t *testing.T) {
	table, err := ParseVOTable([]byte(`<VOTABLE><RESOURCE><RESOURCE><TABLE><FIELD ID="Title"/><FIELD ID="url"/></TABLE></RESOURCE></RESOURCE></VOTABLE>`))
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Equal(t, 1, table.Column("url"))

	_, found, err := table.SelectBand("Filter r")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSelectBandFirstMatchWins(t *testing.T) {
	table, err := ParseVOTable(response("utf-8"))
	require.NoError(t, err)

	row, found, err := table.SelectBand("Filter r")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, row.Index)
	assert.Equal(t, "http://data/r1.fits.bz2", row.URL)

	_, found, err = table.SelectBand("Filter z")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSelectBandByUCD(t *testing.T) {
	table := &Table{
		Fields: []Field{{Name: "name", UCD: "VOX:Image_Title"}, {Name: "access", UCD: "vox:image_accessreference"}},
		Rows:   [][]string{{"Filter r", "http://x"}},
	}
	row, found, err := table.SelectBand("Filter r")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "http://x", row.URL)

	_, _, err = (&Table{Fields: []Field{{Name: "Title"}}}).SelectBand("Filter r")
	assert.Error(t, err)
}
