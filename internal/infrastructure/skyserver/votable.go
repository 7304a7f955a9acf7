package skyserver

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	titleColumn = "Title"
	urlColumn   = "url"

	titleUCD = "VOX:Image_Title"
	urlUCD   = "VOX:Image_AccessReference"
)

// the service sometimes declares an encoding its body is not in
var encodingDecl = regexp.MustCompile(`encoding=["'][^"']+["']`)

// Field describes one column of a VOTable.
type Field struct {
	Name     string `xml:"name,attr"`
	ID       string `xml:"ID,attr"`
	UCD      string `xml:"ucd,attr"`
	Datatype string `xml:"datatype,attr"`
}

// Table is the first table of a SIAP VOTable response.
type Table struct {
	Fields []Field
	Rows   [][]string
}

// Row is a candidate image of the metadata table.
type Row struct {
	Index int
	Title string
	URL   string
}

type votable struct {
	XMLName   xml.Name   `xml:"VOTABLE"`
	Resources []resource `xml:"RESOURCE"`
}

type resource struct {
	Type      string     `xml:"type,attr"`
	Infos     []info     `xml:"INFO"`
	Tables    []table    `xml:"TABLE"`
	Resources []resource `xml:"RESOURCE"`
}

type info struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
	Text  string `xml:",chardata"`
}

type table struct {
	Fields []Field `xml:"FIELD"`
	Data   struct {
		TableData *struct {
			Rows []struct {
				Cells []string `xml:"TD"`
			} `xml:"TR"`
		} `xml:"TABLEDATA"`
		Binary *struct{} `xml:"BINARY"`
	} `xml:"DATA"`
}

// NormalizeEncoding re-encodes body as UTF-8, replacing invalid sequences, and
// rewrites any declared encoding to utf-8.
func NormalizeEncoding(body []byte) []byte {
	s := strings.ToValidUTF8(string(body), "\uFFFD")
	return []byte(encodingDecl.ReplaceAllString(s, `encoding="utf-8"`))
}

// ParseVOTable decodes the first table of a VOTable document.
func ParseVOTable(body []byte) (*Table, error) {
	var doc votable
	dec := xml.NewDecoder(bytes.NewReader(NormalizeEncoding(body)))
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode VOTable")
	}

	if msg, failed := queryError(doc.Resources); failed {
		return nil, errors.Errorf("service reported query error: %s", msg)
	}

	t := firstTable(doc.Resources)
	if t == nil {
		return nil, errors.New("VOTable contains no TABLE")
	}
	if t.Data.Binary != nil {
		return nil, errors.New("BINARY serialization is not supported")
	}

	out := &Table{Fields: t.Fields}
	if t.Data.TableData == nil {
		return out, nil
	}
	for i, tr := range t.Data.TableData.Rows {
		if len(tr.Cells) > len(t.Fields) {
			return nil, errors.Errorf("row %d has %d cells for %d fields", i, len(tr.Cells), len(t.Fields))
		}
		cells := make([]string, len(t.Fields))
		for j, c := range tr.Cells {
			cells[j] = strings.TrimSpace(c)
		}
		out.Rows = append(out.Rows, cells)
	}
	return out, nil
}

func firstTable(resources []resource) *table {
	for i := range resources {
		if len(resources[i].Tables) > 0 {
			return &resources[i].Tables[0]
		}
		if t := firstTable(resources[i].Resources); t != nil {
			return t
		}
	}
	return nil
}

func queryError(resources []resource) (string, bool) {
	for _, r := range resources {
		for _, in := range r.Infos {
			if strings.EqualFold(in.Name, "QUERY_STATUS") && strings.EqualFold(in.Value, "ERROR") {
				return strings.TrimSpace(in.Text), true
			}
		}
		if msg, failed := queryError(r.Resources); failed {
			return msg, true
		}
	}
	return "", false
}

// Column returns the index of the named column, matching name, then ID, then
// name case-insensitively. It returns -1 when absent.
func (t *Table) Column(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	for i, f := range t.Fields {
		if f.ID == name {
			return i
		}
	}
	for i, f := range t.Fields {
		if strings.EqualFold(f.Name, name) || strings.EqualFold(f.ID, name) {
			return i
		}
	}
	return -1
}

func (t *Table) columnOrUCD(name, ucd string) int {
	if i := t.Column(name); i >= 0 {
		return i
	}
	for i, f := range t.Fields {
		if strings.EqualFold(f.UCD, ucd) {
			return i
		}
	}
	return -1
}

// SelectBand returns the first row, in table order, whose title contains marker.
func (t *Table) SelectBand(marker string) (Row, bool, error) {
	titleIdx := t.columnOrUCD(titleColumn, titleUCD)
	if titleIdx < 0 {
		return Row{}, false, errors.Errorf("table has no %s column", titleColumn)
	}
	urlIdx := t.columnOrUCD(urlColumn, urlUCD)
	if urlIdx < 0 {
		return Row{}, false, errors.Errorf("table has no %s column", urlColumn)
	}
	for i, cells := range t.Rows {
		if strings.Contains(cells[titleIdx], marker) {
			return Row{Index: i, Title: cells[titleIdx], URL: cells[urlIdx]}, true, nil
		}
	}
	return Row{}, false, nil
}
