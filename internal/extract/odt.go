package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/escolab/pi-pipeline/internal/common"
)

type odtParser struct{}

// parse opens the OpenDocument container and walks content.xml. Unlike
// OOXML, character data lives directly under text:p, so capture is gated
// on paragraph depth rather than a run element.
func (odtParser) parse(path string) (document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return document{}, fmt.Errorf("%w: open odt container: %v", common.ErrParse, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "content.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return document{}, fmt.Errorf("%w: open content.xml: %v", common.ErrParse, err)
		}
		defer rc.Close()
		return walkContentXML(rc)
	}
	return document{}, fmt.Errorf("%w: content.xml missing from container", common.ErrParse)
}

func walkContentXML(r io.Reader) (document, error) {
	dec := xml.NewDecoder(r)

	var doc document
	var tableDepth, paraDepth int
	var rowCells []string
	var cellBuf, paraBuf strings.Builder

	write := func(s string) {
		if tableDepth > 0 {
			cellBuf.WriteString(s)
		} else {
			paraBuf.WriteString(s)
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return document{}, fmt.Errorf("%w: decode content.xml: %v", common.ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
				tableDepth++
			case "table-row":
				if tableDepth > 0 {
					rowCells = nil
				}
			case "table-cell":
				cellBuf.Reset()
			case "p", "h":
				paraDepth++
			case "s", "tab", "line-break":
				write(" ")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "h":
				if paraDepth > 0 {
					paraDepth--
				}
				if tableDepth > 0 {
					cellBuf.WriteString(" ")
				} else {
					if line := normalizeSpace(paraBuf.String()); line != "" {
						doc.lines = append(doc.lines, line)
					}
					paraBuf.Reset()
				}
			case "table-cell":
				rowCells = append(rowCells, normalizeSpace(cellBuf.String()))
				cellBuf.Reset()
			case "table-row":
				if tableDepth > 0 && len(rowCells) > 0 {
					doc.rows = append(doc.rows, row{cells: rowCells})
					rowCells = nil
				}
			case "table":
				if tableDepth > 0 {
					tableDepth--
				}
			}
		case xml.CharData:
			if paraDepth == 0 {
				continue
			}
			write(string(t))
		}
	}
	return doc, nil
}
