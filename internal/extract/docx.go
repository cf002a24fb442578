package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/escolab/pi-pipeline/internal/common"
)

type docxParser struct{}

// parse opens the OOXML container and walks word/document.xml. Only the
// main document part is read; headers, footers and embedded parts are
// ignored.
func (docxParser) parse(path string) (document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return document{}, fmt.Errorf("%w: open docx container: %v", common.ErrParse, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return document{}, fmt.Errorf("%w: open word/document.xml: %v", common.ErrParse, err)
		}
		defer rc.Close()
		return walkWordprocessingXML(rc)
	}
	return document{}, fmt.Errorf("%w: word/document.xml missing from container", common.ErrParse)
}

// walkWordprocessingXML streams the document with a token decoder rather
// than materializing the full tree. Tables become rows, paragraphs outside
// tables become text lines.
func walkWordprocessingXML(r io.Reader) (document, error) {
	dec := xml.NewDecoder(r)

	var doc document
	var tableDepth int
	var inText bool
	var rowCells []string
	var cellBuf, paraBuf strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return document{}, fmt.Errorf("%w: decode word/document.xml: %v", common.ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tr":
				if tableDepth > 0 {
					rowCells = nil
				}
			case "tc":
				cellBuf.Reset()
			case "t":
				inText = true
			case "br", "cr":
				if tableDepth > 0 {
					cellBuf.WriteString(" ")
				} else {
					paraBuf.WriteString(" ")
				}
			case "tab":
				if tableDepth > 0 {
					cellBuf.WriteString(" ")
				} else {
					paraBuf.WriteString(" ")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if tableDepth > 0 {
					cellBuf.WriteString(" ")
				} else {
					if line := normalizeSpace(paraBuf.String()); line != "" {
						doc.lines = append(doc.lines, line)
					}
					paraBuf.Reset()
				}
			case "tc":
				rowCells = append(rowCells, normalizeSpace(cellBuf.String()))
				cellBuf.Reset()
			case "tr":
				if tableDepth > 0 && len(rowCells) > 0 {
					doc.rows = append(doc.rows, row{cells: rowCells})
					rowCells = nil
				}
			case "tbl":
				if tableDepth > 0 {
					tableDepth--
				}
			}
		case xml.CharData:
			if !inText {
				continue
			}
			if tableDepth > 0 {
				cellBuf.Write(t)
			} else {
				paraBuf.Write(t)
			}
		}
	}
	return doc, nil
}
