package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/escolab/pi-pipeline/internal/common"
)

type textParser struct{}

func (textParser) parse(path string) (document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return document{}, fmt.Errorf("%w: read text file: %v", common.ErrParse, err)
	}

	var doc document
	normalized := strings.ReplaceAll(string(raw), "\r\n", "\n")
	for _, ln := range strings.Split(normalized, "\n") {
		if line := strings.TrimSpace(ln); line != "" {
			doc.lines = append(doc.lines, line)
		}
	}
	return doc, nil
}
