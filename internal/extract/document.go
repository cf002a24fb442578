package extract

import "strings"

// row is one table row recovered from a structured container.
type row struct {
	cells []string
}

// document is the normalized representation every parser produces: table
// rows and flowed text lines, both in document order. Heuristics walk both;
// the AI step receives the rendered text.
type document struct {
	rows  []row
	lines []string
}

// text renders the document for the generative service: table rows as
// pipe-separated lines followed by the flowed text.
func (d document) text() string {
	var b strings.Builder
	for _, r := range d.rows {
		b.WriteString(strings.Join(r.cells, " | "))
		b.WriteString("\n")
	}
	for _, ln := range d.lines {
		b.WriteString(ln)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
