package extract

import (
	"regexp"
	"strings"

	"github.com/escolab/pi-pipeline/constants"
)

// Overrides holds deterministic values recovered directly from document
// structure. A non-zero override always wins over the generative result.
type Overrides struct {
	NomCognoms          string
	DataNaixement       string
	Curs                string
	Diagnostic          string
	AdaptacionsGenerals []string
	Orientacions        []string
}

// maxSectionLines bounds how far a free-text section scan runs when no end
// anchor is found before it.
const maxSectionLines = 40

var (
	reDate   = regexp.MustCompile(`\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}`)
	reBullet = regexp.MustCompile(`^[-–•*▪◦>\s]+`)
)

var affirmatives = map[string]struct{}{
	"sí": {}, "si": {}, "x": {}, "✓": {}, "yes": {},
}

var negatives = map[string]struct{}{
	"no": {}, "-": {}, "": {},
}

// scanOverrides runs the deterministic pass over the parsed document:
// table rows first, flowed lines second. Singular fields keep the first
// value seen; list sections accumulate in document order.
func scanOverrides(doc document) Overrides {
	var ov Overrides
	scanRows(doc.rows, &ov)
	scanLines(doc.lines, &ov)
	return ov
}

func scanRows(rows []row, ov *Overrides) {
	var section constants.SectionTarget

	for _, rw := range rows {
		joined := normalizeSpace(strings.Join(rw.cells, " "))

		// a row that is itself a section heading switches list context
		if target, ok := constants.MatchSectionAnchor(joined); ok && looksLikeHeading(joined) {
			section = target
			continue
		}

		// labeled singular fields: label cell followed by its value cell
		for i := 0; i+1 < len(rw.cells); i++ {
			label := rw.cells[i]
			value := strings.TrimSpace(rw.cells[i+1])
			if value == "" {
				continue
			}
			// labels naming a relational role never yield student data,
			// even when they embed a field keyword
			if constants.IsRelationalRole(label) {
				continue
			}
			kind, ok := constants.MatchFieldLabel(label)
			if !ok {
				continue
			}
			if _, valueIsLabel := constants.MatchFieldLabel(value); valueIsLabel {
				continue
			}
			recordField(ov, kind, value)
		}

		if section == "" || len(rw.cells) == 0 {
			continue
		}

		// selector rows: "measure | Sí" marks the measure as applied
		if len(rw.cells) >= 2 {
			mark := strings.ToLower(strings.TrimSpace(rw.cells[len(rw.cells)-1]))
			if _, yes := affirmatives[mark]; yes {
				item := normalizeSpace(strings.Join(rw.cells[:len(rw.cells)-1], " "))
				appendListItem(ov, section, item)
				continue
			}
			if _, no := negatives[mark]; no {
				continue
			}
		}

		// single-cell rows inside a section are plain list entries
		if len(rw.cells) == 1 {
			appendListItem(ov, section, rw.cells[0])
		}
	}
}

func scanLines(lines []string, ov *Overrides) {
	var section constants.SectionTarget
	var span int

	for _, ln := range lines {
		line := strings.TrimSpace(ln)
		if line == "" {
			continue
		}

		if target, ok := constants.MatchSectionAnchor(line); ok && looksLikeHeading(line) {
			section = target
			span = 0
			continue
		}

		// labeled singular fields: "Curs: 3r ESO"
		if idx := strings.Index(line, ":"); idx > 0 {
			label := line[:idx]
			value := strings.TrimSpace(line[idx+1:])
			if value != "" && !constants.IsRelationalRole(label) {
				if kind, ok := constants.MatchFieldLabel(label); ok {
					recordField(ov, kind, value)
					continue
				}
			}
		}

		if section == "" {
			continue
		}

		// a new heading or an exhausted span closes the section
		if isSectionTerminator(line) || span >= maxSectionLines {
			section = ""
			continue
		}
		span++
		appendListItem(ov, section, line)
	}
}

// recordField keeps the first plausible value per field. Values are
// literal spans from the document, never synthesized.
func recordField(ov *Overrides, kind constants.FieldKind, value string) {
	if !plausibleValue(kind, value) {
		return
	}
	switch kind {
	case constants.FieldName:
		if ov.NomCognoms == "" {
			ov.NomCognoms = value
		}
	case constants.FieldBirthDate:
		if ov.DataNaixement == "" {
			ov.DataNaixement = value
		}
	case constants.FieldCourse:
		if ov.Curs == "" {
			ov.Curs = value
		}
	case constants.FieldDiagnosis:
		if ov.Diagnostic == "" {
			ov.Diagnostic = value
		}
	}
}

func plausibleValue(kind constants.FieldKind, value string) bool {
	if len(value) > 200 {
		return false
	}
	switch kind {
	case constants.FieldBirthDate:
		return reDate.MatchString(value)
	case constants.FieldName:
		return !reDate.MatchString(value)
	}
	return true
}

func appendListItem(ov *Overrides, section constants.SectionTarget, raw string) {
	item := normalizeSpace(reBullet.ReplaceAllString(raw, ""))
	if isTrashLine(item) {
		return
	}
	switch section {
	case constants.SectionAdaptations:
		ov.AdaptacionsGenerals = append(ov.AdaptacionsGenerals, item)
	case constants.SectionOrientations:
		ov.Orientacions = append(ov.Orientacions, item)
	}
}

// isTrashLine drops entries that restate a section header or carry no
// usable content.
func isTrashLine(item string) bool {
	if len([]rune(item)) < 4 {
		return true
	}
	if _, ok := constants.MatchSectionAnchor(item); ok {
		return true
	}
	return false
}

var reNumberedHeading = regexp.MustCompile(`^\d+[\.\)]\s`)

// isSectionTerminator recognizes lines that open an unrelated block:
// numbered headings, trailing-colon titles and shouted all-caps lines.
// Ordinary short list entries must not qualify.
func isSectionTerminator(s string) bool {
	if !looksLikeHeading(s) {
		return false
	}
	if strings.HasSuffix(s, ":") || reNumberedHeading.MatchString(s) {
		return true
	}
	return s == strings.ToUpper(s) && s != strings.ToLower(s)
}

func looksLikeHeading(s string) bool {
	if len([]rune(s)) > 80 {
		return false
	}
	if strings.HasSuffix(s, ".") {
		return false
	}
	return strings.Count(s, " ") <= 9
}
