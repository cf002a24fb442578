package constants

import "strings"

// FieldKind identifies one of the singular fields the heuristic scan can
// recover from labeled document structure.
type FieldKind string

const (
	FieldName      FieldKind = "nomCognoms"
	FieldBirthDate FieldKind = "dataNaixement"
	FieldCourse    FieldKind = "curs"
	FieldDiagnosis FieldKind = "diagnostic"
)

// fieldLabels maps lowercased label prefixes to the field they announce.
// Order matters: more specific prefixes are listed before generic ones.
var fieldLabels = []struct {
	prefix string
	kind   FieldKind
}{
	{"nom i cognoms", FieldName},
	{"cognoms i nom", FieldName},
	{"nom de l'alumne", FieldName},
	{"alumne/a", FieldName},
	{"alumne", FieldName},
	{"data de naixement", FieldBirthDate},
	{"data naixement", FieldBirthDate},
	{"naixement", FieldBirthDate},
	{"curs escolar", FieldCourse},
	{"curs i grup", FieldCourse},
	{"curs", FieldCourse},
	{"nivell educatiu", FieldCourse},
	{"nivell", FieldCourse},
	{"diagnòstic", FieldDiagnosis},
	{"diagnostic", FieldDiagnosis},
	{"motiu del pi", FieldDiagnosis},
	{"motiu", FieldDiagnosis},
}

// relationalRoles lists labels that name a staff member, parent, or legal
// guardian. A label containing one of these never yields a student field.
var relationalRoles = []string{
	"tutor",
	"tutora",
	"tutor/a",
	"tutor legal",
	"pare",
	"mare",
	"progenitor",
	"guarda legal",
	"representant legal",
	"professor",
	"professora",
	"professor/a",
	"mestre",
	"mestra",
	"mestre/a",
	"docent",
	"orientador",
	"orientadora",
	"psicopedagog",
	"psicopedagoga",
	"director",
	"directora",
	"cap d'estudis",
	"família",
	"familia",
	"familiar",
}

// SectionTarget identifies a list-valued field fed by a named section.
type SectionTarget string

const (
	SectionAdaptations  SectionTarget = "adaptacionsGenerals"
	SectionOrientations SectionTarget = "orientacions"
)

// sectionAnchors maps lowercased heading keywords to the list they open.
var sectionAnchors = []struct {
	keyword string
	target  SectionTarget
}{
	{"adaptacions generals", SectionAdaptations},
	{"adaptacions", SectionAdaptations},
	{"mesures i suports", SectionAdaptations},
	{"mesures", SectionAdaptations},
	{"metodologia", SectionAdaptations},
	{"orientacions", SectionOrientations},
}

// MatchFieldLabel reports which singular field a label cell announces.
// Matching is prefix-based on the normalized label so decorated labels
// ("Nom i cognoms de l'alumne:") still hit.
func MatchFieldLabel(label string) (FieldKind, bool) {
	norm := normalizeLabel(label)
	if norm == "" {
		return "", false
	}
	for _, fl := range fieldLabels {
		if strings.HasPrefix(norm, fl.prefix) {
			return fl.kind, true
		}
	}
	return "", false
}

// IsRelationalRole reports whether a label belongs to a parent, guardian,
// or staff role and must be excluded from student-field matching.
func IsRelationalRole(label string) bool {
	norm := normalizeLabel(label)
	for _, role := range relationalRoles {
		if strings.Contains(norm, role) {
			return true
		}
	}
	return false
}

// MatchSectionAnchor reports which list a heading line opens, if any.
func MatchSectionAnchor(line string) (SectionTarget, bool) {
	norm := normalizeLabel(line)
	if norm == "" {
		return "", false
	}
	for _, sa := range sectionAnchors {
		if strings.HasPrefix(norm, sa.keyword) {
			return sa.target, true
		}
	}
	return "", false
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ":.- \t")
	// strip leading enumeration ("3.", "6.2", "a)") so numbered headings
	// and labels still match their keyword
	s = strings.TrimLeft(s, "0123456789.-) \t")
	return s
}
