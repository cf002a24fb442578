package entity

// StudentDetails carries the student-identity block of an extraction.
// Scalars are pointers: nil means "not found in the document". A found but
// empty value never occurs; empty matches are recorded as nil.
type StudentDetails struct {
	NomCognoms    *string `json:"nomCognoms"`
	DataNaixement *string `json:"dataNaixement"`
	Curs          *string `json:"curs"`
}

// ReasonDetails carries the reason/diagnosis block.
type ReasonDetails struct {
	Diagnostic *string `json:"diagnostic"`
}

// ExtractionResult is the structured output contract of the extraction
// engine. Values are exact text spans from the source document; dates are
// kept as literal text with no normalization. List fields are always
// non-nil, possibly empty.
type ExtractionResult struct {
	DadesAlumne         StudentDetails `json:"dadesAlumne"`
	Motiu               ReasonDetails  `json:"motiu"`
	AdaptacionsGenerals []string       `json:"adaptacionsGenerals"`
	Orientacions        []string       `json:"orientacions"`
}

// NewExtractionResult returns an empty result with non-nil list fields.
func NewExtractionResult() *ExtractionResult {
	return &ExtractionResult{
		AdaptacionsGenerals: []string{},
		Orientacions:        []string{},
	}
}

// EnsureLists replaces nil list fields with empty slices. Decoded AI output
// passes through here so the "lists are never null" invariant holds no
// matter what the model returned.
func (r *ExtractionResult) EnsureLists() {
	if r.AdaptacionsGenerals == nil {
		r.AdaptacionsGenerals = []string{}
	}
	if r.Orientacions == nil {
		r.Orientacions = []string{}
	}
}
