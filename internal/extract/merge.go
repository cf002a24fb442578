package extract

import "github.com/escolab/pi-pipeline/internal/entity"

// mergeOverrides folds deterministic overrides into the generative result.
// Precedence is fixed: anything the structural scan found replaces the
// model's answer for that field.
func mergeOverrides(base *entity.ExtractionResult, ov Overrides) *entity.ExtractionResult {
	out := base
	if out == nil {
		out = entity.NewExtractionResult()
	}

	if ov.NomCognoms != "" {
		out.DadesAlumne.NomCognoms = strPtr(ov.NomCognoms)
	}
	if ov.DataNaixement != "" {
		out.DadesAlumne.DataNaixement = strPtr(ov.DataNaixement)
	}
	if ov.Curs != "" {
		out.DadesAlumne.Curs = strPtr(ov.Curs)
	}
	if ov.Diagnostic != "" {
		out.Motiu.Diagnostic = strPtr(ov.Diagnostic)
	}
	if len(ov.AdaptacionsGenerals) > 0 {
		out.AdaptacionsGenerals = ov.AdaptacionsGenerals
	}
	if len(ov.Orientacions) > 0 {
		out.Orientacions = ov.Orientacions
	}

	out.EnsureLists()
	return out
}

func strPtr(s string) *string { return &s }
