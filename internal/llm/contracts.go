package llm

import (
	"context"

	"github.com/escolab/pi-pipeline/internal/entity"
)

// ExtractRequest carries the normalized document text handed to the
// generative service, plus the original filename as a weak hint.
type ExtractRequest struct {
	Text         string
	FilenameHint string
}

// FieldExtractor is the interface the extraction engine depends on. The
// raw JSON emitted by the service is returned alongside the decoded result
// for diagnostics.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (*entity.ExtractionResult, []byte, error)
}
