package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/escolab/pi-pipeline/constants"
	"github.com/escolab/pi-pipeline/internal/common"
	"github.com/escolab/pi-pipeline/internal/entity"
	"github.com/escolab/pi-pipeline/internal/llm"
)

// Engine turns a stored document into the structured extraction result.
// It runs the structural pass first, consults the generative service for
// whatever structure alone cannot answer, and merges the two with the
// structural pass winning.
type Engine struct {
	ai     llm.FieldExtractor
	logger *slog.Logger
}

func NewEngine(ai llm.FieldExtractor, logger *slog.Logger) *Engine {
	return &Engine{ai: ai, logger: logger}
}

type parser interface {
	parse(path string) (document, error)
}

func parserFor(format constants.FileFormat) (parser, bool) {
	switch format {
	case constants.DOCX:
		return docxParser{}, true
	case constants.ODT:
		return odtParser{}, true
	case constants.TXT:
		return textParser{}, true
	}
	return nil, false
}

// Extract processes the file at filePath. The original filename decides
// the format; files whose extension is outside the supported set fail
// without touching the content.
func (e *Engine) Extract(ctx context.Context, filePath, originalFilename string) (*entity.ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(originalFilename))

	format := constants.MapExtToFormat(ext)
	if format == "" {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, ext)
	}
	p, ok := parserFor(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, ext)
	}

	doc, err := p.parse(filePath)
	if err != nil {
		return nil, err
	}

	ov := scanOverrides(doc)
	e.logger.Debug("extract.scan.done",
		"filename", originalFilename,
		"rows", len(doc.rows),
		"lines", len(doc.lines),
		"adaptacions", len(ov.AdaptacionsGenerals),
		"orientacions", len(ov.Orientacions))

	base, _, err := e.ai.ExtractFields(ctx, llm.ExtractRequest{
		Text:         doc.text(),
		FilenameHint: originalFilename,
	})
	if err != nil {
		return nil, err
	}

	res := mergeOverrides(base, ov)
	e.logger.Info("extract.done",
		"filename", originalFilename,
		"format", string(format),
		"elapsed_ms", time.Since(start).Milliseconds())
	return res, nil
}
