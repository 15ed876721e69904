// Package extract turns an opaque document reference into a list of named
// fields via a pluggable document-analysis provider.
package extract

import (
	"context"
	"log/slog"

	"github.com/xraph/payable/id"
)

// Extractor wraps a Provider and converts its raw output into identified
// fields. A provider failure is absorbed: the extractor logs a warning and
// returns an empty field list so downstream required-field checks fail on
// their own terms instead of the whole run erroring.
type Extractor struct {
	provider Provider
	logger   *slog.Logger
}

// NewExtractor builds an Extractor over the given provider. A nil logger
// defaults to slog.Default.
func NewExtractor(provider Provider, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{provider: provider, logger: logger}
}

// Extract analyzes the referenced document and returns the recognized fields
// in provider order. If onField is non-nil it is invoked once per field as the
// field is materialized, enabling callers to stream fields before the full
// list is available. Confidence and location pass through unmodified.
func (e *Extractor) Extract(ctx context.Context, ref DocumentRef, onField func(Field)) []Field {
	if e.provider == nil {
		e.logger.Warn("extract: no provider configured, returning zero fields")
		return []Field{}
	}

	raw, err := e.provider.Analyze(ctx, ref)
	if err != nil {
		e.logger.Warn("extract: provider analysis failed, returning zero fields",
			"provider", e.provider.Name(),
			"document", ref.ID.String(),
			"error", err)
		return []Field{}
	}

	fields := make([]Field, 0, len(raw))
	for _, rf := range raw {
		f := Field{
			ID:         id.NewFieldID(),
			Name:       rf.Name,
			Value:      rf.Value,
			Confidence: rf.Confidence,
			Location:   rf.Location,
		}
		fields = append(fields, f)
		if onField != nil {
			onField(f)
		}
	}
	return fields
}
