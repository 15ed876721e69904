package extract

import "context"

// RawField is one recognized key/value pair as returned by a document-analysis
// provider, before the extractor assigns it an identity.
type RawField struct {
	Name       string
	Value      string
	Confidence float64
	Location   Location
}

// Provider is the port to an external document-analysis (OCR) service. Analyze
// returns the recognized fields in provider order. Implementations should
// honor ctx cancellation; the extractor treats any returned error as "no
// fields recognized".
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Analyze runs document analysis against the referenced document.
	Analyze(ctx context.Context, ref DocumentRef) ([]RawField, error)
}

// ProviderFunc adapts a plain function into a Provider.
type ProviderFunc func(ctx context.Context, ref DocumentRef) ([]RawField, error)

func (f ProviderFunc) Name() string { return "func" }

func (f ProviderFunc) Analyze(ctx context.Context, ref DocumentRef) ([]RawField, error) {
	return f(ctx, ref)
}

// StaticProvider returns a fixed field set for every document. Useful in tests
// and for replaying captured provider output.
type StaticProvider struct {
	Fields []RawField
	Err    error
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) Analyze(ctx context.Context, ref DocumentRef) ([]RawField, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([]RawField, len(p.Fields))
	copy(out, p.Fields)
	return out, nil
}
