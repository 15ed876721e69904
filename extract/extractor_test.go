package extract

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestExtractPassesThroughProviderOutput(t *testing.T) {
	provider := &StaticProvider{
		Fields: []RawField{
			{Name: "invoice_number", Value: "INV-100", Confidence: 0.98,
				Location: Location{Page: 1, Left: 0.1, Top: 0.05, Width: 0.2, Height: 0.02}},
			{Name: "total_amount", Value: "119.00", Confidence: 0.91},
			{Name: "date", Value: "2026-08-01", Confidence: 0.64},
		},
	}
	ex := NewExtractor(provider, discardLogger())

	fields := ex.Extract(context.Background(), DocumentRef{URI: "s3://docs/inv-100.pdf"}, nil)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}

	for i, want := range provider.Fields {
		got := fields[i]
		if got.Name != want.Name || got.Value != want.Value {
			t.Errorf("field %d: got %s=%s, want %s=%s", i, got.Name, got.Value, want.Name, want.Value)
		}
		if got.Confidence != want.Confidence {
			t.Errorf("field %d: confidence modified: got %v, want %v", i, got.Confidence, want.Confidence)
		}
		if got.Location != want.Location {
			t.Errorf("field %d: location modified: got %+v, want %+v", i, got.Location, want.Location)
		}
		if got.ID.IsNil() {
			t.Errorf("field %d: missing ID", i)
		}
	}
}

func TestExtractProviderFailureYieldsEmptyList(t *testing.T) {
	provider := &StaticProvider{Err: errors.New("service unavailable")}
	ex := NewExtractor(provider, discardLogger())

	fields := ex.Extract(context.Background(), DocumentRef{URI: "s3://docs/bad.pdf"}, nil)
	if fields == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(fields) != 0 {
		t.Fatalf("expected 0 fields on provider failure, got %d", len(fields))
	}
}

func TestExtractNilProvider(t *testing.T) {
	ex := NewExtractor(nil, discardLogger())

	fields := ex.Extract(context.Background(), DocumentRef{URI: "anything"}, nil)
	if len(fields) != 0 {
		t.Fatalf("expected 0 fields without a provider, got %d", len(fields))
	}
}

func TestExtractStreamsFieldsInOrder(t *testing.T) {
	provider := &StaticProvider{
		Fields: []RawField{
			{Name: "invoice_number", Value: "INV-7", Confidence: 0.99},
			{Name: "date", Value: "2026-03-14", Confidence: 0.95},
			{Name: "total_amount", Value: "42.00", Confidence: 0.97},
		},
	}
	ex := NewExtractor(provider, discardLogger())

	var streamed []string
	fields := ex.Extract(context.Background(), DocumentRef{URI: "doc"}, func(f Field) {
		streamed = append(streamed, f.Name)
	})

	if len(streamed) != len(fields) {
		t.Fatalf("streamed %d fields, returned %d", len(streamed), len(fields))
	}
	want := []string{"invoice_number", "date", "total_amount"}
	for i, name := range want {
		if streamed[i] != name {
			t.Errorf("stream position %d: got %s, want %s", i, streamed[i], name)
		}
	}
}

func TestExtractProviderFunc(t *testing.T) {
	called := false
	p := ProviderFunc(func(ctx context.Context, ref DocumentRef) ([]RawField, error) {
		called = true
		return []RawField{{Name: "total", Value: "10", Confidence: 1}}, nil
	})
	ex := NewExtractor(p, discardLogger())

	fields := ex.Extract(context.Background(), DocumentRef{Data: []byte("%PDF")}, nil)
	if !called {
		t.Fatal("provider func not invoked")
	}
	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
}

func TestDocumentRefIsZero(t *testing.T) {
	tests := []struct {
		name string
		ref  DocumentRef
		want bool
	}{
		{"Empty", DocumentRef{}, true},
		{"URI", DocumentRef{URI: "s3://bucket/key"}, false},
		{"Data", DocumentRef{Data: []byte{1}}, false},
		{"VendorOnly", DocumentRef{VendorID: "acme"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.IsZero(); got != tt.want {
				t.Errorf("IsZero: got %v, want %v", got, tt.want)
			}
		})
	}
}
