package extract

import (
	"github.com/xraph/payable/id"
)

// DocumentRef identifies the invoice document to process. Either URI points at
// a stored document or Data carries the raw bytes inline; providers decide
// which they accept.
type DocumentRef struct {
	ID       id.DocumentID     `json:"id"`
	URI      string            `json:"uri,omitempty"`
	Data     []byte            `json:"-"`
	VendorID string            `json:"vendor_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsZero reports whether the reference carries neither a URI nor inline data.
func (r DocumentRef) IsZero() bool {
	return r.URI == "" && len(r.Data) == 0
}

// Location is the bounding box of a field on the source document. Coordinates
// are fractions of the page dimensions in [0,1], as reported by the provider.
type Location struct {
	Page   int     `json:"page"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Field is a single key/value pair recognized on the document. Confidence and
// Location come from the provider unmodified; the extractor never invents or
// rescales them. Fields are immutable once extracted.
type Field struct {
	ID         id.FieldID `json:"id"`
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Location   Location   `json:"location"`
}
