package payable_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/payable"
	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/run"
	"github.com/xraph/payable/store/memory"
	"github.com/xraph/payable/types"
	"github.com/xraph/payable/validate"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// A provider bridges the document source (OCR service, parser) into
		// the pipeline. StaticProvider is handy for demos and tests.
		provider := &extract.StaticProvider{
			Fields: []extract.RawField{
				{Name: "Invoice Number", Value: "INV-1001", Confidence: 0.99},
				{Name: "Date", Value: "2026-02-14", Confidence: 0.97},
				{Name: "Total Amount", Value: "119.00", Confidence: 0.98},
				{Name: "Tax", Value: "19.00", Confidence: 0.96},
			},
		}

		// Initialize the engine with options
		eng := payable.New(store,
			payable.WithLogger(slog.Default()),
			payable.WithProvider(provider),
			payable.WithValidator(validate.DefaultConfig()),
			payable.WithGateThreshold(50),
		)

		// Start the engine
		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer eng.Stop()

		// Process an invoice document
		ref := extract.DocumentRef{
			URI:      "s3://invoices/inv-1001.pdf",
			VendorID: "ven_acme",
		}
		rn, err := eng.Process(ctx, ref)
		if err != nil {
			t.Fatal(err)
		}

		if rn.Decision == run.DecisionApproved {
			for _, entry := range rn.Postings {
				log.Printf("%s %s debit=%s credit=%s\n",
					entry.Code, entry.Account, entry.Debit, entry.Credit)
			}
		} else {
			log.Printf("invoice rejected: %s\n", rn.Reason)
		}
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4900)   // $49.00
		_ = types.EUR(9900)   // €99.00
		_ = types.Zero("usd") // $0.00

		// Parsing document field values
		m, err := types.ParseMajor("1,234.56", "usd")
		if err != nil {
			t.Fatal(err)
		}

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)     // $3.00
		_ = m1.Multiply(3) // $3.00
		_ = m1.Divide(2)   // $0.50

		// Tax helpers
		_ = m.TaxFromGross(1800) // tax portion at 18% from a gross total
		_ = m.Percent(200)       // 2% of m, rounded half up

		// Comparison
		if m1.LessThan(m2) {
			// m1 is less than m2
		}

		// Formatting
		_ = m1.String()      // "$1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}
