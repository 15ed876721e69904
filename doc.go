// Package payable provides a composable invoice-processing pipeline for Go
// applications.
//
// Payable is designed as a library, not a service. Import it directly into
// your Go application for maximum performance and flexibility. It provides:
//
//   - Pluggable field extraction from invoice documents
//   - Structural validation with configurable required fields
//   - Tax/GST compliance checking with per-jurisdiction rates
//   - Fraud risk scoring over document rules and vendor history
//   - Balanced double-entry ledger coding for approved invoices
//   - Streaming progress events and a persistent audit trail
//
// # Quick Start
//
// Create an engine with your preferred store and document provider:
//
//	import (
//	    "github.com/xraph/payable"
//	    "github.com/xraph/payable/extract"
//	    "github.com/xraph/payable/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	eng := payable.New(store, payable.WithProvider(provider))
//
//	// Start the engine (begins background workers)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// A document reference points the pipeline at an invoice:
//
//	ref := extract.DocumentRef{
//	    URI:      "s3://invoices/inv-1001.pdf",
//	    VendorID: "ven_acme",
//	}
//
// Process runs the five-stage pipeline and returns the finished run:
//
//	rn, err := eng.Process(ctx, ref)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if rn.Decision == run.DecisionApproved {
//	    for _, entry := range rn.Postings {
//	        // post entry to your general ledger
//	    }
//	}
//
// A rejection at any gate is a normal outcome, not an error: the run carries
// Decision "rejected" and a human-readable Reason. Process returns a non-nil
// error only when a stage fails unexpectedly (provider outage, unbalanced
// postings, store failures).
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents for USD, pence for GBP, etc). Tax comparisons and
// tolerances are computed with half-up integer rounding so that the same
// document always produces the same decision.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	run_01h2xcejqtf2nbrexx3vqjhp41   // Run ID
//	doc_01h2xcejqtf2nbrexx3vqjhp41   // Document ID
//	fld_01h455vb4pex5vsknk084sn02q   // Field ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package payable
