package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/payable"
	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/id"
	"github.com/xraph/payable/run"
	"github.com/xraph/payable/types"
)

func TestRunLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	r := run.New(extract.DocumentRef{URI: "doc-1", VendorID: "acme"})
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := s.CreateRun(ctx, r); !errors.Is(err, payable.ErrAlreadyExists) {
		t.Errorf("duplicate create: got %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.ID != r.ID {
		t.Errorf("GetRun returned wrong run: %v", got.ID)
	}

	if _, err := s.GetRun(ctx, id.NewRunID()); !errors.Is(err, payable.ErrRunNotFound) {
		t.Errorf("missing run: got %v, want ErrRunNotFound", err)
	}

	r.Approve()
	if err := s.FinishRun(ctx, r); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	got, _ = s.GetRun(ctx, r.ID)
	if got.Decision != run.DecisionApproved {
		t.Errorf("decision not persisted: %v", got.Decision)
	}
}

func TestFinishRunUpserts(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Archive can land without a prior CreateRun.
	r := run.New(extract.DocumentRef{URI: "doc-2"})
	r.Reject("validation failed")
	if err := s.FinishRun(ctx, r); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	got, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun after upsert failed: %v", err)
	}
	if got.Decision != run.DecisionRejected {
		t.Errorf("decision: got %v, want rejected", got.Decision)
	}
}

func TestListRunsFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	approved := run.New(extract.DocumentRef{URI: "a", VendorID: "acme"})
	approved.Approve()
	rejected := run.New(extract.DocumentRef{URI: "b", VendorID: "acme"})
	rejected.Reject("risk")
	other := run.New(extract.DocumentRef{URI: "c", VendorID: "globex"})
	other.Approve()

	for _, r := range []*run.Run{approved, rejected, other} {
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	byVendor, err := s.ListRuns(ctx, run.ListOpts{VendorID: "acme"})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(byVendor) != 2 {
		t.Errorf("vendor filter: got %d runs, want 2", len(byVendor))
	}

	byDecision, err := s.ListRuns(ctx, run.ListOpts{Decision: run.DecisionRejected})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(byDecision) != 1 || byDecision[0].ID != rejected.ID {
		t.Errorf("decision filter returned wrong runs: %v", byDecision)
	}

	limited, err := s.ListRuns(ctx, run.ListOpts{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit: got %d, want 2", len(limited))
	}
}

func TestVendorHistory(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	if _, err := s.VendorHistory(ctx, "acme", 0); !errors.Is(err, payable.ErrNoVendorHistory) {
		t.Errorf("empty history: got %v, want ErrNoVendorHistory", err)
	}

	amounts := []int64{10000, 11000, 12000, 13000}
	for i, a := range amounts {
		if err := s.RecordAmount(ctx, "acme", types.USD(a), now.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("RecordAmount failed: %v", err)
		}
	}

	all, err := s.VendorHistory(ctx, "acme", 0)
	if err != nil {
		t.Fatalf("VendorHistory failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d amounts, want 4", len(all))
	}

	recent, err := s.VendorHistory(ctx, "acme", 2)
	if err != nil {
		t.Fatalf("VendorHistory failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Amount != 12000 || recent[1].Amount != 13000 {
		t.Errorf("limit should keep most recent, oldest first: %v", recent)
	}

	if err := s.RecordAmount(ctx, "", types.USD(100), now); !errors.Is(err, payable.ErrUnknownVendor) {
		t.Errorf("empty vendor: got %v, want ErrUnknownVendor", err)
	}
}

func TestAuditTrail(t *testing.T) {
	s := New()
	ctx := context.Background()

	r := run.New(extract.DocumentRef{URI: "doc"})
	first := run.NewAuditRecord(r.ID, run.StageValidation, "stage.completed", "success", nil)
	second := run.NewAuditRecord(r.ID, run.StageRisk, "gate.rejected", "failure", map[string]any{"score": 60})

	if err := s.AppendAudit(ctx, first); err != nil {
		t.Fatalf("AppendAudit failed: %v", err)
	}
	if err := s.AppendAudit(ctx, second); err != nil {
		t.Fatalf("AppendAudit failed: %v", err)
	}

	records, err := s.ListAudit(ctx, r.ID)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Action != "stage.completed" || records[1].Action != "gate.rejected" {
		t.Errorf("append order not preserved: %v, %v", records[0].Action, records[1].Action)
	}

	empty, err := s.ListAudit(ctx, id.NewRunID())
	if err != nil {
		t.Fatalf("ListAudit for unknown run failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty trail, got %d", len(empty))
	}
}

func TestClosedStore(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping on open store failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, payable.ErrStoreClosed) {
		t.Errorf("Ping after close: got %v, want ErrStoreClosed", err)
	}
	if err := s.CreateRun(ctx, run.New(extract.DocumentRef{URI: "x"})); !errors.Is(err, payable.ErrStoreClosed) {
		t.Errorf("CreateRun after close: got %v, want ErrStoreClosed", err)
	}
}
