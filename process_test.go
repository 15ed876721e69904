package payable_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/payable"
	"github.com/xraph/payable/comply"
	"github.com/xraph/payable/event"
	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/posting"
	"github.com/xraph/payable/risk"
	"github.com/xraph/payable/run"
	"github.com/xraph/payable/store/memory"
	"github.com/xraph/payable/types"
)

// cleanInvoice is a document that sails through every gate at the default
// configuration: $119.00 total carrying $19.00 tax at the 18% rate.
func cleanInvoice() []extract.RawField {
	return []extract.RawField{
		{Name: "Invoice Number", Value: "INV-1001", Confidence: 0.99},
		{Name: "Date", Value: "2026-02-14", Confidence: 0.97},
		{Name: "Total Amount", Value: "119.00", Confidence: 0.98},
		{Name: "Tax", Value: "19.00", Confidence: 0.96},
	}
}

func newEngine(t *testing.T, opts ...payable.Option) *payable.Engine {
	t.Helper()
	opts = append([]payable.Option{
		payable.WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)
	eng := payable.New(memory.New(), opts...)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop() })
	return eng
}

// progressSink collects pipeline progress events for assertions.
type progressSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *progressSink) Name() string { return "test-progress-sink" }

func (s *progressSink) SendEvent(evt event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *progressSink) snapshot() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestProcessApprovesCleanInvoice(t *testing.T) {
	eng := newEngine(t,
		payable.WithProvider(&extract.StaticProvider{Fields: cleanInvoice()}),
	)

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf", VendorID: "ven_acme"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if rn.Decision != run.DecisionApproved {
		t.Fatalf("decision = %q (reason %q), want approved", rn.Decision, rn.Reason)
	}
	if rn.State != run.StateApproved {
		t.Errorf("state = %q, want APPROVED", rn.State)
	}
	if rn.CompletedAt == nil {
		t.Error("expected CompletedAt set on terminal run")
	}
	if rn.Validation == nil || !rn.Validation.Valid {
		t.Errorf("validation = %+v, want valid", rn.Validation)
	}
	if rn.Compliance == nil || !rn.Compliance.Compliant {
		t.Errorf("compliance = %+v, want compliant", rn.Compliance)
	}
	if rn.Risk == nil || rn.Risk.Level != risk.LevelLow {
		t.Errorf("risk = %+v, want LOW", rn.Risk)
	}

	if len(rn.Postings) != 3 {
		t.Fatalf("postings = %d entries, want 3", len(rn.Postings))
	}
	if got := rn.Postings[0].Debit; !got.Equal(types.USD(10000)) {
		t.Errorf("expense debit = %s, want $100.00", got)
	}
	if got := rn.Postings[1].Debit; !got.Equal(types.USD(1900)) {
		t.Errorf("input tax debit = %s, want $19.00", got)
	}
	if got := rn.Postings[2].Credit; !got.Equal(types.USD(11900)) {
		t.Errorf("payable credit = %s, want $119.00", got)
	}
	if !rn.Postings.Balanced() {
		t.Error("postings do not balance")
	}
}

func TestProcessRejectsAtValidation(t *testing.T) {
	// Low confidence everywhere: three fields below 0.85 is a hard failure.
	fields := []extract.RawField{
		{Name: "Invoice Number", Value: "INV-1", Confidence: 0.5},
		{Name: "Date", Value: "2026-01-01", Confidence: 0.5},
		{Name: "Total Amount", Value: "10.00", Confidence: 0.5},
	}
	eng := newEngine(t, payable.WithProvider(&extract.StaticProvider{Fields: fields}))

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("gate rejection must not be an error, got %v", err)
	}

	if rn.Decision != run.DecisionRejected {
		t.Fatalf("decision = %q, want rejected", rn.Decision)
	}
	if rn.State != run.StateRejected {
		t.Errorf("state = %q, want REJECTED", rn.State)
	}
	if !strings.Contains(rn.Reason, "validation failed") {
		t.Errorf("reason = %q, want validation failure", rn.Reason)
	}
	if !strings.Contains(rn.Reason, "confidence below") {
		t.Errorf("reason = %q, want confidence violation", rn.Reason)
	}
	// Later stages never ran.
	if rn.Compliance != nil || rn.Risk != nil || rn.Postings != nil {
		t.Error("early-exit mode must not run stages past the failing gate")
	}
}

func TestProcessRejectsAtCompliance(t *testing.T) {
	fields := []extract.RawField{
		{Name: "Invoice Number", Value: "INV-2", Confidence: 0.99},
		{Name: "Date", Value: "2026-01-02", Confidence: 0.97},
		{Name: "Total Amount", Value: "119.00", Confidence: 0.98},
		// No tax field at all.
	}
	eng := newEngine(t, payable.WithProvider(&extract.StaticProvider{Fields: fields}))

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if rn.Decision != run.DecisionRejected {
		t.Fatalf("decision = %q, want rejected", rn.Decision)
	}
	if !strings.Contains(rn.Reason, "Tax/GST field not found on invoice") {
		t.Errorf("reason = %q, want missing tax violation", rn.Reason)
	}
	if rn.Validation == nil || !rn.Validation.Valid {
		t.Error("validation stage should have passed before the compliance gate")
	}
	if rn.Risk != nil {
		t.Error("risk stage must not run after a compliance rejection in early-exit mode")
	}
}

func TestProcessNonUSDHighValueInvoice(t *testing.T) {
	// A large EUR invoice with a defaulted high-value threshold must score
	// normally, not blow up the risk stage mid-pipeline.
	fields := []extract.RawField{
		{Name: "Invoice Number", Value: "INV-7", Confidence: 0.99},
		{Name: "Date", Value: "2026-03-01", Confidence: 0.97},
		{Name: "Total Amount", Value: "2,000,000.00", Confidence: 0.98},
		{Name: "Tax", Value: "305,084.75", Confidence: 0.96},
	}
	eng := newEngine(t,
		payable.WithProvider(&extract.StaticProvider{Fields: fields}),
		payable.WithComplianceConfig(comply.Config{Currency: "eur"}),
		payable.WithRiskConfig(risk.Config{Currency: "eur"}),
	)

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv-eur.pdf"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if rn.Decision != run.DecisionApproved {
		t.Fatalf("decision = %q (reason %q), want approved", rn.Decision, rn.Reason)
	}
	if rn.Risk == nil || rn.Risk.Score != 15 {
		t.Errorf("risk = %+v, want score 15", rn.Risk)
	}
}

func TestProcessRejectsAtRiskGate(t *testing.T) {
	// $2,000,000 total trips the high-value rule for 15 points; a gate
	// threshold of 10 turns that into a rejection. Tax is exact so the
	// compliance gate passes first.
	fields := []extract.RawField{
		{Name: "Invoice Number", Value: "INV-3", Confidence: 0.99},
		{Name: "Date", Value: "2026-01-03", Confidence: 0.97},
		{Name: "Total Amount", Value: "2,000,000.00", Confidence: 0.98},
		{Name: "Tax", Value: "305,084.75", Confidence: 0.96},
	}
	eng := newEngine(t,
		payable.WithProvider(&extract.StaticProvider{Fields: fields}),
		payable.WithGateThreshold(10),
	)

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if rn.Decision != run.DecisionRejected {
		t.Fatalf("decision = %q (reason %q), want rejected", rn.Decision, rn.Reason)
	}
	if !strings.Contains(rn.Reason, "risk score 15 exceeds threshold 10") {
		t.Errorf("reason = %q, want risk threshold breach", rn.Reason)
	}
	if rn.Risk == nil || rn.Risk.Score != 15 {
		t.Errorf("risk = %+v, want score 15", rn.Risk)
	}
	if rn.Postings != nil {
		t.Error("rejected run must not be ledger coded")
	}
}

func TestProcessStageErrorAtLedger(t *testing.T) {
	// A present-but-unparseable total passes validation (the field exists)
	// and compliance (no comparison possible), then breaks ledger coding.
	fields := []extract.RawField{
		{Name: "Invoice Number", Value: "INV-4", Confidence: 0.99},
		{Name: "Date", Value: "2026-01-04", Confidence: 0.97},
		{Name: "Total Amount", Value: "one hundred", Confidence: 0.98},
		{Name: "Tax", Value: "19.00", Confidence: 0.96},
	}
	eng := newEngine(t, payable.WithProvider(&extract.StaticProvider{Fields: fields}))

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err == nil {
		t.Fatal("expected stage error from ledger coding")
	}

	var stageErr *payable.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error type = %T, want *StageError", err)
	}
	if stageErr.Stage != string(run.StageLedger) {
		t.Errorf("stage = %q, want ledger", stageErr.Stage)
	}
	if rn == nil {
		t.Fatal("expected partial run returned alongside the error")
	}
	if rn.Decision != "" {
		t.Errorf("failed run must carry no decision, got %q", rn.Decision)
	}
}

func TestProcessProviderFailureRejectsAtValidation(t *testing.T) {
	eng := newEngine(t, payable.WithProvider(&extract.StaticProvider{
		Err: errors.New("ocr backend unavailable"),
	}))

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("provider failure should degrade to empty extraction, got %v", err)
	}

	if rn.Decision != run.DecisionRejected {
		t.Fatalf("decision = %q, want rejected", rn.Decision)
	}
	if !strings.Contains(rn.Reason, "Missing required field") {
		t.Errorf("reason = %q, want missing required fields", rn.Reason)
	}
	if len(rn.Fields) != 0 {
		t.Errorf("fields = %d, want none", len(rn.Fields))
	}
}

func TestProcessEmptyDocument(t *testing.T) {
	eng := newEngine(t, payable.WithProvider(&extract.StaticProvider{Fields: cleanInvoice()}))

	_, err := eng.Process(context.Background(), extract.DocumentRef{})
	if !errors.Is(err, payable.ErrDocumentEmpty) {
		t.Fatalf("error = %v, want ErrDocumentEmpty", err)
	}
}

func TestProcessAfterStop(t *testing.T) {
	eng := payable.New(memory.New(),
		payable.WithLogger(slog.New(slog.DiscardHandler)),
		payable.WithProvider(&extract.StaticProvider{Fields: cleanInvoice()}),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	_, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if !errors.Is(err, payable.ErrEngineClosed) {
		t.Fatalf("error = %v, want ErrEngineClosed", err)
	}
	if err := eng.Stop(); !errors.Is(err, payable.ErrEngineClosed) {
		t.Fatalf("second Stop = %v, want ErrEngineClosed", err)
	}
}

func TestProcessIsDeterministic(t *testing.T) {
	fields := []extract.RawField{
		{Name: "Invoice Number", Value: "INV-5", Confidence: 0.99},
		{Name: "Date", Value: "2026-01-05", Confidence: 0.97},
		{Name: "Total Amount", Value: "119.00", Confidence: 0.98},
		{Name: "Tax", Value: "5.00", Confidence: 0.96},
	}
	eng := newEngine(t, payable.WithProvider(&extract.StaticProvider{Fields: fields}))

	first, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	second, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if first.Decision != second.Decision || first.Reason != second.Reason {
		t.Errorf("same document diverged: (%q, %q) vs (%q, %q)",
			first.Decision, first.Reason, second.Decision, second.Reason)
	}
}

func TestProcessFullAuditRunsEveryStage(t *testing.T) {
	// Rejected at validation, but full-audit mode still collects compliance
	// and risk evidence, and the decision matches early-exit mode.
	fields := []extract.RawField{
		{Name: "Date", Value: "2026-01-06", Confidence: 0.97},
		{Name: "Total Amount", Value: "119.00", Confidence: 0.98},
		{Name: "Tax", Value: "19.00", Confidence: 0.96},
	}

	early := newEngine(t, payable.WithProvider(&extract.StaticProvider{Fields: fields}))
	full := newEngine(t,
		payable.WithProvider(&extract.StaticProvider{Fields: fields}),
		payable.WithFullAudit(),
	)

	earlyRun, err := early.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("early Process: %v", err)
	}
	fullRun, err := full.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("full Process: %v", err)
	}

	if fullRun.Decision != earlyRun.Decision || fullRun.Reason != earlyRun.Reason {
		t.Errorf("full-audit decision diverged: (%q, %q) vs (%q, %q)",
			fullRun.Decision, fullRun.Reason, earlyRun.Decision, earlyRun.Reason)
	}
	if fullRun.Compliance == nil || fullRun.Risk == nil {
		t.Error("full-audit mode must run compliance and risk despite the validation failure")
	}
	if earlyRun.Compliance != nil {
		t.Error("early-exit mode must stop at the failing gate")
	}
}

func TestProcessParallelMatchesSequential(t *testing.T) {
	eng := newEngine(t,
		payable.WithProvider(&extract.StaticProvider{Fields: cleanInvoice()}),
		payable.WithParallelAnalysis(),
	)

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if rn.Decision != run.DecisionApproved {
		t.Fatalf("decision = %q (reason %q), want approved", rn.Decision, rn.Reason)
	}
	if rn.Validation == nil || rn.Compliance == nil || rn.Risk == nil {
		t.Error("parallel mode must populate all three analysis results")
	}
	if len(rn.Postings) != 3 {
		t.Errorf("postings = %d entries, want 3", len(rn.Postings))
	}
}

func TestProcessEventStream(t *testing.T) {
	sink := &progressSink{}
	eng := newEngine(t,
		payable.WithProvider(&extract.StaticProvider{Fields: cleanInvoice()}),
		payable.WithPlugin(sink),
	)

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	events := sink.snapshot()

	var fieldEvents, stageEvents, completeEvents int
	for _, evt := range events {
		if evt.RunID != rn.ID {
			t.Errorf("event %s carries run %s, want %s", evt.Type, evt.RunID, rn.ID)
		}
		switch evt.Type {
		case event.TypeFieldExtracted:
			fieldEvents++
		case event.TypeStageActivity:
			stageEvents++
		case event.TypeProcessingComplete:
			completeEvents++
		case event.TypeError:
			t.Errorf("unexpected error event: %+v", evt.Data)
		}
	}

	if fieldEvents != 4 {
		t.Errorf("field_extracted events = %d, want 4", fieldEvents)
	}
	// 5 stages, each with a started and a completed activity.
	if stageEvents != 10 {
		t.Errorf("stage_activity events = %d, want 10", stageEvents)
	}
	if completeEvents != 1 {
		t.Errorf("processing_complete events = %d, want 1", completeEvents)
	}

	// First event is the extraction start, last is the terminal summary.
	if events[0].Type != event.TypeStageActivity || events[0].Data["stage"] != "extraction" {
		t.Errorf("first event = %s %v, want extraction start", events[0].Type, events[0].Data)
	}
	last := events[len(events)-1]
	if last.Type != event.TypeProcessingComplete {
		t.Errorf("last event = %s, want processing_complete", last.Type)
	}
	if last.Data["decision"] != string(run.DecisionApproved) {
		t.Errorf("summary decision = %v, want approved", last.Data["decision"])
	}
}

func TestProcessRejectionEventCarriesReason(t *testing.T) {
	sink := &progressSink{}
	fields := []extract.RawField{
		{Name: "Invoice Number", Value: "INV-6", Confidence: 0.99},
		{Name: "Date", Value: "2026-01-07", Confidence: 0.97},
		{Name: "Total Amount", Value: "119.00", Confidence: 0.98},
	}
	eng := newEngine(t,
		payable.WithProvider(&extract.StaticProvider{Fields: fields}),
		payable.WithPlugin(sink),
	)

	if _, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	var found bool
	for _, evt := range sink.snapshot() {
		if evt.Type == event.TypeStageActivity && evt.Data["status"] == "rejected" {
			found = true
			if evt.Data["stage"] != "compliance" {
				t.Errorf("rejected stage = %v, want compliance", evt.Data["stage"])
			}
			reason, _ := evt.Data["reason"].(string)
			if !strings.Contains(reason, "Tax/GST field not found") {
				t.Errorf("rejection reason = %q", reason)
			}
		}
	}
	if !found {
		t.Error("expected a rejected stage_activity event")
	}
}

// fixedRateSource is a test plugin that overrides the tax rate table.
type fixedRateSource struct{ bps int64 }

func (f *fixedRateSource) Name() string { return "test-rate-source" }

func (f *fixedRateSource) TaxRate(_ context.Context, _ string) (int64, bool) {
	return f.bps, true
}

func TestProcessJurisdictionRates(t *testing.T) {
	// $110.00 carrying $10.00 tax is exact at 10% GST and far outside the
	// tolerance at the default 18%.
	fields := []extract.RawField{
		{Name: "Invoice Number", Value: "INV-7", Confidence: 0.99},
		{Name: "Date", Value: "2026-01-08", Confidence: 0.97},
		{Name: "Total Amount", Value: "110.00", Confidence: 0.98},
		{Name: "GST", Value: "10.00", Confidence: 0.96},
	}
	provider := &extract.StaticProvider{Fields: fields}

	t.Run("RateTable", func(t *testing.T) {
		eng := newEngine(t,
			payable.WithProvider(provider),
			payable.WithComplianceConfig(comply.Config{
				Rates: comply.RateTable{"au": 1000},
			}),
		)

		rn, err := eng.Process(context.Background(),
			extract.DocumentRef{URI: "file:///inv.pdf"},
			payable.WithJurisdiction("au"),
		)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if rn.Decision != run.DecisionApproved {
			t.Errorf("decision = %q (reason %q), want approved at the AU rate", rn.Decision, rn.Reason)
		}
	})

	t.Run("DefaultRateRejects", func(t *testing.T) {
		eng := newEngine(t, payable.WithProvider(provider))

		rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if rn.Decision != run.DecisionRejected {
			t.Errorf("decision = %q, want rejected at the default 18%% rate", rn.Decision)
		}
		if !strings.Contains(rn.Reason, "Tax amount mismatch") {
			t.Errorf("reason = %q, want tax mismatch", rn.Reason)
		}
	})

	t.Run("PluginRateSourceWins", func(t *testing.T) {
		eng := newEngine(t,
			payable.WithProvider(provider),
			payable.WithPlugin(&fixedRateSource{bps: 1000}),
		)

		rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if rn.Decision != run.DecisionApproved {
			t.Errorf("decision = %q (reason %q), want approved via plugin rate", rn.Decision, rn.Reason)
		}
	})
}

// duplicateDetector is a test plugin that always reports a duplicate signal.
type duplicateDetector struct{}

func (d *duplicateDetector) Name() string { return "test-duplicate-detector" }

func (d *duplicateDetector) AssessRisk(_ context.Context, _ *run.Run, _ types.Money, _ []types.Money) []risk.Signal {
	return []risk.Signal{{Category: risk.CategoryDuplicate, Score: 100, Flag: "duplicate_invoice"}}
}

func TestProcessRiskSignalPluginRejects(t *testing.T) {
	eng := newEngine(t,
		payable.WithProvider(&extract.StaticProvider{Fields: cleanInvoice()}),
		payable.WithPlugin(&duplicateDetector{}),
	)

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if rn.Decision != run.DecisionRejected {
		t.Fatalf("decision = %q, want rejected on the duplicate signal", rn.Decision)
	}
	if rn.Risk == nil || rn.Risk.Score != 100 {
		t.Errorf("risk = %+v, want score 100", rn.Risk)
	}
	if !strings.Contains(rn.Reason, "duplicate_invoice") {
		t.Errorf("reason = %q, want duplicate flag", rn.Reason)
	}
}

// vendorChartMapper is a test plugin that routes one vendor to a custom chart.
type vendorChartMapper struct{ vendorID string }

func (m *vendorChartMapper) Name() string { return "test-chart-mapper" }

func (m *vendorChartMapper) MapAccounts(_ context.Context, vendorID string, _ []extract.Field) (posting.Chart, bool) {
	if vendorID != m.vendorID {
		return posting.Chart{}, false
	}
	return posting.Chart{
		ExpenseAccount:  "Cloud Infrastructure",
		ExpenseCode:     "6400",
		InputTaxAccount: "Input Tax Receivable",
		InputTaxCode:    "1410",
		PayableAccount:  "Accounts Payable",
		PayableCode:     "2000",
		Currency:        "usd",
	}, true
}

func TestProcessAccountMapperPlugin(t *testing.T) {
	eng := newEngine(t,
		payable.WithProvider(&extract.StaticProvider{Fields: cleanInvoice()}),
		payable.WithPlugin(&vendorChartMapper{vendorID: "ven_cloud"}),
	)

	rn, err := eng.Process(context.Background(), extract.DocumentRef{URI: "file:///inv.pdf", VendorID: "ven_cloud"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if rn.Decision != run.DecisionApproved {
		t.Fatalf("decision = %q (reason %q), want approved", rn.Decision, rn.Reason)
	}
	if got := rn.Postings[0].Account; got != "Cloud Infrastructure" {
		t.Errorf("expense account = %q, want mapped chart", got)
	}
	if got := rn.Postings[0].Code; got != "6400" {
		t.Errorf("expense code = %q, want 6400", got)
	}
}

func TestProcessArchivesTerminalRuns(t *testing.T) {
	eng := newEngine(t,
		payable.WithProvider(&extract.StaticProvider{Fields: cleanInvoice()}),
		payable.WithArchiveConfig(1, 10*time.Millisecond),
	)

	ctx := context.Background()
	rn, err := eng.Process(ctx, extract.DocumentRef{URI: "file:///inv.pdf", VendorID: "ven_acme"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := eng.GetRun(ctx, rn.ID)
		if err == nil && stored.Decision == run.DecisionApproved {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s not archived with decision, last: %v", rn.ID, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Approved totals feed the vendor's payment history.
	deadline = time.Now().Add(2 * time.Second)
	for {
		history, err := eng.VendorHistory(ctx, "ven_acme", 10)
		if err == nil && len(history) == 1 && history[0].Equal(types.USD(11900)) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("vendor history not recorded, last: %v %v", history, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListRunsByDecision(t *testing.T) {
	approved := &extract.StaticProvider{Fields: cleanInvoice()}
	eng := newEngine(t,
		payable.WithProvider(approved),
		payable.WithArchiveConfig(1, 10*time.Millisecond),
	)

	ctx := context.Background()
	if _, err := eng.Process(ctx, extract.DocumentRef{URI: "file:///a.pdf"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := eng.Process(ctx, extract.DocumentRef{URI: "file:///b.pdf"}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		runs, err := eng.ListRuns(ctx, run.ListOpts{Decision: run.DecisionApproved})
		if err == nil && len(runs) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 approved runs, last: %v %v", runs, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
