package audithook

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/run"
)

func collectEvents(events *[]*AuditEvent) Recorder {
	return RecorderFunc(func(_ context.Context, evt *AuditEvent) error {
		*events = append(*events, evt)
		return nil
	})
}

func TestExtensionRecordsRunLifecycle(t *testing.T) {
	var events []*AuditEvent
	ext := New(collectEvents(&events))

	r := run.New(extract.DocumentRef{URI: "file:///inv.pdf", VendorID: "ven_1"})
	if err := ext.OnRunStarted(context.Background(), r); err != nil {
		t.Fatalf("OnRunStarted: %v", err)
	}
	r.Approve()
	if err := ext.OnRunCompleted(context.Background(), r); err != nil {
		t.Fatalf("OnRunCompleted: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Action != ActionRunStarted {
		t.Errorf("first action = %q, want %q", events[0].Action, ActionRunStarted)
	}
	if events[0].Metadata["vendor_id"] != "ven_1" {
		t.Errorf("vendor_id metadata = %v", events[0].Metadata["vendor_id"])
	}
	if events[1].Outcome != OutcomeSuccess {
		t.Errorf("completed outcome = %q, want success", events[1].Outcome)
	}
}

func TestExtensionRejectedRunOutcome(t *testing.T) {
	var events []*AuditEvent
	ext := New(collectEvents(&events))

	r := run.New(extract.DocumentRef{URI: "file:///inv.pdf"})
	r.Reject("Validation failed")
	if err := ext.OnRunCompleted(context.Background(), r); err != nil {
		t.Fatalf("OnRunCompleted: %v", err)
	}

	if events[0].Outcome != OutcomeRejected {
		t.Errorf("outcome = %q, want rejected", events[0].Outcome)
	}
	if events[0].Severity != SeverityWarning {
		t.Errorf("severity = %q, want warning", events[0].Severity)
	}
}

func TestExtensionGateRejectedCarriesReason(t *testing.T) {
	var events []*AuditEvent
	ext := New(collectEvents(&events))

	r := run.New(extract.DocumentRef{URI: "file:///inv.pdf"})
	if err := ext.OnGateRejected(context.Background(), r, run.StageCompliance, "Tax amount mismatch"); err != nil {
		t.Fatalf("OnGateRejected: %v", err)
	}

	if events[0].Stage != run.StageCompliance {
		t.Errorf("stage = %q, want compliance", events[0].Stage)
	}
	if events[0].Metadata["reason"] != "Tax amount mismatch" {
		t.Errorf("reason metadata = %v", events[0].Metadata["reason"])
	}
}

func TestExtensionRunErrorIsCritical(t *testing.T) {
	var events []*AuditEvent
	ext := New(collectEvents(&events))

	r := run.New(extract.DocumentRef{URI: "file:///inv.pdf"})
	if err := ext.OnRunError(context.Background(), r, errors.New("posting: no parseable total amount field")); err != nil {
		t.Fatalf("OnRunError: %v", err)
	}

	if events[0].Severity != SeverityCritical {
		t.Errorf("severity = %q, want critical", events[0].Severity)
	}
	if events[0].Reason == "" {
		t.Error("expected reason populated from error")
	}
}

func TestExtensionDisabledActionsSkipped(t *testing.T) {
	var events []*AuditEvent
	ext := New(collectEvents(&events), WithDisabledActions(ActionStageCompleted))

	r := run.New(extract.DocumentRef{URI: "file:///inv.pdf"})
	if err := ext.OnStageCompleted(context.Background(), r, run.StageValidation); err != nil {
		t.Fatalf("OnStageCompleted: %v", err)
	}
	if err := ext.OnRunStarted(context.Background(), r); err != nil {
		t.Fatalf("OnRunStarted: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 event after disabling stage.completed, got %d", len(events))
	}
	if events[0].Action != ActionRunStarted {
		t.Errorf("action = %q, want run.started", events[0].Action)
	}
}

func TestExtensionRecorderFailureSwallowed(t *testing.T) {
	ext := New(RecorderFunc(func(context.Context, *AuditEvent) error {
		return errors.New("backend down")
	}))

	r := run.New(extract.DocumentRef{URI: "file:///inv.pdf"})
	if err := ext.OnRunStarted(context.Background(), r); err != nil {
		t.Fatalf("recorder failure should not propagate, got %v", err)
	}
}
