package payable

import (
	"context"

	audithook "github.com/xraph/payable/audit_hook"
	"github.com/xraph/payable/run"
	"github.com/xraph/payable/store"
	"github.com/xraph/payable/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	USD        = types.USD
	EUR        = types.EUR
	GBP        = types.GBP
	JPY        = types.JPY
	INR        = types.INR
	AUD        = types.AUD
	Zero       = types.Zero
	Sum        = types.Sum
	ParseMajor = types.ParseMajor
)

// Re-export Entity constructor
var NewEntity = types.NewEntity

// StoreAuditRecorder adapts a store's audit trail into the Recorder port the
// audithook extension writes through.
func StoreAuditRecorder(s store.Store) audithook.Recorder {
	return audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
		detail := evt.Metadata
		if evt.Reason != "" {
			if detail == nil {
				detail = map[string]any{}
			}
			detail["reason"] = evt.Reason
		}
		return s.AppendAudit(ctx, run.NewAuditRecord(evt.RunID, evt.Stage, evt.Action, evt.Outcome, detail))
	})
}
