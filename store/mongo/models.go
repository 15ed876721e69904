package mongo

import (
	"time"

	"github.com/xraph/payable/comply"
	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/posting"
	"github.com/xraph/payable/risk"
	"github.com/xraph/payable/run"
	"github.com/xraph/payable/types"
	"github.com/xraph/payable/validate"
)

// ==================== Money ====================

type moneyModel struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func toMoneyModel(m types.Money) moneyModel {
	return moneyModel{Amount: m.Amount, Currency: m.Currency}
}

func fromMoneyModel(m moneyModel) types.Money {
	return types.Money{Amount: m.Amount, Currency: m.Currency}
}

// ==================== Run models ====================

type runModel struct {
	ID          string            `bson:"_id"`
	Document    documentRefModel  `bson:"document"`
	VendorID    string            `bson:"vendor_id"`
	State       string            `bson:"state"`
	Fields      []fieldModel      `bson:"fields,omitempty"`
	Validation  *validationModel  `bson:"validation,omitempty"`
	Compliance  *complianceModel  `bson:"compliance,omitempty"`
	Risk        *assessmentModel  `bson:"risk,omitempty"`
	Postings    []entryModel      `bson:"postings,omitempty"`
	Decision    string            `bson:"decision"`
	Reason      string            `bson:"reason"`
	StartedAt   time.Time         `bson:"started_at"`
	CompletedAt *time.Time        `bson:"completed_at,omitempty"`
}

type documentRefModel struct {
	ID       string            `bson:"id"`
	URI      string            `bson:"uri"`
	VendorID string            `bson:"vendor_id"`
	Metadata map[string]string `bson:"metadata,omitempty"`
}

type fieldModel struct {
	ID         string        `bson:"id"`
	Name       string        `bson:"name"`
	Value      string        `bson:"value"`
	Confidence float64       `bson:"confidence"`
	Location   locationModel `bson:"location"`
}

type locationModel struct {
	Page   int     `bson:"page"`
	Left   float64 `bson:"left"`
	Top    float64 `bson:"top"`
	Width  float64 `bson:"width"`
	Height float64 `bson:"height"`
}

type validationModel struct {
	Valid  bool     `bson:"valid"`
	Errors []string `bson:"errors,omitempty"`
}

type complianceModel struct {
	Compliant   bool       `bson:"compliant"`
	Violations  []string   `bson:"violations,omitempty"`
	ExpectedTax moneyModel `bson:"expected_tax"`
	FoundTax    moneyModel `bson:"found_tax"`
}

type assessmentModel struct {
	Score int      `bson:"score"`
	Level string   `bson:"level"`
	Flags []string `bson:"flags,omitempty"`
}

type entryModel struct {
	ID          string     `bson:"id"`
	Account     string     `bson:"account"`
	Code        string     `bson:"code"`
	Debit       moneyModel `bson:"debit"`
	Credit      moneyModel `bson:"credit"`
	Description string     `bson:"description,omitempty"`
}

func toRunModel(r *run.Run) *runModel {
	m := &runModel{
		ID: r.ID.String(),
		Document: documentRefModel{
			ID:       r.DocumentRef.ID.String(),
			URI:      r.DocumentRef.URI,
			VendorID: r.DocumentRef.VendorID,
			Metadata: r.DocumentRef.Metadata,
		},
		VendorID:    r.VendorID,
		State:       string(r.State),
		Decision:    string(r.Decision),
		Reason:      r.Reason,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}

	m.Fields = make([]fieldModel, len(r.Fields))
	for i, f := range r.Fields {
		m.Fields[i] = fieldModel{
			ID:         f.ID.String(),
			Name:       f.Name,
			Value:      f.Value,
			Confidence: f.Confidence,
			Location: locationModel{
				Page:   f.Location.Page,
				Left:   f.Location.Left,
				Top:    f.Location.Top,
				Width:  f.Location.Width,
				Height: f.Location.Height,
			},
		}
	}

	if r.Validation != nil {
		m.Validation = &validationModel{Valid: r.Validation.Valid, Errors: r.Validation.Errors}
	}
	if r.Compliance != nil {
		m.Compliance = &complianceModel{
			Compliant:   r.Compliance.Compliant,
			Violations:  r.Compliance.Violations,
			ExpectedTax: toMoneyModel(r.Compliance.ExpectedTax),
			FoundTax:    toMoneyModel(r.Compliance.FoundTax),
		}
	}
	if r.Risk != nil {
		m.Risk = &assessmentModel{
			Score: r.Risk.Score,
			Level: string(r.Risk.Level),
			Flags: r.Risk.Flags,
		}
	}
	if len(r.Postings) > 0 {
		m.Postings = make([]entryModel, len(r.Postings))
		for i, e := range r.Postings {
			m.Postings[i] = entryModel{
				ID:          e.ID.String(),
				Account:     e.Account,
				Code:        e.Code,
				Debit:       toMoneyModel(e.Debit),
				Credit:      toMoneyModel(e.Credit),
				Description: e.Description,
			}
		}
	}
	return m
}

func fromRunModel(m *runModel) (*run.Run, error) {
	r := &run.Run{
		DocumentRef: extract.DocumentRef{
			URI:      m.Document.URI,
			VendorID: m.Document.VendorID,
			Metadata: m.Document.Metadata,
		},
		VendorID:    m.VendorID,
		State:       run.State(m.State),
		Decision:    run.Decision(m.Decision),
		Reason:      m.Reason,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
	if err := r.ID.UnmarshalText([]byte(m.ID)); err != nil {
		return nil, err
	}
	if m.Document.ID != "" {
		if err := r.DocumentRef.ID.UnmarshalText([]byte(m.Document.ID)); err != nil {
			return nil, err
		}
	}

	r.Fields = make([]extract.Field, len(m.Fields))
	for i, f := range m.Fields {
		field := extract.Field{
			Name:       f.Name,
			Value:      f.Value,
			Confidence: f.Confidence,
			Location: extract.Location{
				Page:   f.Location.Page,
				Left:   f.Location.Left,
				Top:    f.Location.Top,
				Width:  f.Location.Width,
				Height: f.Location.Height,
			},
		}
		if err := field.ID.UnmarshalText([]byte(f.ID)); err != nil {
			return nil, err
		}
		r.Fields[i] = field
	}

	if m.Validation != nil {
		r.Validation = &validate.Result{Valid: m.Validation.Valid, Errors: m.Validation.Errors}
	}
	if m.Compliance != nil {
		r.Compliance = &comply.Result{
			Compliant:   m.Compliance.Compliant,
			Violations:  m.Compliance.Violations,
			ExpectedTax: fromMoneyModel(m.Compliance.ExpectedTax),
			FoundTax:    fromMoneyModel(m.Compliance.FoundTax),
		}
	}
	if m.Risk != nil {
		r.Risk = &risk.Assessment{
			Score: m.Risk.Score,
			Level: risk.Level(m.Risk.Level),
			Flags: m.Risk.Flags,
		}
	}
	if len(m.Postings) > 0 {
		r.Postings = make(posting.Set, len(m.Postings))
		for i, e := range m.Postings {
			entry := posting.Entry{
				Account:     e.Account,
				Code:        e.Code,
				Debit:       fromMoneyModel(e.Debit),
				Credit:      fromMoneyModel(e.Credit),
				Description: e.Description,
			}
			if err := entry.ID.UnmarshalText([]byte(e.ID)); err != nil {
				return nil, err
			}
			r.Postings[i] = entry
		}
	}
	return r, nil
}

// ==================== Vendor amount model ====================

type vendorAmountModel struct {
	VendorID   string     `bson:"vendor_id"`
	Amount     moneyModel `bson:"amount"`
	RecordedAt time.Time  `bson:"recorded_at"`
}

// ==================== Audit model ====================

type auditModel struct {
	ID        string         `bson:"_id"`
	RunID     string         `bson:"run_id"`
	Stage     string         `bson:"stage"`
	Action    string         `bson:"action"`
	Outcome   string         `bson:"outcome"`
	Detail    map[string]any `bson:"detail,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
}

func toAuditModel(rec *run.AuditRecord) *auditModel {
	return &auditModel{
		ID:        rec.ID.String(),
		RunID:     rec.RunID.String(),
		Stage:     string(rec.Stage),
		Action:    rec.Action,
		Outcome:   rec.Outcome,
		Detail:    rec.Detail,
		CreatedAt: rec.CreatedAt,
	}
}

func fromAuditModel(m *auditModel) (*run.AuditRecord, error) {
	rec := &run.AuditRecord{
		Stage:     run.Stage(m.Stage),
		Action:    m.Action,
		Outcome:   m.Outcome,
		Detail:    m.Detail,
		CreatedAt: m.CreatedAt,
	}
	if err := rec.ID.UnmarshalText([]byte(m.ID)); err != nil {
		return nil, err
	}
	if err := rec.RunID.UnmarshalText([]byte(m.RunID)); err != nil {
		return nil, err
	}
	return rec, nil
}
