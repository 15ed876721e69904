// Package posting turns an approved invoice into balanced double-entry ledger
// postings.
package posting

import (
	"fmt"
	"strings"

	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/id"
	"github.com/xraph/payable/types"
)

// Chart names the three accounts an invoice posts to.
type Chart struct {
	ExpenseAccount  string
	ExpenseCode     string
	InputTaxAccount string
	InputTaxCode    string
	PayableAccount  string
	PayableCode     string
	Currency        string
}

// DefaultChart returns a generic accrual chart.
func DefaultChart() Chart {
	return Chart{
		ExpenseAccount:  "Operating Expenses",
		ExpenseCode:     "6000",
		InputTaxAccount: "Input Tax Receivable",
		InputTaxCode:    "1410",
		PayableAccount:  "Accounts Payable",
		PayableCode:     "2000",
		Currency:        "usd",
	}
}

// Coder generates postings against a chart of accounts.
type Coder struct {
	chart Chart
}

// New builds a Coder. Zero-value chart fields fall back to the default chart.
func New(chart Chart) *Coder {
	def := DefaultChart()
	if chart.ExpenseAccount == "" {
		chart.ExpenseAccount = def.ExpenseAccount
		chart.ExpenseCode = def.ExpenseCode
	}
	if chart.InputTaxAccount == "" {
		chart.InputTaxAccount = def.InputTaxAccount
		chart.InputTaxCode = def.InputTaxCode
	}
	if chart.PayableAccount == "" {
		chart.PayableAccount = def.PayableAccount
		chart.PayableCode = def.PayableCode
	}
	if chart.Currency == "" {
		chart.Currency = def.Currency
	}
	return &Coder{chart: chart}
}

// Code produces the posting set for an approved invoice: debit the expense
// account for the net amount, debit input tax when tax is present, credit
// accounts payable for the gross total. The set is balance-checked before it
// is returned; an imbalance means a coding bug, not bad input.
func (c *Coder) Code(fields []extract.Field) (Set, error) {
	return c.CodeWithChart(fields, c.chart)
}

// CodeWithChart is Code against an explicit chart, for callers that map
// accounts per vendor.
func (c *Coder) CodeWithChart(fields []extract.Field, chart Chart) (Set, error) {
	total, ok := amountField(fields, chart.Currency, "total")
	if !ok {
		return nil, fmt.Errorf("posting: no parseable total amount field")
	}
	tax, ok := amountField(fields, chart.Currency, "tax", "gst")
	if !ok {
		tax = types.Zero(chart.Currency)
	}
	if tax.IsNegative() || tax.GreaterThan(total) {
		return nil, fmt.Errorf("posting: tax %s outside [0, total %s]", tax.FormatMajor(), total.FormatMajor())
	}

	ref := invoiceRef(fields)
	subtotal := total.Subtract(tax)

	set := Set{{
		ID:          id.NewPostingID(),
		Account:     chart.ExpenseAccount,
		Code:        chart.ExpenseCode,
		Debit:       subtotal,
		Credit:      types.Zero(chart.Currency),
		Description: fmt.Sprintf("Expense for invoice %s", ref),
	}}
	if tax.IsPositive() {
		set = append(set, Entry{
			ID:          id.NewPostingID(),
			Account:     chart.InputTaxAccount,
			Code:        chart.InputTaxCode,
			Debit:       tax,
			Credit:      types.Zero(chart.Currency),
			Description: fmt.Sprintf("Input tax for invoice %s", ref),
		})
	}
	set = append(set, Entry{
		ID:          id.NewPostingID(),
		Account:     chart.PayableAccount,
		Code:        chart.PayableCode,
		Debit:       types.Zero(chart.Currency),
		Credit:      total,
		Description: fmt.Sprintf("Payable for invoice %s", ref),
	})

	if !set.Balanced() {
		return nil, ErrUnbalanced
	}
	return set, nil
}

func amountField(fields []extract.Field, currency string, substrings ...string) (types.Money, bool) {
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		for _, sub := range substrings {
			if strings.Contains(name, sub) {
				m, err := types.ParseMajor(f.Value, currency)
				if err != nil {
					return types.Money{}, false
				}
				return m, true
			}
		}
	}
	return types.Money{}, false
}

func invoiceRef(fields []extract.Field) string {
	for _, f := range fields {
		name := strings.ReplaceAll(strings.ToLower(f.Name), "_", " ")
		if strings.Contains(name, "invoice number") || strings.Contains(name, "invoice id") {
			return f.Value
		}
	}
	return "(unknown)"
}
