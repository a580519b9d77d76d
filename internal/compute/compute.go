// Package compute validates partial project input and derives the financial
// fields of a project. It never touches a store.
package compute

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/models"
)

// Rules are the configurable validation parameters.
type Rules struct {
	RequiredFields []string
	VATRate        decimal.Decimal
	Regions        []string
}

// KnowsRegion reports whether region is registered.
func (r Rules) KnowsRegion(region string) bool {
	for _, known := range r.Regions {
		if known == region {
			return true
		}
	}
	return false
}

// Anomaly is a non-fatal oddity found while deriving fields.
type Anomaly struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is a validated project with its derived fields filled in.
type Result struct {
	Project   *models.Project `json:"project"`
	Anomalies []Anomaly       `json:"anomalies,omitempty"`
}

// ValidateAndCompute checks in against rules and builds a project with derived
// fields. All missing and invalid fields are reported together in one
// VALIDATION_FAILED error. The returned project has no code.
func ValidateAndCompute(in Input, rules Rules) (*Result, error) {
	var problems []apperrors.FieldError

	for _, f := range rules.RequiredFields {
		if in.FieldValue(f) == "" {
			problems = append(problems, apperrors.FieldError{Field: f, Reason: "required"})
		}
	}

	p := &models.Project{
		Region:          strings.ToUpper(strings.TrimSpace(in.Region)),
		Owner:           strings.TrimSpace(in.Owner),
		Company:         strings.TrimSpace(in.Company),
		Client:          strings.TrimSpace(in.Client),
		SiteAddress:     strings.TrimSpace(in.SiteAddress),
		WorkDescription: strings.TrimSpace(in.WorkDescription),
		WorkType:        strings.TrimSpace(in.WorkType),
		EquipmentType:   strings.TrimSpace(in.EquipmentType),
		Brand:           strings.TrimSpace(in.Brand),
		SiteManager:     strings.TrimSpace(in.SiteManager),
		ManagerPhone:    strings.TrimSpace(in.ManagerPhone),
		ManagerEmail:    strings.TrimSpace(in.ManagerEmail),
		Notes:           strings.TrimSpace(in.Notes),
	}

	if p.Region != "" && !rules.KnowsRegion(p.Region) {
		problems = append(problems, apperrors.FieldError{Field: models.FieldRegion, Reason: fmt.Sprintf("unknown region %q", p.Region)})
	}

	var err error
	if p.StartDate, err = parseOptionalDate(in.StartDate); err != nil {
		problems = append(problems, apperrors.FieldError{Field: models.FieldStartDate, Reason: err.Error()})
	}
	if p.EndDate, err = parseOptionalDate(in.EndDate); err != nil {
		problems = append(problems, apperrors.FieldError{Field: models.FieldEndDate, Reason: err.Error()})
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		problems = append(problems, apperrors.FieldError{Field: models.FieldEndDate, Reason: "must not be before start_date"})
	}

	amounts := []struct {
		field string
		raw   Amount
		dst   *decimal.NullDecimal
	}{
		{models.FieldTotalAmount, in.TotalAmount, &p.TotalAmount},
		{models.FieldAmountPaid, in.AmountPaid, &p.AmountPaid},
		{"down_payment", in.DownPayment, &p.DownPayment},
		{"middle_payment", in.MiddlePayment, &p.MiddlePayment},
		{"final_payment", in.FinalPayment, &p.FinalPayment},
		{models.FieldCostAmount, in.CostAmount, &p.CostAmount},
		{"product_cost", in.ProductCost, &p.ProductCost},
		{"labor_cost", in.LaborCost, &p.LaborCost},
		{"material_cost", in.MaterialCost, &p.MaterialCost},
		{"other_cost", in.OtherCost, &p.OtherCost},
	}
	for _, a := range amounts {
		if !a.raw.Present() {
			continue
		}
		d, err := ParseAmount(string(a.raw))
		if err != nil {
			problems = append(problems, apperrors.FieldError{Field: a.field, Reason: "must be a number"})
			continue
		}
		if d.IsNegative() {
			problems = append(problems, apperrors.FieldError{Field: a.field, Reason: "must not be negative"})
			continue
		}
		*a.dst = decimal.NewNullDecimal(d)
	}

	status, reason := resolveStatus(strings.TrimSpace(in.Status), p.StartDate, p.EndDate)
	if reason != "" {
		field := "status"
		if models.ProjectStatus(strings.ToUpper(strings.TrimSpace(in.Status))).Valid() {
			field = models.FieldStartDate
		}
		problems = append(problems, apperrors.FieldError{Field: field, Reason: reason})
	}
	p.Status = status

	if len(problems) > 0 {
		return nil, apperrors.Validation(problems...)
	}

	return &Result{Project: p, Anomalies: Derive(p, rules.VATRate)}, nil
}

// Recompute applies patch to an existing project and validates the result.
// Code and timestamps are carried over; region may not change because the
// code embeds it.
func Recompute(existing *models.Project, patch Input, rules Rules) (*Result, error) {
	merged := Merge(FromProject(existing), patch)
	if region := strings.ToUpper(strings.TrimSpace(merged.Region)); region != existing.Region {
		return nil, apperrors.Validation(apperrors.FieldError{Field: models.FieldRegion, Reason: "cannot change after the code is assigned"})
	}

	res, err := ValidateAndCompute(merged, rules)
	if err != nil {
		return nil, err
	}
	res.Project.Code = existing.Code
	res.Project.CreatedAt = existing.CreatedAt
	return res, nil
}

// resolveStatus applies an explicit status or infers one from the dates.
func resolveStatus(raw string, start, end *time.Time) (models.ProjectStatus, string) {
	if raw == "" {
		switch {
		case end != nil:
			return models.StatusComplete, ""
		case start != nil:
			return models.StatusInProgress, ""
		default:
			return models.StatusPending, ""
		}
	}

	status := models.ProjectStatus(strings.ToUpper(raw))
	if !status.Valid() {
		return models.StatusPending, fmt.Sprintf("unknown status %q", raw)
	}
	if status != models.StatusPending && start == nil {
		return status, fmt.Sprintf("required before status %s", status)
	}
	return status, ""
}

// Derive recomputes every derived field of p in place and returns the
// anomalies found. It is deterministic and idempotent.
func Derive(p *models.Project, vatRate decimal.Decimal) []Anomaly {
	var anomalies []Anomaly

	if anyValid(p.DownPayment, p.MiddlePayment, p.FinalPayment) {
		p.AmountPaid = sumValid(p.DownPayment, p.MiddlePayment, p.FinalPayment)
	}
	if anyValid(p.ProductCost, p.LaborCost, p.MaterialCost, p.OtherCost) {
		p.CostAmount = sumValid(p.ProductCost, p.LaborCost, p.MaterialCost, p.OtherCost)
	}

	p.VATAmount = decimal.NullDecimal{}
	p.OutstandingAmount = decimal.NullDecimal{}
	p.NetProfit = decimal.NullDecimal{}
	p.MarginRate = decimal.NullDecimal{}
	p.PaymentAnomaly = false
	p.AnomalyNote = ""

	if !p.TotalAmount.Valid {
		return anomalies
	}
	total := p.TotalAmount.Decimal

	p.VATAmount = decimal.NewNullDecimal(total.Mul(vatRate).Round(2))

	paid := decimal.Zero
	if p.AmountPaid.Valid {
		paid = p.AmountPaid.Decimal
	}
	outstanding := total.Sub(paid)
	if outstanding.IsNegative() {
		p.PaymentAnomaly = true
		p.AnomalyNote = fmt.Sprintf("amount paid %s exceeds total %s", paid.String(), total.String())
		anomalies = append(anomalies, Anomaly{Field: models.FieldAmountPaid, Message: p.AnomalyNote})
		outstanding = decimal.Zero
	}
	p.OutstandingAmount = decimal.NewNullDecimal(outstanding)

	if p.CostAmount.Valid {
		profit := total.Sub(p.CostAmount.Decimal)
		p.NetProfit = decimal.NewNullDecimal(profit)
		if !total.IsZero() {
			p.MarginRate = decimal.NewNullDecimal(profit.Div(total).Round(4))
		}
	}

	return anomalies
}

// ParseAmount parses a monetary value, tolerating thousands separators,
// currency symbols and a trailing "원".
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "원")
	s = strings.NewReplacer(",", "", " ", "", "₩", "", "￦", "").Replace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

var dateLayouts = []string{
	models.DateLayout,
	"2006/01/02",
	"2006.01.02",
	"2006. 1. 2",
	"2006.1.2",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses a calendar date in any of the layouts seen in the business
// sheet. The result is midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func anyValid(values ...decimal.NullDecimal) bool {
	for _, v := range values {
		if v.Valid {
			return true
		}
	}
	return false
}

func sumValid(values ...decimal.NullDecimal) decimal.NullDecimal {
	sum := decimal.Zero
	for _, v := range values {
		if v.Valid {
			sum = sum.Add(v.Decimal)
		}
	}
	return decimal.NewNullDecimal(sum)
}

func amountOf(ok bool, d decimal.NullDecimal) Amount {
	if !ok {
		return ""
	}
	return Amount(d.Decimal.String())
}
