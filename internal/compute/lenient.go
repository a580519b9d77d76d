package compute

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kiko9987/itglobal/internal/models"
)

// Lenient builds a project from stored or imported data without rejecting
// it. Unparseable values are dropped so the gap shows up in missing-field
// reports; negative totals are kept so aggregation can exclude the record.
func Lenient(code string, in Input, vatRate decimal.Decimal) *models.Project {
	p := &models.Project{
		Code:            strings.TrimSpace(code),
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
	p.StartDate, _ = parseOptionalDate(in.StartDate)
	p.EndDate, _ = parseOptionalDate(in.EndDate)

	p.TotalAmount = lenientAmount(in.TotalAmount)
	p.AmountPaid = lenientAmount(in.AmountPaid)
	p.DownPayment = lenientAmount(in.DownPayment)
	p.MiddlePayment = lenientAmount(in.MiddlePayment)
	p.FinalPayment = lenientAmount(in.FinalPayment)
	p.CostAmount = lenientAmount(in.CostAmount)
	p.ProductCost = lenientAmount(in.ProductCost)
	p.LaborCost = lenientAmount(in.LaborCost)
	p.MaterialCost = lenientAmount(in.MaterialCost)
	p.OtherCost = lenientAmount(in.OtherCost)

	raw := strings.TrimSpace(in.Status)
	status, _ := resolveStatus(raw, p.StartDate, p.EndDate)
	if raw != "" && !models.ProjectStatus(strings.ToUpper(raw)).Valid() {
		status, _ = resolveStatus("", p.StartDate, p.EndDate)
	}
	p.Status = status

	if !p.TotalAmount.Valid || !p.TotalAmount.Decimal.IsNegative() {
		Derive(p, vatRate)
	}
	return p
}

func lenientAmount(a Amount) decimal.NullDecimal {
	if !a.Present() {
		return decimal.NullDecimal{}
	}
	d, err := ParseAmount(string(a))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
