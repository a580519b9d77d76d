package compute

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/kiko9987/itglobal/internal/models"
)

// Amount is raw numeric input. It accepts JSON numbers and JSON strings so
// form values like "1,200,000" reach the validator untouched.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(b)
	return nil
}

// Present reports whether a value was supplied.
func (a Amount) Present() bool {
	return strings.TrimSpace(string(a)) != ""
}

// Input is a partial project as entered by a user or read from a sheet row.
type Input struct {
	Region          string `json:"region"`
	Owner           string `json:"owner"`
	Company         string `json:"company"`
	Client          string `json:"client"`
	SiteAddress     string `json:"site_address"`
	WorkDescription string `json:"work_description"`
	WorkType        string `json:"work_type"`
	EquipmentType   string `json:"equipment_type"`
	Brand           string `json:"brand"`
	SiteManager     string `json:"site_manager"`
	ManagerPhone    string `json:"manager_phone"`
	ManagerEmail    string `json:"manager_email"`
	Notes           string `json:"notes"`
	Status          string `json:"status"`

	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	TotalAmount   Amount `json:"total_amount" swaggertype:"string"`
	AmountPaid    Amount `json:"amount_paid" swaggertype:"string"`
	DownPayment   Amount `json:"down_payment" swaggertype:"string"`
	MiddlePayment Amount `json:"middle_payment" swaggertype:"string"`
	FinalPayment  Amount `json:"final_payment" swaggertype:"string"`
	CostAmount    Amount `json:"cost_amount" swaggertype:"string"`
	ProductCost   Amount `json:"product_cost" swaggertype:"string"`
	LaborCost     Amount `json:"labor_cost" swaggertype:"string"`
	MaterialCost  Amount `json:"material_cost" swaggertype:"string"`
	OtherCost     Amount `json:"other_cost" swaggertype:"string"`
}

// FieldValue returns the trimmed raw value of a named field. amount_paid and
// cost_amount count as present when any of their components is.
func (in *Input) FieldValue(name string) string {
	var v string
	switch name {
	case models.FieldRegion:
		v = in.Region
	case models.FieldOwner:
		v = in.Owner
	case models.FieldCompany:
		v = in.Company
	case models.FieldClient:
		v = in.Client
	case models.FieldSiteAddress:
		v = in.SiteAddress
	case models.FieldWorkDescription:
		v = in.WorkDescription
	case models.FieldWorkType:
		v = in.WorkType
	case models.FieldEquipmentType:
		v = in.EquipmentType
	case models.FieldBrand:
		v = in.Brand
	case models.FieldSiteManager:
		v = in.SiteManager
	case models.FieldManagerPhone:
		v = in.ManagerPhone
	case models.FieldManagerEmail:
		v = in.ManagerEmail
	case models.FieldStartDate:
		v = in.StartDate
	case models.FieldEndDate:
		v = in.EndDate
	case models.FieldTotalAmount:
		v = string(in.TotalAmount)
	case models.FieldAmountPaid:
		v = firstPresent(in.AmountPaid, in.DownPayment, in.MiddlePayment, in.FinalPayment)
	case models.FieldCostAmount:
		v = firstPresent(in.CostAmount, in.ProductCost, in.LaborCost, in.MaterialCost, in.OtherCost)
	}
	return strings.TrimSpace(v)
}

func firstPresent(amounts ...Amount) string {
	for _, a := range amounts {
		if a.Present() {
			return string(a)
		}
	}
	return ""
}

// FromProject converts a stored project back to input form, the inverse of
// ValidateAndCompute for every entered field.
func FromProject(p *models.Project) Input {
	return Input{
		Region:          p.Region,
		Owner:           p.Owner,
		Company:         p.Company,
		Client:          p.Client,
		SiteAddress:     p.SiteAddress,
		WorkDescription: p.WorkDescription,
		WorkType:        p.WorkType,
		EquipmentType:   p.EquipmentType,
		Brand:           p.Brand,
		SiteManager:     p.SiteManager,
		ManagerPhone:    p.ManagerPhone,
		ManagerEmail:    p.ManagerEmail,
		Notes:           p.Notes,
		Status:          string(p.Status),
		StartDate:       p.FieldValue(models.FieldStartDate),
		EndDate:         p.FieldValue(models.FieldEndDate),
		TotalAmount:     Amount(p.FieldValue(models.FieldTotalAmount)),
		AmountPaid:      amountOf(p.AmountPaid.Valid && !anyValid(p.DownPayment, p.MiddlePayment, p.FinalPayment), p.AmountPaid),
		DownPayment:     amountOf(p.DownPayment.Valid, p.DownPayment),
		MiddlePayment:   amountOf(p.MiddlePayment.Valid, p.MiddlePayment),
		FinalPayment:    amountOf(p.FinalPayment.Valid, p.FinalPayment),
		CostAmount:      amountOf(p.CostAmount.Valid && !anyValid(p.ProductCost, p.LaborCost, p.MaterialCost, p.OtherCost), p.CostAmount),
		ProductCost:     amountOf(p.ProductCost.Valid, p.ProductCost),
		LaborCost:       amountOf(p.LaborCost.Valid, p.LaborCost),
		MaterialCost:    amountOf(p.MaterialCost.Valid, p.MaterialCost),
		OtherCost:       amountOf(p.OtherCost.Valid, p.OtherCost),
	}
}

// Merge overlays the supplied fields of patch onto base.
func Merge(base, patch Input) Input {
	out := base
	pickString(&out.Region, patch.Region)
	pickString(&out.Owner, patch.Owner)
	pickString(&out.Company, patch.Company)
	pickString(&out.Client, patch.Client)
	pickString(&out.SiteAddress, patch.SiteAddress)
	pickString(&out.WorkDescription, patch.WorkDescription)
	pickString(&out.WorkType, patch.WorkType)
	pickString(&out.EquipmentType, patch.EquipmentType)
	pickString(&out.Brand, patch.Brand)
	pickString(&out.SiteManager, patch.SiteManager)
	pickString(&out.ManagerPhone, patch.ManagerPhone)
	pickString(&out.ManagerEmail, patch.ManagerEmail)
	pickString(&out.Notes, patch.Notes)
	pickString(&out.Status, patch.Status)
	pickString(&out.StartDate, patch.StartDate)
	pickString(&out.EndDate, patch.EndDate)
	pickAmount(&out.TotalAmount, patch.TotalAmount)
	pickAmount(&out.AmountPaid, patch.AmountPaid)
	pickAmount(&out.DownPayment, patch.DownPayment)
	pickAmount(&out.MiddlePayment, patch.MiddlePayment)
	pickAmount(&out.FinalPayment, patch.FinalPayment)
	pickAmount(&out.CostAmount, patch.CostAmount)
	pickAmount(&out.ProductCost, patch.ProductCost)
	pickAmount(&out.LaborCost, patch.LaborCost)
	pickAmount(&out.MaterialCost, patch.MaterialCost)
	pickAmount(&out.OtherCost, patch.OtherCost)
	return out
}

func pickString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func pickAmount(dst *Amount, v Amount) {
	if v.Present() {
		*dst = v
	}
}
