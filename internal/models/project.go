package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProjectStatus is the lifecycle state of an installation job.
type ProjectStatus string

const (
	StatusPending    ProjectStatus = "PENDING"
	StatusInProgress ProjectStatus = "IN_PROGRESS"
	StatusComplete   ProjectStatus = "COMPLETE"
)

// Valid reports whether s is one of the known statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusComplete:
		return true
	}
	return false
}

// Project is one installation job. Code is assigned once at creation and is
// never reused; derived amounts are recomputed on every write.
type Project struct {
	Code            string `gorm:"primaryKey;size:32" json:"code"`
	Region          string `gorm:"size:16;not null;index" json:"region"`
	Owner           string `gorm:"size:100;index" json:"owner"`
	Company         string `gorm:"size:200" json:"company"`
	Client          string `gorm:"size:200" json:"client"`
	SiteAddress     string `gorm:"size:300" json:"site_address"`
	WorkDescription string `gorm:"type:text" json:"work_description"`
	WorkType        string `gorm:"size:50" json:"work_type,omitempty"`
	EquipmentType   string `gorm:"size:50" json:"equipment_type,omitempty"`
	Brand           string `gorm:"size:100;index" json:"brand,omitempty"`
	SiteManager     string `gorm:"size:100" json:"site_manager,omitempty"`
	ManagerPhone    string `gorm:"size:50" json:"manager_phone,omitempty"`
	ManagerEmail    string `gorm:"size:200" json:"manager_email,omitempty"`

	StartDate *time.Time `gorm:"type:date" json:"start_date,omitempty"`
	EndDate   *time.Time `gorm:"type:date" json:"end_date,omitempty"`

	TotalAmount       decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"total_amount"`
	VATAmount         decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"vat_amount"`
	DownPayment       decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"down_payment"`
	MiddlePayment     decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"middle_payment"`
	FinalPayment      decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"final_payment"`
	AmountPaid        decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"amount_paid"`
	OutstandingAmount decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"outstanding_amount"`
	ProductCost       decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"product_cost"`
	LaborCost         decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"labor_cost"`
	MaterialCost      decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"material_cost"`
	OtherCost         decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"other_cost"`
	CostAmount        decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"cost_amount"`
	NetProfit         decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"net_profit"`
	MarginRate        decimal.NullDecimal `gorm:"type:decimal(9,4)" json:"margin_rate"`

	PaymentAnomaly bool   `gorm:"not null;default:false" json:"payment_anomaly"`
	AnomalyNote    string `gorm:"size:300" json:"anomaly_note,omitempty"`

	Status ProjectStatus `gorm:"size:16;not null;default:PENDING;index" json:"status"`
	Notes  string        `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Field names accepted in the required-field configuration. The order of
// KnownFields is the canonical order used when listing gaps.
const (
	FieldCode            = "code"
	FieldRegion          = "region"
	FieldOwner           = "owner"
	FieldCompany         = "company"
	FieldClient          = "client"
	FieldSiteAddress     = "site_address"
	FieldWorkDescription = "work_description"
	FieldWorkType        = "work_type"
	FieldEquipmentType   = "equipment_type"
	FieldBrand           = "brand"
	FieldSiteManager     = "site_manager"
	FieldManagerPhone    = "manager_phone"
	FieldManagerEmail    = "manager_email"
	FieldStartDate       = "start_date"
	FieldEndDate         = "end_date"
	FieldTotalAmount     = "total_amount"
	FieldAmountPaid      = "amount_paid"
	FieldCostAmount      = "cost_amount"
)

// KnownFields lists every field that may appear in a required-field set.
var KnownFields = []string{
	FieldCode, FieldRegion, FieldOwner, FieldCompany, FieldClient, FieldSiteAddress,
	FieldWorkDescription, FieldWorkType, FieldEquipmentType, FieldBrand, FieldSiteManager,
	FieldManagerPhone, FieldManagerEmail, FieldStartDate, FieldEndDate, FieldTotalAmount,
	FieldAmountPaid, FieldCostAmount,
}

// DefaultRequiredFields is the business-required set used when none is configured.
var DefaultRequiredFields = []string{
	FieldRegion, FieldOwner, FieldCompany, FieldClient, FieldSiteAddress, FieldWorkDescription,
}

// IsKnownField reports whether name can be used in a required-field set.
func IsKnownField(name string) bool {
	for _, f := range KnownFields {
		if f == name {
			return true
		}
	}
	return false
}

// FieldValue returns the stored value of a named field as text, or "" when
// the field is absent.
func (p *Project) FieldValue(name string) string {
	switch name {
	case FieldCode:
		return p.Code
	case FieldRegion:
		return p.Region
	case FieldOwner:
		return p.Owner
	case FieldCompany:
		return p.Company
	case FieldClient:
		return p.Client
	case FieldSiteAddress:
		return p.SiteAddress
	case FieldWorkDescription:
		return p.WorkDescription
	case FieldWorkType:
		return p.WorkType
	case FieldEquipmentType:
		return p.EquipmentType
	case FieldBrand:
		return p.Brand
	case FieldSiteManager:
		return p.SiteManager
	case FieldManagerPhone:
		return p.ManagerPhone
	case FieldManagerEmail:
		return p.ManagerEmail
	case FieldStartDate:
		return formatDate(p.StartDate)
	case FieldEndDate:
		return formatDate(p.EndDate)
	case FieldTotalAmount:
		return formatAmount(p.TotalAmount)
	case FieldAmountPaid:
		return formatAmount(p.AmountPaid)
	case FieldCostAmount:
		return formatAmount(p.CostAmount)
	}
	return ""
}

// DateLayout is the calendar date format used on the wire and in sheets.
const DateLayout = "2006-01-02"

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func formatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
