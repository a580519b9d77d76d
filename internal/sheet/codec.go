// Package sheet maps spreadsheet rows to project input and back. The same
// layout serves the Google Sheets store and xlsx import/export.
package sheet

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kiko9987/itglobal/internal/compute"
	"github.com/kiko9987/itglobal/internal/models"
)

// Column binds a header label to a field key.
type Column struct {
	Header string
	Field  string
}

// Field keys beyond models.Field* that only exist in sheets.
const (
	KeyStatus        = "status"
	KeyNotes         = "notes"
	KeyVATAmount     = "vat_amount"
	KeyDownPayment   = "down_payment"
	KeyMiddlePayment = "middle_payment"
	KeyFinalPayment  = "final_payment"
	KeyOutstanding   = "outstanding_amount"
	KeyProductCost   = "product_cost"
	KeyLaborCost     = "labor_cost"
	KeyMaterialCost  = "material_cost"
	KeyOtherCost     = "other_cost"
	KeyNetProfit     = "net_profit"
	KeyMarginRate    = "margin_rate"
)

// DefaultColumns is the business sheet layout, in sheet order.
var DefaultColumns = []Column{
	{"프로젝트 코드", models.FieldCode},
	{"사업자", models.FieldCompany},
	{"담당자", models.FieldOwner},
	{"거래처", models.FieldClient},
	{"현장 주소", models.FieldSiteAddress},
	{"공사 구분", models.FieldWorkType},
	{"기계 분류", models.FieldEquipmentType},
	{"브랜드", models.FieldBrand},
	{"공사 시작", models.FieldStartDate},
	{"공사 종료", models.FieldEndDate},
	{"공사 내용", models.FieldWorkDescription},
	{"현장 담당자", models.FieldSiteManager},
	{"담당자 연락처", models.FieldManagerPhone},
	{"담당자 이메일", models.FieldManagerEmail},
	{"총액 1", models.FieldTotalAmount},
	{"부가세액", KeyVATAmount},
	{"계약금", KeyDownPayment},
	{"중도금", KeyMiddlePayment},
	{"잔금", KeyFinalPayment},
	{"입금액", models.FieldAmountPaid},
	{"미수금", KeyOutstanding},
	{"제품대", KeyProductCost},
	{"도급비", KeyLaborCost},
	{"자재비", KeyMaterialCost},
	{"기타비", KeyOtherCost},
	{"원가", models.FieldCostAmount},
	{"순익", KeyNetProfit},
	{"마진율", KeyMarginRate},
	{"비고", KeyNotes},
	{"지역", models.FieldRegion},
	{"상태", KeyStatus},
}

// Headers returns the header labels of columns in order.
func Headers(columns []Column) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Header
	}
	return out
}

// Layout locates each field in a concrete header row.
type Layout struct {
	width int
	index map[string]int
}

// NewLayout matches header labels against columns. Unknown headers are kept
// as opaque columns; fields whose header is absent are not read or written.
func NewLayout(header []string, columns []Column) Layout {
	byHeader := make(map[string]string, len(columns))
	for _, c := range columns {
		byHeader[normalize(c.Header)] = c.Field
	}
	l := Layout{width: len(header), index: map[string]int{}}
	for i, h := range header {
		if field, ok := byHeader[normalize(h)]; ok {
			if _, dup := l.index[field]; !dup {
				l.index[field] = i
			}
		}
	}
	return l
}

// Width is the number of columns in the header row.
func (l Layout) Width() int { return l.width }

// Has reports whether the layout carries field.
func (l Layout) Has(field string) bool {
	_, ok := l.index[field]
	return ok
}

// Column returns the zero-based position of field.
func (l Layout) Column(field string) (int, bool) {
	i, ok := l.index[field]
	return i, ok
}

func (l Layout) cell(row []string, field string) string {
	i, ok := l.index[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Code returns the project code cell of row.
func (l Layout) Code(row []string) string {
	return l.cell(row, models.FieldCode)
}

// Blank reports whether every cell of row is empty.
func Blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Decode reads the entered fields of row. Derived columns are ignored; they
// are recomputed from the entered values.
func (l Layout) Decode(row []string) (string, compute.Input) {
	in := compute.Input{
		Region:          l.cell(row, models.FieldRegion),
		Owner:           l.cell(row, models.FieldOwner),
		Company:         l.cell(row, models.FieldCompany),
		Client:          l.cell(row, models.FieldClient),
		SiteAddress:     l.cell(row, models.FieldSiteAddress),
		WorkDescription: l.cell(row, models.FieldWorkDescription),
		WorkType:        l.cell(row, models.FieldWorkType),
		EquipmentType:   l.cell(row, models.FieldEquipmentType),
		Brand:           l.cell(row, models.FieldBrand),
		SiteManager:     l.cell(row, models.FieldSiteManager),
		ManagerPhone:    l.cell(row, models.FieldManagerPhone),
		ManagerEmail:    l.cell(row, models.FieldManagerEmail),
		Notes:           l.cell(row, KeyNotes),
		Status:          l.cell(row, KeyStatus),
		StartDate:       l.cell(row, models.FieldStartDate),
		EndDate:         l.cell(row, models.FieldEndDate),
		TotalAmount:     compute.Amount(l.cell(row, models.FieldTotalAmount)),
		AmountPaid:      compute.Amount(l.cell(row, models.FieldAmountPaid)),
		DownPayment:     compute.Amount(l.cell(row, KeyDownPayment)),
		MiddlePayment:   compute.Amount(l.cell(row, KeyMiddlePayment)),
		FinalPayment:    compute.Amount(l.cell(row, KeyFinalPayment)),
		CostAmount:      compute.Amount(l.cell(row, models.FieldCostAmount)),
		ProductCost:     compute.Amount(l.cell(row, KeyProductCost)),
		LaborCost:       compute.Amount(l.cell(row, KeyLaborCost)),
		MaterialCost:    compute.Amount(l.cell(row, KeyMaterialCost)),
		OtherCost:       compute.Amount(l.cell(row, KeyOtherCost)),
	}
	if in.Region == "" {
		in.Region = RegionOf(l.Code(row))
	}
	return l.Code(row), in
}

// Encode writes p into a copy of base (or a fresh row) and returns it.
// Columns the layout does not know keep their base value.
func (l Layout) Encode(p *models.Project, base []string) []string {
	row := make([]string, l.width)
	copy(row, base)

	values := map[string]string{
		models.FieldCode:            p.Code,
		models.FieldRegion:          p.Region,
		models.FieldOwner:           p.Owner,
		models.FieldCompany:         p.Company,
		models.FieldClient:          p.Client,
		models.FieldSiteAddress:     p.SiteAddress,
		models.FieldWorkDescription: p.WorkDescription,
		models.FieldWorkType:        p.WorkType,
		models.FieldEquipmentType:   p.EquipmentType,
		models.FieldBrand:           p.Brand,
		models.FieldSiteManager:     p.SiteManager,
		models.FieldManagerPhone:    p.ManagerPhone,
		models.FieldManagerEmail:    p.ManagerEmail,
		models.FieldStartDate:       p.FieldValue(models.FieldStartDate),
		models.FieldEndDate:         p.FieldValue(models.FieldEndDate),
		models.FieldTotalAmount:     text(p.TotalAmount),
		models.FieldAmountPaid:      text(p.AmountPaid),
		models.FieldCostAmount:      text(p.CostAmount),
		KeyStatus:                   string(p.Status),
		KeyNotes:                    p.Notes,
		KeyVATAmount:                text(p.VATAmount),
		KeyDownPayment:              text(p.DownPayment),
		KeyMiddlePayment:            text(p.MiddlePayment),
		KeyFinalPayment:             text(p.FinalPayment),
		KeyOutstanding:              text(p.OutstandingAmount),
		KeyProductCost:              text(p.ProductCost),
		KeyLaborCost:                text(p.LaborCost),
		KeyMaterialCost:             text(p.MaterialCost),
		KeyOtherCost:                text(p.OtherCost),
		KeyNetProfit:                text(p.NetProfit),
		KeyMarginRate:               text(p.MarginRate),
	}
	for field, v := range values {
		if i, ok := l.index[field]; ok {
			row[i] = v
		}
	}
	return row
}

// RegionOf extracts the region prefix of a project code ("A-001" -> "A").
func RegionOf(code string) string {
	prefix, _, ok := strings.Cut(code, "-")
	if !ok {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(prefix))
}

// ParseCode splits a project code into its region and sequence number.
// ok is false unless the code looks like "<region>-<positive number>".
func ParseCode(code string) (region string, seq int64, ok bool) {
	prefix, digits, found := strings.Cut(strings.TrimSpace(code), "-")
	if !found {
		return "", 0, false
	}
	region = strings.ToUpper(strings.TrimSpace(prefix))
	seq, err := strconv.ParseInt(strings.TrimSpace(digits), 10, 64)
	if region == "" || err != nil || seq < 1 {
		return "", 0, false
	}
	return region, seq, true
}

func text(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func normalize(h string) string {
	return strings.Join(strings.Fields(h), "")
}
