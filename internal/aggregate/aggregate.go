// Package aggregate rolls project records up into the dashboard snapshot.
// Aggregate is a pure function of its inputs.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kiko9987/itglobal/internal/models"
)

// Aging bucket labels, in display order.
const (
	Aging0To30   = "0-30"
	Aging31To60  = "31-60"
	Aging61To90  = "61-90"
	AgingOver90  = "90+"
	AgingUndated = "undated"
)

// AgingLabels lists the bucket labels in display order.
var AgingLabels = []string{Aging0To30, Aging31To60, Aging61To90, AgingOver90, AgingUndated}

// Unspecified is the category key for records without a region, brand or owner.
const Unspecified = "unspecified"

// TopOutstandingLimit caps Snapshot.TopOutstanding.
const TopOutstandingLimit = 10

// Totals are the headline figures.
type Totals struct {
	ProjectCount    int             `json:"project_count"`
	RevenueSum      decimal.Decimal `json:"revenue_sum"`
	OutstandingSum  decimal.Decimal `json:"outstanding_sum"`
	ReceivedSum     decimal.Decimal `json:"received_sum"`
	RecoveryRate    decimal.Decimal `json:"recovery_rate"`
	NetProfitSum    decimal.Decimal `json:"net_profit_sum"`
	AverageAmount   decimal.Decimal `json:"average_amount"`
	CompletedCount  int             `json:"completed_count"`
	InProgressCount int             `json:"in_progress_count"`
	PendingCount    int             `json:"pending_count"`
	SkippedRecords  int             `json:"skipped_records"`
}

// MonthlyPoint is one month of the revenue series.
type MonthlyPoint struct {
	Month        string          `json:"month"`
	Revenue      decimal.Decimal `json:"revenue"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	ProjectCount int             `json:"project_count"`
}

// CategoryStat is the rollup for one region, brand or owner.
type CategoryStat struct {
	Revenue      decimal.Decimal     `json:"revenue"`
	MarginRate   decimal.NullDecimal `json:"margin_rate"`
	Outstanding  decimal.Decimal     `json:"outstanding"`
	ProjectCount int                 `json:"project_count"`
}

// OutstandingItem is one entry of the largest-balances list.
type OutstandingItem struct {
	Code        string          `json:"code"`
	Owner       string          `json:"owner"`
	Client      string          `json:"client"`
	Outstanding decimal.Decimal `json:"outstanding"`
	DaysElapsed *int            `json:"days_elapsed,omitempty"`
}

// Snapshot is a point-in-time rollup of the record set. It is never persisted.
type Snapshot struct {
	GeneratedAt    time.Time                  `json:"generated_at"`
	Totals         Totals                     `json:"totals"`
	MonthlySeries  []MonthlyPoint             `json:"monthly_series"`
	ByRegion       map[string]CategoryStat    `json:"by_region"`
	ByBrand        map[string]CategoryStat    `json:"by_brand"`
	ByOwner        map[string]CategoryStat    `json:"by_owner"`
	AgingBuckets   map[string]decimal.Decimal `json:"aging_buckets"`
	TopOutstanding []OutstandingItem          `json:"top_outstanding"`
}

// categoryAcc accumulates one category; margin uses only records that carry
// both total and cost.
type categoryAcc struct {
	revenue     decimal.Decimal
	outstanding decimal.Decimal
	count       int
	marginBase  decimal.Decimal
	marginGain  decimal.Decimal
	hasMargin   bool
}

func (a *categoryAcc) add(p *models.Project) {
	a.count++
	if p.TotalAmount.Valid {
		a.revenue = a.revenue.Add(p.TotalAmount.Decimal)
	}
	if p.OutstandingAmount.Valid {
		a.outstanding = a.outstanding.Add(p.OutstandingAmount.Decimal)
	}
	if p.TotalAmount.Valid && p.CostAmount.Valid {
		a.marginBase = a.marginBase.Add(p.TotalAmount.Decimal)
		a.marginGain = a.marginGain.Add(p.TotalAmount.Decimal.Sub(p.CostAmount.Decimal))
		a.hasMargin = true
	}
}

func (a *categoryAcc) stat() CategoryStat {
	s := CategoryStat{Revenue: a.revenue, Outstanding: a.outstanding, ProjectCount: a.count}
	if a.hasMargin && !a.marginBase.IsZero() {
		s.MarginRate = decimal.NewNullDecimal(a.marginGain.Div(a.marginBase).Round(4))
	}
	return s
}

// Aggregate computes the snapshot of records as of asOf. Records that could
// not have passed validation are counted in SkippedRecords and otherwise
// ignored. Absent amounts count as zero in sums.
func Aggregate(records []models.Project, asOf time.Time) *Snapshot {
	snap := &Snapshot{
		GeneratedAt:    asOf,
		MonthlySeries:  []MonthlyPoint{},
		ByRegion:       map[string]CategoryStat{},
		ByBrand:        map[string]CategoryStat{},
		ByOwner:        map[string]CategoryStat{},
		AgingBuckets:   make(map[string]decimal.Decimal, len(AgingLabels)),
		TopOutstanding: []OutstandingItem{},
	}
	for _, label := range AgingLabels {
		snap.AgingBuckets[label] = decimal.Zero
	}

	today := dateOf(asOf)
	totals := &snap.Totals
	months := map[string]*MonthlyPoint{}
	regions := map[string]*categoryAcc{}
	brands := map[string]*categoryAcc{}
	owners := map[string]*categoryAcc{}
	var amountCount int64

	for i := range records {
		p := &records[i]
		if !countable(p) {
			totals.SkippedRecords++
			continue
		}

		totals.ProjectCount++
		switch p.Status {
		case models.StatusComplete:
			totals.CompletedCount++
		case models.StatusInProgress:
			totals.InProgressCount++
		default:
			totals.PendingCount++
		}

		revenue := valueOrZero(p.TotalAmount)
		outstanding := valueOrZero(p.OutstandingAmount)
		if p.TotalAmount.Valid {
			amountCount++
		}
		totals.RevenueSum = totals.RevenueSum.Add(revenue)
		totals.OutstandingSum = totals.OutstandingSum.Add(outstanding)
		totals.NetProfitSum = totals.NetProfitSum.Add(valueOrZero(p.NetProfit))

		accumulate(regions, p.Region, p)
		accumulate(brands, p.Brand, p)
		accumulate(owners, p.Owner, p)

		var elapsed *int
		if p.StartDate != nil {
			month := p.StartDate.Format("2006-01")
			mp, ok := months[month]
			if !ok {
				mp = &MonthlyPoint{Month: month}
				months[month] = mp
			}
			mp.Revenue = mp.Revenue.Add(revenue)
			mp.Outstanding = mp.Outstanding.Add(outstanding)
			mp.ProjectCount++

			days := int(today.Sub(dateOf(*p.StartDate)).Hours() / 24)
			elapsed = &days
		}

		if outstanding.IsPositive() {
			label := AgingUndated
			if elapsed != nil {
				label = agingLabel(*elapsed)
			}
			snap.AgingBuckets[label] = snap.AgingBuckets[label].Add(outstanding)
			snap.TopOutstanding = append(snap.TopOutstanding, OutstandingItem{
				Code:        p.Code,
				Owner:       p.Owner,
				Client:      p.Client,
				Outstanding: outstanding,
				DaysElapsed: elapsed,
			})
		}
	}

	totals.ReceivedSum = totals.RevenueSum.Sub(totals.OutstandingSum)
	totals.RecoveryRate = decimal.NewFromInt(1)
	if !totals.RevenueSum.IsZero() {
		totals.RecoveryRate = totals.ReceivedSum.Div(totals.RevenueSum).Round(4)
	}
	if amountCount > 0 {
		totals.AverageAmount = totals.RevenueSum.Div(decimal.NewFromInt(amountCount)).Round(2)
	}

	for _, mp := range months {
		snap.MonthlySeries = append(snap.MonthlySeries, *mp)
	}
	sort.Slice(snap.MonthlySeries, func(i, j int) bool {
		return snap.MonthlySeries[i].Month < snap.MonthlySeries[j].Month
	})

	for key, acc := range regions {
		snap.ByRegion[key] = acc.stat()
	}
	for key, acc := range brands {
		snap.ByBrand[key] = acc.stat()
	}
	for key, acc := range owners {
		snap.ByOwner[key] = acc.stat()
	}

	sort.Slice(snap.TopOutstanding, func(i, j int) bool {
		a, b := snap.TopOutstanding[i], snap.TopOutstanding[j]
		if cmp := a.Outstanding.Cmp(b.Outstanding); cmp != 0 {
			return cmp > 0
		}
		return a.Code < b.Code
	})
	if len(snap.TopOutstanding) > TopOutstandingLimit {
		snap.TopOutstanding = snap.TopOutstanding[:TopOutstandingLimit]
	}

	return snap
}

// countable reports whether p could have passed validation at write time.
func countable(p *models.Project) bool {
	if p.Code == "" {
		return false
	}
	if p.TotalAmount.Valid && p.TotalAmount.Decimal.IsNegative() {
		return false
	}
	return true
}

func accumulate(accs map[string]*categoryAcc, key string, p *models.Project) {
	if key == "" {
		key = Unspecified
	}
	acc, ok := accs[key]
	if !ok {
		acc = &categoryAcc{}
		accs[key] = acc
	}
	acc.add(p)
}

func agingLabel(days int) string {
	switch {
	case days <= 30:
		return Aging0To30
	case days <= 60:
		return Aging31To60
	case days <= 90:
		return Aging61To90
	default:
		return AgingOver90
	}
}

func valueOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// dateOf drops the clock part of t, keeping the calendar date of t's location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
