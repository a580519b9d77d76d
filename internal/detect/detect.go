// Package detect finds projects with gaps in their required fields and groups
// them by the owner responsible for filling them in.
package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/kiko9987/itglobal/internal/models"
)

// Severity grades an owner's backlog of incomplete projects.
type Severity string

const (
	SeverityLow  Severity = "LOW"
	SeverityHigh Severity = "HIGH"
)

// UnassignedOwner groups records that have no owner.
const UnassignedOwner = "unassigned"

// Report lists one owner's incomplete projects.
type Report struct {
	Owner            string              `json:"owner"`
	ProjectCodes     []string            `json:"project_codes"`
	MissingByProject map[string][]string `json:"missing_by_project"`
	Severity         Severity            `json:"severity"`
}

// IncompleteCount is the number of projects with at least one gap.
func (r *Report) IncompleteCount() int {
	return len(r.ProjectCodes)
}

// MissingFieldCount is the total number of gaps across projects.
func (r *Report) MissingFieldCount() int {
	n := 0
	for _, fields := range r.MissingByProject {
		n += len(fields)
	}
	return n
}

// Empty reports whether the owner has nothing to fix.
func (r *Report) Empty() bool {
	return r == nil || len(r.ProjectCodes) == 0
}

// Detect scans records for empty required fields. Missing field names keep
// the order of requiredFields. Owners with no incomplete project are absent
// from the result. An owner is HIGH severity when their incomplete count
// reaches threshold.
func Detect(records []models.Project, requiredFields []string, threshold int) map[string]*Report {
	reports := map[string]*Report{}

	for i := range records {
		p := &records[i]
		var missing []string
		for _, f := range requiredFields {
			if strings.TrimSpace(p.FieldValue(f)) == "" {
				missing = append(missing, f)
			}
		}
		if len(missing) == 0 {
			continue
		}

		owner := strings.TrimSpace(p.Owner)
		if owner == "" {
			owner = UnassignedOwner
		}
		r, ok := reports[owner]
		if !ok {
			r = &Report{Owner: owner, MissingByProject: map[string][]string{}}
			reports[owner] = r
		}
		if _, seen := r.MissingByProject[p.Code]; !seen {
			r.ProjectCodes = append(r.ProjectCodes, p.Code)
		}
		r.MissingByProject[p.Code] = missing
	}

	for _, r := range reports {
		sort.Strings(r.ProjectCodes)
		r.Severity = SeverityLow
		if r.IncompleteCount() >= threshold {
			r.Severity = SeverityHigh
		}
	}
	return reports
}

// Fingerprint digests the report's content. Two reports with the same
// projects and gaps yield the same fingerprint.
func Fingerprint(r *Report) string {
	h := sha256.New()
	h.Write([]byte(r.Owner))
	for _, code := range r.ProjectCodes {
		h.Write([]byte{0})
		h.Write([]byte(code))
		for _, f := range r.MissingByProject[code] {
			h.Write([]byte{1})
			h.Write([]byte(f))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Owners returns the report keys sorted.
func Owners(reports map[string]*Report) []string {
	owners := make([]string, 0, len(reports))
	for owner := range reports {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// FieldStat is the completeness of one required field across all records.
type FieldStat struct {
	Field        string  `json:"field"`
	MissingCount int     `json:"missing_count"`
	MissingRatio float64 `json:"missing_ratio"`
}

// Stats summarises completeness across the record set.
type Stats struct {
	TotalRecords       int         `json:"total_records"`
	IncompleteRecords  int         `json:"incomplete_records"`
	OverallMissingRate float64     `json:"overall_missing_rate"`
	Fields             []FieldStat `json:"fields"`
}

// FieldStats reports per-field missing counts in requiredFields order and the
// share of all required cells that are empty.
func FieldStats(records []models.Project, requiredFields []string) Stats {
	stats := Stats{TotalRecords: len(records), Fields: make([]FieldStat, len(requiredFields))}
	for i, f := range requiredFields {
		stats.Fields[i].Field = f
	}

	totalMissing := 0
	for i := range records {
		incomplete := false
		for j, f := range requiredFields {
			if strings.TrimSpace(records[i].FieldValue(f)) == "" {
				stats.Fields[j].MissingCount++
				totalMissing++
				incomplete = true
			}
		}
		if incomplete {
			stats.IncompleteRecords++
		}
	}

	if len(records) == 0 {
		return stats
	}
	for i := range stats.Fields {
		stats.Fields[i].MissingRatio = ratio(stats.Fields[i].MissingCount, len(records))
	}
	if cells := len(records) * len(requiredFields); cells > 0 {
		stats.OverallMissingRate = ratio(totalMissing, cells)
	}
	return stats
}

// ratio rounds to four decimal places so results print stably.
func ratio(n, d int) float64 {
	return float64(n*10000/d) / 10000
}
