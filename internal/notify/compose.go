package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kiko9987/itglobal/internal/aggregate"
	"github.com/kiko9987/itglobal/internal/detect"
)

// UrgentPrefix marks the subject of HIGH severity digests.
const UrgentPrefix = "[URGENT] "

// ComposeDigest renders an owner's report: one line per incomplete project
// listing its missing fields in declared order.
func ComposeDigest(r *detect.Report, dashboardURL string) Message {
	subject := fmt.Sprintf("Missing project data: %d project(s) need your input", r.IncompleteCount())
	if r.Severity == detect.SeverityHigh {
		subject = UrgentPrefix + subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", r.Owner)
	fmt.Fprintf(&b, "The following projects are missing required information (%d field(s) in total):\n\n",
		r.MissingFieldCount())
	for _, code := range r.ProjectCodes {
		fmt.Fprintf(&b, "- %s: %s\n", code, fieldList(r.MissingByProject[code]))
	}
	if dashboardURL != "" {
		fmt.Fprintf(&b, "\nUpdate them at %s\n", dashboardURL)
	}
	return Message{Subject: subject, Body: b.String()}
}

// ComposeSummary renders the admin daily summary. snap may be nil when no
// snapshot has been built yet.
func ComposeSummary(day string, reports map[string]*detect.Report, snap *aggregate.Snapshot) Message {
	owners := detect.Owners(reports)
	incomplete, missing, high := 0, 0, 0
	for _, owner := range owners {
		r := reports[owner]
		incomplete += r.IncompleteCount()
		missing += r.MissingFieldCount()
		if r.Severity == detect.SeverityHigh {
			high++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Daily summary for %s\n\n", day)
	fmt.Fprintf(&b, "Owners with incomplete projects: %d (%d urgent)\n", len(owners), high)
	fmt.Fprintf(&b, "Incomplete projects: %d\n", incomplete)
	fmt.Fprintf(&b, "Missing fields: %d\n", missing)
	if len(owners) > 0 {
		b.WriteString("\n")
		for _, owner := range owners {
			r := reports[owner]
			fmt.Fprintf(&b, "- %s: %d project(s), %s\n", owner, r.IncompleteCount(), r.Severity)
		}
	}

	b.WriteString("\n")
	if snap == nil {
		b.WriteString("Financial totals are not available yet.\n")
	} else {
		t := snap.Totals
		fmt.Fprintf(&b, "Projects: %d\n", t.ProjectCount)
		fmt.Fprintf(&b, "Revenue: %s\n", FormatAmount(t.RevenueSum))
		fmt.Fprintf(&b, "Received: %s\n", FormatAmount(t.ReceivedSum))
		fmt.Fprintf(&b, "Outstanding: %s\n", FormatAmount(t.OutstandingSum))
		fmt.Fprintf(&b, "Recovery rate: %s%%\n", t.RecoveryRate.Mul(decimal.NewFromInt(100)).StringFixed(1))
		fmt.Fprintf(&b, "Snapshot taken at %s\n", snap.GeneratedAt.Format("2006-01-02 15:04 MST"))
	}

	return Message{Subject: fmt.Sprintf("Daily project summary %s", day), Body: b.String()}
}

// FormatAmount renders d rounded to whole units with thousands separators.
func FormatAmount(d decimal.Decimal) string {
	s := d.Round(0).Abs().String()
	var b strings.Builder
	if d.Round(0).IsNegative() {
		b.WriteByte('-')
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func fieldList(fields []string) string {
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = strings.ReplaceAll(f, "_", " ")
	}
	return strings.Join(labels, ", ")
}
