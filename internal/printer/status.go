package printer

import (
	"github.com/fatih/color"

	"github.com/dyluth/keel/pkg/ledger"
)

var (
	statusColors = map[ledger.Status]*color.Color{
		ledger.StatusAllowed: color.New(color.FgGreen),
		ledger.StatusWarning: color.New(color.FgYellow),
		ledger.StatusReview:  color.New(color.FgYellow, color.Bold),
		ledger.StatusBlocked: color.New(color.FgRed, color.Bold),
	}

	severityColors = map[ledger.Severity]*color.Color{
		ledger.SeverityNone:     color.New(color.FgGreen),
		ledger.SeverityMinor:    color.New(color.FgCyan),
		ledger.SeverityModerate: color.New(color.FgYellow),
		ledger.SeverityMajor:    color.New(color.FgRed),
		ledger.SeverityCritical: color.New(color.FgRed, color.Bold),
	}
)

// Status returns the status label colorized by how bad it is.
func Status(s ledger.Status) string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(string(s))
	}
	return string(s)
}

// Severity returns the severity label colorized by how bad it is.
func Severity(s ledger.Severity) string {
	if c, ok := severityColors[s]; ok {
		return c.Sprint(string(s))
	}
	return string(s)
}
