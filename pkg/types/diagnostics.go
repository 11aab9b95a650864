package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Diagnostic System
// -----------------------------------------------------------------------------
//
// Every structural problem the profiler meets while walking free lists or
// scanning regions is recorded as a Diagnostic instead of aborting the pass.
// A DiagnosticReport groups them for output:
//   - exact target addresses and the region they were found in
//   - expected/actual values for mismatches
//   - text, compact and JSON formatters

// Severity classifies how serious a diagnostic issue is
type Severity int

const (
	SevInfo     Severity = iota // Informational (unusual but valid)
	SevWarning                  // Results may be incomplete or approximate
	SevError                    // Region could not be read, totals are partial
	SevCritical                 // Structural corruption, region aborted
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	case SevCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DiagCategory classifies the type of issue found
type DiagCategory int

const (
	DiagStructure     DiagCategory = iota // Free-list or header structure problems
	DiagAccess                            // Unreadable memory
	DiagConfiguration                     // Missing or unexpected build configuration
	DiagAttribution                       // Ownership could not be determined
)

func (c DiagCategory) String() string {
	switch c {
	case DiagStructure:
		return "STRUCTURE"
	case DiagAccess:
		return "ACCESS"
	case DiagConfiguration:
		return "CONFIGURATION"
	case DiagAttribution:
		return "ATTRIBUTION"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the category by name.
func (c DiagCategory) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Diagnostic represents a single issue found while profiling
type Diagnostic struct {
	// Classification
	Severity Severity     `json:"severity"`
	Category DiagCategory `json:"category"`

	// Location
	Address   uint64 `json:"address"`             // Target address of the offending node or header
	Region    string `json:"region,omitempty"`    // Region name, empty for pass-level issues
	Structure string `json:"structure,omitempty"` // "FREELIST", "HEADER", "CONFIG", ...

	// Description
	Issue    string `json:"issue"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
}

// DiagnosticReport collects all diagnostics found during a pass
type DiagnosticReport struct {
	// Metadata
	Target    string        `json:"target,omitempty"`
	Processor int           `json:"processor"`
	ScanTime  time.Duration `json:"scan_time"`

	// Issues
	Diagnostics []Diagnostic `json:"diagnostics"`

	// Summary statistics
	Summary DiagSummary `json:"summary"`

	// Pre-computed groupings
	BySeverity map[Severity][]Diagnostic `json:"by_severity,omitempty"`
	ByRegion   map[string][]Diagnostic   `json:"by_region,omitempty"`
	ByAddress  []Diagnostic              `json:"-"` // sorted by address
}

// DiagSummary provides quick statistics
type DiagSummary struct {
	Critical int `json:"critical"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// NewDiagnosticReport creates an empty report
func NewDiagnosticReport() *DiagnosticReport {
	return &DiagnosticReport{
		BySeverity: make(map[Severity][]Diagnostic),
		ByRegion:   make(map[string][]Diagnostic),
	}
}

// Add adds a diagnostic to the report and updates indices.
// Add on a nil report is a no-op.
func (r *DiagnosticReport) Add(d Diagnostic) {
	if r == nil {
		return
	}
	r.Diagnostics = append(r.Diagnostics, d)

	switch d.Severity {
	case SevCritical:
		r.Summary.Critical++
	case SevError:
		r.Summary.Errors++
	case SevWarning:
		r.Summary.Warnings++
	case SevInfo:
		r.Summary.Info++
	}

	r.BySeverity[d.Severity] = append(r.BySeverity[d.Severity], d)
	r.ByRegion[d.Region] = append(r.ByRegion[d.Region], d)
}

// Finalize sorts diagnostics by address and prepares for output
func (r *DiagnosticReport) Finalize() {
	r.ByAddress = make([]Diagnostic, len(r.Diagnostics))
	copy(r.ByAddress, r.Diagnostics)
	sort.SliceStable(r.ByAddress, func(i, j int) bool {
		return r.ByAddress[i].Address < r.ByAddress[j].Address
	})
}

// HasCriticalIssues returns true if any critical issues were found
func (r *DiagnosticReport) HasCriticalIssues() bool {
	return r.Summary.Critical > 0
}

// HasErrors returns true if any errors or critical issues were found
func (r *DiagnosticReport) HasErrors() bool {
	return r.Summary.Critical > 0 || r.Summary.Errors > 0
}

// HasAnyIssues returns true if any issues were found (including warnings and info)
func (r *DiagnosticReport) HasAnyIssues() bool {
	return len(r.Diagnostics) > 0
}

// -----------------------------------------------------------------------------
// Output Formatters
// -----------------------------------------------------------------------------

// FormatJSON returns the report as formatted JSON (2-space indentation)
func (r *DiagnosticReport) FormatJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatText returns a human-readable text report
func (r *DiagnosticReport) FormatText() string {
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 79) + "\n")
	b.WriteString("Heap Diagnostic Report\n")
	b.WriteString(strings.Repeat("=", 79) + "\n\n")

	if r.Target != "" {
		b.WriteString(fmt.Sprintf("Target:    %s\n", r.Target))
	}
	b.WriteString(fmt.Sprintf("Processor: %d\n", r.Processor))
	b.WriteString(fmt.Sprintf("Scan time: %v\n\n", r.ScanTime))

	b.WriteString("SUMMARY\n")
	b.WriteString(strings.Repeat("-", 79) + "\n")
	b.WriteString(fmt.Sprintf("  Critical: %d\n", r.Summary.Critical))
	b.WriteString(fmt.Sprintf("  Errors:   %d\n", r.Summary.Errors))
	b.WriteString(fmt.Sprintf("  Warnings: %d\n", r.Summary.Warnings))
	b.WriteString(fmt.Sprintf("  Info:     %d\n\n", r.Summary.Info))

	if len(r.Diagnostics) == 0 {
		b.WriteString("No issues found.\n")
		return b.String()
	}

	b.WriteString("DIAGNOSTICS\n")
	b.WriteString(strings.Repeat("-", 79) + "\n\n")

	for _, severity := range []Severity{SevCritical, SevError, SevWarning, SevInfo} {
		diags := r.BySeverity[severity]
		if len(diags) == 0 {
			continue
		}

		b.WriteString(fmt.Sprintf("%s (%d)\n", severity, len(diags)))
		b.WriteString(strings.Repeat("~", 79) + "\n")

		for i, d := range diags {
			where := d.Region
			if where == "" {
				where = "-"
			}
			b.WriteString(fmt.Sprintf("\n%d. [%s/%s] %s at 0x%08X\n", i+1, where, d.Category, d.Structure, d.Address))
			b.WriteString(fmt.Sprintf("   %s\n", d.Issue))
			if d.Expected != nil {
				b.WriteString(fmt.Sprintf("   Expected: %v\n", d.Expected))
			}
			if d.Actual != nil {
				b.WriteString(fmt.Sprintf("   Actual:   %v\n", d.Actual))
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// FormatTextCompact returns a compact one-line-per-issue text format.
// Call Finalize first so lines come out in address order.
func (r *DiagnosticReport) FormatTextCompact() string {
	var b strings.Builder

	for _, d := range r.ByAddress {
		b.WriteString(fmt.Sprintf("0x%08X [%s/%s/%s] %s\n",
			d.Address, d.Severity, d.Region, d.Category, d.Issue))
	}

	if len(r.Diagnostics) == 0 {
		b.WriteString("No issues found.\n")
	}

	return b.String()
}
