// Package types holds the value types shared between the profiling engine
// and its consumers.
//
// The main export is DiagnosticReport: every free-list cycle, out-of-range
// node, header mismatch or unreadable range met during a profiling pass is
// recorded as a Diagnostic with its target address and region, so a single
// pass can report on every region instead of stopping at the first problem.
//
// # Usage Example
//
//	report := types.NewDiagnosticReport()
//	report.Add(types.Diagnostic{
//	    Severity:  types.SevCritical,
//	    Category:  types.DiagStructure,
//	    Address:   0x00012340,
//	    Region:    "HEAP_MAIN",
//	    Structure: "FREELIST",
//	    Issue:     "repeating free-list node",
//	})
//	report.Finalize()
//	fmt.Print(report.FormatTextCompact())
//
// This package has no dependencies beyond the standard library.
package types
