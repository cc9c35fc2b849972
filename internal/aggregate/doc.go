// Package aggregate merges per-page analyses into the audit report.
//
// Pages may be added in any completion order. Build sorts every list it
// produces with a total order, so the report only depends on the set of
// pages added.
package aggregate
