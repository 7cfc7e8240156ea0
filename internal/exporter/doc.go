// Package exporter serializes reconciliation tables for download.
//
// WorkbookBuilder writes named sheets into one xlsx workbook. A sheet holds
// one or more table blocks placed left to right, optional per-cell highlight
// rules and a tab color.
//
// BuildReport assembles the final reconciliation workbook:
//
//	MASTER          annotated PMR, Hit colored by status, owner cells green when positive
//	SOH Raw         SOH rows that passed the stock and storage type filters
//	SOH Pivot       quantity by product and owner
//	Pivot Summary   staging and goods issue pivots side by side
//	Combined Pivot  merged pivot with the Hit column
//
// CSVWriter writes a single table as UTF-8 CSV with a BOM so Excel detects
// the encoding.
package exporter
