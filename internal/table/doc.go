// Package table is the in-memory tabular model used by the reconciliation
// pipeline.
//
// A Table has ordered column names and rows of typed cells (text, number,
// date or null). Tables are immutable: Filter, Drop, Rename, LeftJoin and the
// other transforms return new tables.
//
// Loader turns uploaded bytes into a Table. It reads the first sheet of
// .xlsx/.xlsm workbooks (excelize), legacy .xls workbooks (extrame/xls) and
// CSV files, decoding Windows-1252 when the bytes are not UTF-8.
//
// Columns are located by normalized substring (FindColumn) or resolved once
// into a Schema from ordered synonym lists (ResolveSchema).
package table
