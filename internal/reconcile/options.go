package reconcile

import (
	"strings"
	"unicode"

	"backfill/internal/config"
)

// DuplicatePolicy decides what happens when one order has several distinct
// start/finish/serial combinations in ZQM.
type DuplicatePolicy string

const (
	// KeepAll joins every combination, repeating the PMR rows of that order.
	KeepAll DuplicatePolicy = "keep_all"
	// LatestFinish keeps the combination with the latest finish, then latest start.
	LatestFinish DuplicatePolicy = "latest_finish"
)

// OwnerBucket projects one SOH owner onto a PMR column
type OwnerBucket struct {
	Owner  string // value in the SOH Owner column, e.g. MR9191
	Column string // PMR output column, e.g. 9191
}

// Options carries the business tables for a run
type Options struct {
	StockTypes      []string
	StorageTypes    []string
	Owners          []OwnerBucket
	DuplicatePolicy DuplicatePolicy
}

// DefaultOptions returns the standard allow-lists and owners
func DefaultOptions() Options {
	return NewOptions(config.Default().Reconcile)
}

// NewOptions builds run options from configuration
func NewOptions(cfg config.ReconcileConfig) Options {
	policy := DuplicatePolicy(cfg.DuplicatePolicy)
	if policy != LatestFinish {
		policy = KeepAll
	}
	return Options{
		StockTypes:      append([]string(nil), cfg.StockTypes...),
		StorageTypes:    append([]string(nil), cfg.StorageTypes...),
		Owners:          OwnerBuckets(cfg.OwnerCodes),
		DuplicatePolicy: policy,
	}
}

// OwnerBuckets derives output columns from owner codes by dropping the
// leading letters: MR9191 becomes 9191.
func OwnerBuckets(codes []string) []OwnerBucket {
	out := make([]OwnerBucket, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		col := strings.TrimLeftFunc(code, unicode.IsLetter)
		if col == "" {
			col = code
		}
		out = append(out, OwnerBucket{Owner: code, Column: col})
	}
	return out
}

// OwnerColumns lists the PMR columns produced by the owner buckets
func (o Options) OwnerColumns() []string {
	cols := make([]string, len(o.Owners))
	for i, b := range o.Owners {
		cols[i] = b.Column
	}
	return cols
}
