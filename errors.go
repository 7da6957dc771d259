// Package singlecellsignalr holds the shared input-boundary helpers and the
// error kinds used across the ligand-receptor signaling pipeline.
package singlecellsignalr

import "errors"

// The pipeline distinguishes three failure kinds. Configuration and schema
// violations are fatal and surfaced immediately; callers test for them with
// errors.Is.
var (
	// ErrInput marks a malformed or missing input matrix, or a matrix that
	// is empty after filtering.
	ErrInput = errors.New("invalid input")

	// ErrConfig marks an invalid parameter combination or a reference-table
	// schema violation.
	ErrConfig = errors.New("invalid configuration")

	// ErrLookup marks an unresolved name: a pathway filter that matches
	// nothing, or a receptor absent from the requested cluster.
	ErrLookup = errors.New("lookup failed")
)
