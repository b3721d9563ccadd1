// Package domain defines the core domain models for TabMesh.
package domain

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// OperationKind tags the transform family that produced a state
// transition. The set is closed: transforms select a kind by tag and
// never register new ones at runtime.
type OperationKind string

// Transform families.
const (
	OpDropRows       OperationKind = "drop_rows"
	OpFillMissing    OperationKind = "fill_missing"
	OpDropMissing    OperationKind = "drop_missing"
	OpReplaceValues  OperationKind = "replace_values"
	OpCleanStrings   OperationKind = "clean_strings"
	OpRemoveOutliers OperationKind = "remove_outliers"
	OpSelectColumns  OperationKind = "select_columns"
	OpFilterRows     OperationKind = "filter_rows"
	OpSampleRows     OperationKind = "sample_rows"
	OpRenameColumns  OperationKind = "rename_columns"
	OpReorderColumns OperationKind = "reorder_columns"
	OpSort           OperationKind = "sort"
	OpApplyFunc      OperationKind = "apply_func"
)

// allowedParams fixes the parameter field set per kind. Records carrying
// unknown keys are rejected before they reach the store.
var allowedParams = map[OperationKind][]string{
	OpDropRows:       {"mode", "indices", "condition", "subset", "keep"},
	OpFillMissing:    {"mode", "value", "method", "columns"},
	OpDropMissing:    {"how", "thresh", "axis", "subset"},
	OpReplaceValues:  {"column", "from", "to"},
	OpCleanStrings:   {"columns", "operation"},
	OpRemoveOutliers: {"columns", "method", "threshold"},
	OpSelectColumns:  {"columns", "keep"},
	OpFilterRows:     {"conditions"},
	OpSampleRows:     {"n", "frac", "seed"},
	OpRenameColumns:  {"mapping"},
	OpReorderColumns: {"columns"},
	OpSort:           {"by", "ascending"},
	OpApplyFunc:      {"column", "func", "operand", "new_column"},
}

// OperationCounts records how much of the table a transition touched.
type OperationCounts struct {
	RowsAffected   int `json:"rows_affected"`
	ValuesAffected int `json:"values_affected"`
}

// OperationRecord is one audit entry describing a state transition.
// Records are appended exactly once per successful commit, never
// mutated, and ordered by commit sequence.
type OperationRecord struct {
	// ID is a ULID assigned at construction.
	ID string `json:"id"`

	// Kind tags the transform family.
	Kind OperationKind `json:"kind"`

	// Params is the operation's parameter payload. Keys are fixed per
	// kind; see allowedParams.
	Params map[string]string `json:"params,omitempty"`

	// Counts records rows/values affected.
	Counts OperationCounts `json:"counts"`

	// Timestamp is the commit time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// NewOperationRecord creates a validated operation record with a fresh
// ID and timestamp.
func NewOperationRecord(kind OperationKind, params map[string]string, counts OperationCounts) (*OperationRecord, error) {
	rec := &OperationRecord{
		ID:        newULID(),
		Kind:      kind,
		Params:    params,
		Counts:    counts,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate checks the record's kind and its parameter keys against the
// fixed field set for that kind.
func (r *OperationRecord) Validate() error {
	allowed, ok := allowedParams[r.Kind]
	if !ok {
		return ErrInvalidOperation.WithDetails("unknown kind: " + string(r.Kind))
	}
	for key := range r.Params {
		found := false
		for _, a := range allowed {
			if key == a {
				found = true
				break
			}
		}
		if !found {
			return ErrInvalidOperation.WithDetails(
				"parameter " + key + " not allowed for kind " + string(r.Kind))
		}
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *OperationRecord) Clone() *OperationRecord {
	clone := *r
	if r.Params != nil {
		clone.Params = make(map[string]string, len(r.Params))
		for k, v := range r.Params {
			clone.Params[k] = v
		}
	}
	return &clone
}

// TimestampTime returns the commit time as time.Time.
func (r *OperationRecord) TimestampTime() time.Time {
	return time.UnixMilli(r.Timestamp)
}

func newULID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// crypto/rand does not fail on supported platforms.
		return ulid.Make().String()
	}
	return id.String()
}
