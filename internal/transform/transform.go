// Package transform implements the operation catalogue applied to
// table snapshots: cleaning, selection and transformation families.
// Every transform is a small value decoded from a JSON request body,
// validated up front, and applied to an immutable snapshot to produce
// the next one. Transforms never mutate their input.
package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// Result carries the outcome of one applied transform: the new
// snapshot, the touch counts for the operation record, and the
// parameter summary persisted with it.
type Result struct {
	Snapshot *domain.Snapshot
	Counts   domain.OperationCounts
	Params   map[string]string
}

// Transform is one member of the operation catalogue.
type Transform interface {
	// Kind tags the transform family.
	Kind() domain.OperationKind
	// Validate checks the parameters that can be checked without a
	// snapshot. Column existence and type checks happen in Apply.
	Validate() error
	// Apply builds the next snapshot from the current one.
	Apply(snap *domain.Snapshot) (*Result, error)
}

// Decode builds the transform for kind from a JSON request body.
// Unknown kinds and unknown fields are rejected; the parameter sets
// are closed.
func Decode(kind domain.OperationKind, body []byte) (Transform, error) {
	var t Transform
	switch kind {
	case domain.OpDropRows:
		t = &DropRows{}
	case domain.OpFillMissing:
		t = &FillMissing{}
	case domain.OpDropMissing:
		t = &DropMissing{}
	case domain.OpReplaceValues:
		t = &ReplaceValues{}
	case domain.OpCleanStrings:
		t = &CleanStrings{}
	case domain.OpRemoveOutliers:
		t = &RemoveOutliers{}
	case domain.OpSelectColumns:
		t = &SelectColumns{}
	case domain.OpFilterRows:
		t = &FilterRows{}
	case domain.OpSampleRows:
		t = &SampleRows{}
	case domain.OpRenameColumns:
		t = &RenameColumns{}
	case domain.OpReorderColumns:
		t = &ReorderColumns{}
	case domain.OpSort:
		t = &Sort{}
	case domain.OpApplyFunc:
		t = &ApplyFunc{}
	default:
		return nil, domain.ErrInvalidOperation.WithDetails("unknown kind " + string(kind))
	}

	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(t); err != nil {
			return nil, domain.ErrBadRequest.WithDetails(err.Error()).WithCause(err)
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// columnIndex resolves name or reports the standard unknown-column
// error.
func columnIndex(s *domain.Snapshot, name string) (int, error) {
	if i := s.ColumnIndex(name); i >= 0 {
		return i, nil
	}
	return 0, domain.ErrInvalidArgument.WithDetails(
		fmt.Sprintf("column %q not found", name))
}

// columnIndices resolves a list of names in order.
func columnIndices(s *domain.Snapshot, names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		idx, err := columnIndex(s, name)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// keepRows assembles a new snapshot from the given row indices,
// preserving the schema. Indices are taken in the given order.
func keepRows(s *domain.Snapshot, rows []int) (*domain.Snapshot, error) {
	b := domain.NewBuilder(s.Schema())
	for _, r := range rows {
		b.Append(s.Row(r))
	}
	return b.Snapshot()
}

func joinNames(names []string) string {
	return strings.Join(names, ",")
}
