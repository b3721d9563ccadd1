package transform

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// SelectColumns keeps or drops the listed columns.
type SelectColumns struct {
	Columns []string `json:"columns"`
	// Keep defaults to true. False drops the listed columns instead.
	Keep *bool `json:"keep,omitempty"`
}

func (t *SelectColumns) Kind() domain.OperationKind { return domain.OpSelectColumns }

func (t *SelectColumns) Validate() error {
	if len(t.Columns) == 0 {
		return domain.ErrMissingArgument.WithDetails("columns")
	}
	return nil
}

func (t *SelectColumns) Apply(s *domain.Snapshot) (*Result, error) {
	if _, err := columnIndices(s, t.Columns); err != nil {
		return nil, err
	}
	keep := t.Keep == nil || *t.Keep

	listed := make(map[string]bool, len(t.Columns))
	for _, name := range t.Columns {
		listed[name] = true
	}

	var schema []domain.Column
	var cols [][]domain.Value
	if keep {
		// Preserve the requested order.
		for _, name := range t.Columns {
			c := s.ColumnIndex(name)
			schema = append(schema, s.Schema()[c])
			cols = append(cols, s.ColumnValues(c))
		}
	} else {
		for c, col := range s.Schema() {
			if !listed[col.Name] {
				schema = append(schema, col)
				cols = append(cols, s.ColumnValues(c))
			}
		}
	}
	if len(schema) == 0 {
		return nil, domain.ErrInvalidArgument.WithDetails(
			"select_columns would remove every column")
	}

	next, err := domain.NewSnapshot(schema, cols)
	if err != nil {
		return nil, err
	}
	mode := "keep"
	if !keep {
		mode = "drop"
	}
	return &Result{
		Snapshot: next,
		Counts:   domain.OperationCounts{ValuesAffected: len(t.Columns)},
		Params: map[string]string{
			"columns": joinNames(t.Columns),
			"keep":    mode,
		},
	}, nil
}

// FilterRows keeps the rows matching every condition.
type FilterRows struct {
	Conditions []Condition `json:"conditions"`
}

func (t *FilterRows) Kind() domain.OperationKind { return domain.OpFilterRows }

func (t *FilterRows) Validate() error {
	if len(t.Conditions) == 0 {
		return domain.ErrMissingArgument.WithDetails("conditions")
	}
	for _, c := range t.Conditions {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *FilterRows) Apply(s *domain.Snapshot) (*Result, error) {
	conds, err := compileConditions(s, t.Conditions)
	if err != nil {
		return nil, err
	}
	var keep []int
	for r := 0; r < s.Rows(); r++ {
		if match(s, r, conds) {
			keep = append(keep, r)
		}
	}
	next, err := keepRows(s, keep)
	if err != nil {
		return nil, err
	}
	return &Result{
		Snapshot: next,
		Counts:   domain.OperationCounts{RowsAffected: s.Rows() - len(keep)},
		Params: map[string]string{
			"conditions": describeConditions(t.Conditions),
		},
	}, nil
}

// SampleRows keeps a random subset of rows, by count or by fraction.
// A seed makes the sample reproducible.
type SampleRows struct {
	N    *int     `json:"n,omitempty"`
	Frac *float64 `json:"frac,omitempty"`
	Seed *int64   `json:"seed,omitempty"`
}

func (t *SampleRows) Kind() domain.OperationKind { return domain.OpSampleRows }

func (t *SampleRows) Validate() error {
	if t.N != nil && t.Frac != nil {
		return domain.ErrInvalidArgument.WithDetails("n and frac are mutually exclusive")
	}
	if t.N == nil && t.Frac == nil {
		return domain.ErrMissingArgument.WithDetails("one of n or frac")
	}
	if t.N != nil && *t.N <= 0 {
		return domain.ErrInvalidArgument.WithDetails("n must be positive")
	}
	if t.Frac != nil && (*t.Frac <= 0 || *t.Frac > 1) {
		return domain.ErrInvalidArgument.WithDetails("frac must be in (0, 1]")
	}
	return nil
}

func (t *SampleRows) Apply(s *domain.Snapshot) (*Result, error) {
	size := 0
	params := map[string]string{}
	if t.N != nil {
		if *t.N > s.Rows() {
			return nil, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("sample size %d exceeds table size %d", *t.N, s.Rows()))
		}
		size = *t.N
		params["n"] = strconv.Itoa(size)
	} else {
		size = int(float64(s.Rows()) * *t.Frac)
		params["frac"] = strconv.FormatFloat(*t.Frac, 'g', -1, 64)
	}

	seed := time.Now().UnixNano()
	if t.Seed != nil {
		seed = *t.Seed
		params["seed"] = strconv.FormatInt(seed, 10)
	}
	rng := rand.New(rand.NewSource(seed))
	keep := rng.Perm(s.Rows())[:size]

	next, err := keepRows(s, keep)
	if err != nil {
		return nil, err
	}
	return &Result{
		Snapshot: next,
		Counts:   domain.OperationCounts{RowsAffected: s.Rows() - size},
		Params:   params,
	}, nil
}
