package transform

import (
	"errors"
	"reflect"
	"testing"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

func TestSelectColumnsKeep(t *testing.T) {
	s := testSnapshot(t)
	res := apply(t, &SelectColumns{Columns: []string{"score", "name"}}, s)

	got := res.Snapshot.ColumnNames()
	if !reflect.DeepEqual(got, []string{"score", "name"}) {
		t.Fatalf("columns = %v, want [score name]", got)
	}
	if res.Snapshot.Rows() != s.Rows() {
		t.Fatalf("rows = %d, want %d", res.Snapshot.Rows(), s.Rows())
	}
}

func TestSelectColumnsDrop(t *testing.T) {
	s := testSnapshot(t)
	keep := false
	res := apply(t, &SelectColumns{Columns: []string{"age"}, Keep: &keep}, s)

	got := res.Snapshot.ColumnNames()
	if !reflect.DeepEqual(got, []string{"name", "score"}) {
		t.Fatalf("columns = %v, want [name score]", got)
	}
}

func TestSelectColumnsRejectsEmptyResult(t *testing.T) {
	s := testSnapshot(t)
	keep := false
	_, err := (&SelectColumns{Columns: []string{"name", "age", "score"}, Keep: &keep}).Apply(s)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("Apply = %v, want ErrInvalidArgument", err)
	}
}

func TestSelectColumnsUnknownColumn(t *testing.T) {
	s := testSnapshot(t)
	if _, err := (&SelectColumns{Columns: []string{"ghost"}}).Apply(s); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("Apply = %v, want ErrInvalidArgument", err)
	}
}

func TestFilterRowsConditions(t *testing.T) {
	s := testSnapshot(t)
	res := apply(t, &FilterRows{Conditions: []Condition{
		{Column: "age", Op: CondGe, Operand: float64(28)},
		{Column: "score", Op: CondGt, Operand: float64(5)},
	}}, s)

	// AND semantics: only Ada (35, 9.5) and bob (41, 7.25) pass;
	// rows with a missing tested cell never match.
	if res.Snapshot.Rows() != 2 {
		t.Fatalf("rows = %d, want 2", res.Snapshot.Rows())
	}
	if got := cellStr(t, res.Snapshot, 0, "name"); got != " Ada " {
		t.Fatalf("row 0 = %q, want Ada", got)
	}
}

func TestFilterRowsContains(t *testing.T) {
	s := testSnapshot(t)
	res := apply(t, &FilterRows{Conditions: []Condition{
		{Column: "name", Op: CondContains, Operand: "ob"},
	}}, s)
	if res.Snapshot.Rows() != 2 {
		t.Fatalf("rows = %d, want 2", res.Snapshot.Rows())
	}

	_, err := (&FilterRows{Conditions: []Condition{
		{Column: "age", Op: CondContains, Operand: "3"},
	}}).Apply(s)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("contains on int column = %v, want ErrInvalidArgument", err)
	}
}

func TestFilterRowsOperandCoercion(t *testing.T) {
	s := testSnapshot(t)
	// Operand type must be decodable into the column type.
	_, err := (&FilterRows{Conditions: []Condition{
		{Column: "age", Op: CondGt, Operand: "thirty"},
	}}).Apply(s)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad operand = %v, want ErrInvalidArgument", err)
	}
}

func TestSampleRowsSeeded(t *testing.T) {
	s := testSnapshot(t)
	n, seed := 2, int64(7)

	a := apply(t, &SampleRows{N: &n, Seed: &seed}, s)
	b := apply(t, &SampleRows{N: &n, Seed: &seed}, s)

	if a.Snapshot.Rows() != 2 || b.Snapshot.Rows() != 2 {
		t.Fatalf("rows = %d/%d, want 2", a.Snapshot.Rows(), b.Snapshot.Rows())
	}
	for r := 0; r < 2; r++ {
		if cellStr(t, a.Snapshot, r, "name") != cellStr(t, b.Snapshot, r, "name") {
			t.Fatal("same seed produced different samples")
		}
	}
}

func TestSampleRowsFrac(t *testing.T) {
	s := testSnapshot(t)
	frac := 0.5
	res := apply(t, &SampleRows{Frac: &frac}, s)
	if res.Snapshot.Rows() != 2 {
		t.Fatalf("rows = %d, want 2", res.Snapshot.Rows())
	}
}

func TestSampleRowsValidation(t *testing.T) {
	n, frac := 2, 0.5
	bad := 0
	over := 99

	cases := []struct {
		name string
		tr   *SampleRows
	}{
		{"both", &SampleRows{N: &n, Frac: &frac}},
		{"neither", &SampleRows{}},
		{"zero n", &SampleRows{N: &bad}},
	}
	for _, tc := range cases {
		if err := tc.tr.Validate(); err == nil {
			t.Fatalf("%s: Validate succeeded, want error", tc.name)
		}
	}

	s := testSnapshot(t)
	if _, err := (&SampleRows{N: &over}).Apply(s); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("oversized n = %v, want ErrInvalidArgument", err)
	}
}
