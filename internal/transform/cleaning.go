package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// DropRows removes rows by explicit indices, by condition, or by
// duplicate detection over a column subset. Exactly one mode must be
// set.
type DropRows struct {
	Indices    []int       `json:"indices,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Subset     []string    `json:"subset,omitempty"`
	// Keep selects which duplicate survives: "first", "last" or
	// "none". Only valid with Subset. Defaults to "first".
	Keep string `json:"keep,omitempty"`
}

func (t *DropRows) Kind() domain.OperationKind { return domain.OpDropRows }

func (t *DropRows) Validate() error {
	modes := 0
	if len(t.Indices) > 0 {
		modes++
	}
	if len(t.Conditions) > 0 {
		modes++
	}
	if len(t.Subset) > 0 {
		modes++
	}
	if modes != 1 {
		return domain.ErrInvalidArgument.WithDetails(
			"exactly one of indices, conditions or subset must be set")
	}
	if t.Keep != "" && len(t.Subset) == 0 {
		return domain.ErrInvalidArgument.WithDetails("keep is only valid with subset")
	}
	switch t.Keep {
	case "", "first", "last", "none":
	default:
		return domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("keep must be first, last or none, got %q", t.Keep))
	}
	for _, c := range t.Conditions {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *DropRows) Apply(s *domain.Snapshot) (*Result, error) {
	var keep []int
	params := map[string]string{}

	switch {
	case len(t.Indices) > 0:
		drop := make(map[int]bool, len(t.Indices))
		for _, i := range t.Indices {
			if i < 0 || i >= s.Rows() {
				return nil, domain.ErrInvalidArgument.WithDetails(
					fmt.Sprintf("row index %d out of range [0,%d)", i, s.Rows()))
			}
			drop[i] = true
		}
		for r := 0; r < s.Rows(); r++ {
			if !drop[r] {
				keep = append(keep, r)
			}
		}
		params["mode"] = "indices"
		params["indices"] = strconv.Itoa(len(t.Indices))

	case len(t.Conditions) > 0:
		conds, err := compileConditions(s, t.Conditions)
		if err != nil {
			return nil, err
		}
		for r := 0; r < s.Rows(); r++ {
			if !match(s, r, conds) {
				keep = append(keep, r)
			}
		}
		params["mode"] = "condition"
		params["condition"] = describeConditions(t.Conditions)

	default:
		idx, err := columnIndices(s, t.Subset)
		if err != nil {
			return nil, err
		}
		keepMode := t.Keep
		if keepMode == "" {
			keepMode = "first"
		}
		keep = dropDuplicates(s, idx, keepMode)
		params["mode"] = "duplicates"
		params["subset"] = joinNames(t.Subset)
		params["keep"] = keepMode
	}

	next, err := keepRows(s, keep)
	if err != nil {
		return nil, err
	}
	dropped := s.Rows() - len(keep)
	return &Result{
		Snapshot: next,
		Counts:   domain.OperationCounts{RowsAffected: dropped},
		Params:   params,
	}, nil
}

// dropDuplicates returns the surviving row indices in original order.
func dropDuplicates(s *domain.Snapshot, cols []int, keep string) []int {
	key := func(r int) string {
		var b strings.Builder
		for _, c := range cols {
			v := s.Cell(r, c)
			if v.IsMissing() {
				b.WriteString("\x00nil")
			} else {
				b.WriteString(v.Display())
			}
			b.WriteByte('\x1f')
		}
		return b.String()
	}

	counts := make(map[string]int)
	for r := 0; r < s.Rows(); r++ {
		counts[key(r)]++
	}

	var out []int
	switch keep {
	case "first":
		seen := make(map[string]bool)
		for r := 0; r < s.Rows(); r++ {
			k := key(r)
			if !seen[k] {
				seen[k] = true
				out = append(out, r)
			}
		}
	case "last":
		lastAt := make(map[string]int)
		for r := 0; r < s.Rows(); r++ {
			lastAt[key(r)] = r
		}
		for r := 0; r < s.Rows(); r++ {
			if lastAt[key(r)] == r {
				out = append(out, r)
			}
		}
	default: // none: every duplicated row goes
		for r := 0; r < s.Rows(); r++ {
			if counts[key(r)] == 1 {
				out = append(out, r)
			}
		}
	}
	return out
}

// FillMissing fills missing cells with a constant value or a derived
// one (ffill, bfill, mean, median, mode). Exactly one of Value and
// Method must be set. Columns defaults to every column.
type FillMissing struct {
	Value   any      `json:"value,omitempty"`
	Method  string   `json:"method,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

func (t *FillMissing) Kind() domain.OperationKind { return domain.OpFillMissing }

func (t *FillMissing) Validate() error {
	if t.Value != nil && t.Method != "" {
		return domain.ErrInvalidArgument.WithDetails("value and method are mutually exclusive")
	}
	if t.Value == nil && t.Method == "" {
		return domain.ErrMissingArgument.WithDetails("one of value or method")
	}
	switch t.Method {
	case "", "ffill", "bfill", "mean", "median", "mode":
	default:
		return domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("fill method %q", t.Method))
	}
	return nil
}

func (t *FillMissing) Apply(s *domain.Snapshot) (*Result, error) {
	names := t.Columns
	if len(names) == 0 {
		names = s.ColumnNames()
	}
	idx, err := columnIndices(s, names)
	if err != nil {
		return nil, err
	}

	schema := s.Schema()
	cols := make([][]domain.Value, len(schema))
	for c := range schema {
		cols[c] = s.ColumnValues(c)
	}

	filled := 0
	rowsTouched := make(map[int]bool)
	for _, c := range idx {
		n, err := t.fillColumn(s, schema, cols, c, rowsTouched)
		if err != nil {
			return nil, err
		}
		filled += n
	}

	next, err := domain.NewSnapshot(schema, cols)
	if err != nil {
		return nil, err
	}
	params := map[string]string{"columns": joinNames(names)}
	if t.Method != "" {
		params["mode"] = "method"
		params["method"] = t.Method
	} else {
		params["mode"] = "value"
		params["value"] = fmt.Sprintf("%v", t.Value)
	}
	return &Result{
		Snapshot: next,
		Counts:   domain.OperationCounts{RowsAffected: len(rowsTouched), ValuesAffected: filled},
		Params:   params,
	}, nil
}

// fillColumn fills one column in place and returns the number of
// cells filled. Mean and median fills may promote an int column to
// float when the statistic is not integral.
func (t *FillMissing) fillColumn(s *domain.Snapshot, schema []domain.Column, cols [][]domain.Value, c int, rowsTouched map[int]bool) (int, error) {
	hasMissing := false
	for _, v := range cols[c] {
		if v.IsMissing() {
			hasMissing = true
			break
		}
	}
	if !hasMissing {
		return 0, nil
	}

	col := cols[c]
	filled := 0
	fillAt := func(r int, v domain.Value) {
		col[r] = v
		filled++
		rowsTouched[r] = true
	}

	switch t.Method {
	case "ffill":
		last := domain.Missing()
		for r, v := range col {
			if v.IsMissing() {
				if !last.IsMissing() {
					fillAt(r, last)
				}
			} else {
				last = v
			}
		}
	case "bfill":
		next := domain.Missing()
		for r := len(col) - 1; r >= 0; r-- {
			if col[r].IsMissing() {
				if !next.IsMissing() {
					fillAt(r, next)
				}
			} else {
				next = col[r]
			}
		}
	case "mean", "median":
		vals, numeric := numericColumn(s, c)
		if !numeric {
			return 0, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("%s fill requires a numeric column, %s is %s",
					t.Method, schema[c].Name, schema[c].Type))
		}
		var stat float64
		var ok bool
		if t.Method == "mean" {
			stat, ok = mean(vals)
		} else {
			stat, ok = median(vals)
		}
		if !ok {
			return 0, nil // column is entirely missing
		}
		fill := domain.Float(stat)
		if schema[c].Type == domain.KindInt {
			if stat == math.Trunc(stat) {
				fill = domain.Int(int64(stat))
			} else {
				promoteToFloat(schema, cols, c)
				col = cols[c]
				fill = domain.Float(stat)
			}
		}
		for r, v := range col {
			if v.IsMissing() {
				fillAt(r, fill)
			}
		}
	case "mode":
		fill, ok := modeValue(s, c)
		if !ok {
			return 0, nil
		}
		for r, v := range col {
			if v.IsMissing() {
				fillAt(r, fill)
			}
		}
	default: // constant value
		fill, err := domain.DecodeValue(t.Value, schema[c].Type)
		if err != nil {
			return 0, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("fill value for column %s: %v", schema[c].Name, err))
		}
		for r, v := range col {
			if v.IsMissing() {
				fillAt(r, fill)
			}
		}
	}
	return filled, nil
}

// promoteToFloat converts an int column to float in place.
func promoteToFloat(schema []domain.Column, cols [][]domain.Value, c int) {
	schema[c].Type = domain.KindFloat
	for r, v := range cols[c] {
		if !v.IsMissing() {
			cols[c][r] = domain.Float(float64(v.IntVal()))
		}
	}
}

// DropMissing removes rows or columns containing missing cells.
type DropMissing struct {
	// How is "any" or "all". Ignored when Thresh is set.
	How string `json:"how,omitempty"`
	// Thresh is the minimum number of non-missing cells required to
	// keep a row or column.
	Thresh *int `json:"thresh,omitempty"`
	// Axis is "rows" (default) or "columns".
	Axis string `json:"axis,omitempty"`
	// Subset restricts which columns are inspected. Rows axis only.
	Subset []string `json:"subset,omitempty"`
}

func (t *DropMissing) Kind() domain.OperationKind { return domain.OpDropMissing }

func (t *DropMissing) Validate() error {
	switch t.How {
	case "", "any", "all":
	default:
		return domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("how must be any or all, got %q", t.How))
	}
	switch t.Axis {
	case "", "rows", "columns":
	default:
		return domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("axis must be rows or columns, got %q", t.Axis))
	}
	if t.Axis == "columns" && len(t.Subset) > 0 {
		return domain.ErrInvalidArgument.WithDetails("subset is only valid on the rows axis")
	}
	if t.Thresh != nil && *t.Thresh < 0 {
		return domain.ErrInvalidArgument.WithDetails("thresh must be non-negative")
	}
	return nil
}

func (t *DropMissing) Apply(s *domain.Snapshot) (*Result, error) {
	how := t.How
	if how == "" {
		how = "any"
	}
	axis := t.Axis
	if axis == "" {
		axis = "rows"
	}
	params := map[string]string{"how": how, "axis": axis}
	if t.Thresh != nil {
		params["thresh"] = strconv.Itoa(*t.Thresh)
	}
	if len(t.Subset) > 0 {
		params["subset"] = joinNames(t.Subset)
	}

	// keepLine decides survival from the counts of one row or column.
	keepLine := func(present, inspected int) bool {
		if t.Thresh != nil {
			return present >= *t.Thresh
		}
		if how == "all" {
			return present > 0
		}
		return present == inspected
	}

	if axis == "columns" {
		var schema []domain.Column
		var cols [][]domain.Value
		dropped := 0
		full := s.Schema()
		for c := range full {
			present := 0
			for r := 0; r < s.Rows(); r++ {
				if !s.Cell(r, c).IsMissing() {
					present++
				}
			}
			if keepLine(present, s.Rows()) {
				schema = append(schema, full[c])
				cols = append(cols, s.ColumnValues(c))
			} else {
				dropped++
			}
		}
		if len(schema) == 0 {
			return nil, domain.ErrInvalidArgument.WithDetails(
				"drop_missing would remove every column")
		}
		next, err := domain.NewSnapshot(schema, cols)
		if err != nil {
			return nil, err
		}
		return &Result{
			Snapshot: next,
			Counts:   domain.OperationCounts{ValuesAffected: dropped},
			Params:   params,
		}, nil
	}

	inspect := make([]int, 0, len(t.Subset))
	if len(t.Subset) > 0 {
		idx, err := columnIndices(s, t.Subset)
		if err != nil {
			return nil, err
		}
		inspect = idx
	} else {
		for c := range s.Schema() {
			inspect = append(inspect, c)
		}
	}

	var keep []int
	for r := 0; r < s.Rows(); r++ {
		present := 0
		for _, c := range inspect {
			if !s.Cell(r, c).IsMissing() {
				present++
			}
		}
		if keepLine(present, len(inspect)) {
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
		Params:   params,
	}, nil
}

// ReplaceValues swaps one value for another within a single column.
type ReplaceValues struct {
	Column string `json:"column"`
	From   any    `json:"from"`
	To     any    `json:"to"`
}

func (t *ReplaceValues) Kind() domain.OperationKind { return domain.OpReplaceValues }

func (t *ReplaceValues) Validate() error {
	if t.Column == "" {
		return domain.ErrMissingArgument.WithDetails("column")
	}
	if t.From == nil {
		return domain.ErrInvalidArgument.WithDetails(
			"from must not be null; use fill_missing for missing cells")
	}
	return nil
}

func (t *ReplaceValues) Apply(s *domain.Snapshot) (*Result, error) {
	c, err := columnIndex(s, t.Column)
	if err != nil {
		return nil, err
	}
	typ, _ := s.ColumnType(t.Column)
	from, err := domain.DecodeValue(t.From, typ)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("from value: %v", err))
	}
	to, err := domain.DecodeValue(t.To, typ)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("to value: %v", err))
	}

	schema := s.Schema()
	cols := make([][]domain.Value, len(schema))
	for i := range schema {
		cols[i] = s.ColumnValues(i)
	}
	replaced := 0
	for r, v := range cols[c] {
		if v.Equal(from) {
			cols[c][r] = to
			replaced++
		}
	}
	next, err := domain.NewSnapshot(schema, cols)
	if err != nil {
		return nil, err
	}
	return &Result{
		Snapshot: next,
		Counts:   domain.OperationCounts{RowsAffected: replaced, ValuesAffected: replaced},
		Params: map[string]string{
			"column": t.Column,
			"from":   from.Display(),
			"to":     to.Display(),
		},
	}, nil
}

// CleanStrings normalizes string columns: strip, lower, upper or
// title.
type CleanStrings struct {
	Columns   []string `json:"columns"`
	Operation string   `json:"operation,omitempty"`
}

func (t *CleanStrings) Kind() domain.OperationKind { return domain.OpCleanStrings }

func (t *CleanStrings) Validate() error {
	if len(t.Columns) == 0 {
		return domain.ErrMissingArgument.WithDetails("columns")
	}
	switch t.Operation {
	case "", "strip", "lower", "upper", "title":
	default:
		return domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("operation must be strip, lower, upper or title, got %q", t.Operation))
	}
	return nil
}

func (t *CleanStrings) Apply(s *domain.Snapshot) (*Result, error) {
	op := t.Operation
	if op == "" {
		op = "strip"
	}
	idx, err := columnIndices(s, t.Columns)
	if err != nil {
		return nil, err
	}
	schema := s.Schema()
	for _, c := range idx {
		if schema[c].Type != domain.KindString {
			return nil, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("column %s is %s, not string", schema[c].Name, schema[c].Type))
		}
	}

	apply := func(v string) string {
		switch op {
		case "lower":
			return strings.ToLower(v)
		case "upper":
			return strings.ToUpper(v)
		case "title":
			return titleCase(v)
		default:
			return strings.TrimSpace(v)
		}
	}

	cols := make([][]domain.Value, len(schema))
	for i := range schema {
		cols[i] = s.ColumnValues(i)
	}
	changed := 0
	rowsTouched := make(map[int]bool)
	for _, c := range idx {
		for r, v := range cols[c] {
			if v.IsMissing() {
				continue
			}
			cleaned := apply(v.Str())
			if cleaned != v.Str() {
				cols[c][r] = domain.String(cleaned)
				changed++
				rowsTouched[r] = true
			}
		}
	}
	next, err := domain.NewSnapshot(schema, cols)
	if err != nil {
		return nil, err
	}
	return &Result{
		Snapshot: next,
		Counts:   domain.OperationCounts{RowsAffected: len(rowsTouched), ValuesAffected: changed},
		Params: map[string]string{
			"columns":   joinNames(t.Columns),
			"operation": op,
		},
	}, nil
}

// titleCase uppercases the first letter of each space-separated word
// and lowercases the rest.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		lower := strings.ToLower(w)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}

// RemoveOutliers drops rows whose value in any listed column falls
// outside the IQR fence or beyond the z-score threshold. Columns are
// processed in order; each column's bounds come from the rows that
// survived the previous ones. Missing cells are never outliers.
type RemoveOutliers struct {
	Columns   []string `json:"columns"`
	Method    string   `json:"method,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

func (t *RemoveOutliers) Kind() domain.OperationKind { return domain.OpRemoveOutliers }

func (t *RemoveOutliers) Validate() error {
	if len(t.Columns) == 0 {
		return domain.ErrMissingArgument.WithDetails("columns")
	}
	switch t.Method {
	case "", "iqr", "zscore":
	default:
		return domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("method must be iqr or zscore, got %q", t.Method))
	}
	if t.Threshold != nil && *t.Threshold <= 0 {
		return domain.ErrInvalidArgument.WithDetails("threshold must be positive")
	}
	return nil
}

func (t *RemoveOutliers) Apply(s *domain.Snapshot) (*Result, error) {
	method := t.Method
	if method == "" {
		method = "iqr"
	}
	threshold := 1.5
	if t.Threshold != nil {
		threshold = *t.Threshold
	}

	original := s.Rows()
	cur := s
	for _, name := range t.Columns {
		c, err := columnIndex(cur, name)
		if err != nil {
			return nil, err
		}
		vals, numeric := numericColumn(cur, c)
		if !numeric {
			return nil, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("column %s is not numeric", name))
		}

		outlier := func(float64) bool { return false }
		switch method {
		case "iqr":
			q1, ok1 := quantile(vals, 0.25)
			q3, ok3 := quantile(vals, 0.75)
			if ok1 && ok3 {
				iqr := q3 - q1
				lo, hi := q1-threshold*iqr, q3+threshold*iqr
				outlier = func(x float64) bool { return x < lo || x > hi }
			}
		case "zscore":
			m, okM := mean(vals)
			sd, okS := stddev(vals)
			if okM && okS && sd > 0 {
				outlier = func(x float64) bool { return math.Abs(x-m)/sd > threshold }
			}
		}

		var keep []int
		for r := 0; r < cur.Rows(); r++ {
			x, ok := cur.Cell(r, c).AsFloat()
			if ok && outlier(x) {
				continue
			}
			keep = append(keep, r)
		}
		cur, err = keepRows(cur, keep)
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Snapshot: cur,
		Counts:   domain.OperationCounts{RowsAffected: original - cur.Rows()},
		Params: map[string]string{
			"columns":   joinNames(t.Columns),
			"method":    method,
			"threshold": strconv.FormatFloat(threshold, 'g', -1, 64),
		},
	}, nil
}
