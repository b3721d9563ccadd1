package transform

import (
	"math"
	"sort"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// numericColumn extracts the non-missing cells of a numeric column as
// floats. ok is false when the column is not numeric.
func numericColumn(s *domain.Snapshot, col int) (vals []float64, ok bool) {
	typ := s.Schema()[col].Type
	if typ != domain.KindInt && typ != domain.KindFloat {
		return nil, false
	}
	for r := 0; r < s.Rows(); r++ {
		if f, ok := s.Cell(r, col).AsFloat(); ok {
			vals = append(vals, f)
		}
	}
	return vals, true
}

func mean(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true
}

func median(vals []float64) (float64, bool) {
	return quantile(vals, 0.5)
}

// quantile computes the q-th quantile with linear interpolation
// between the two nearest order statistics.
func quantile(vals []float64, q float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0], true
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo], true
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac, true
}

// stddev is the sample standard deviation.
func stddev(vals []float64) (float64, bool) {
	if len(vals) < 2 {
		return 0, false
	}
	m, _ := mean(vals)
	var sum float64
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)-1)), true
}

// modeValue returns the most frequent non-missing cell of a column.
// Ties break toward the value seen first.
func modeValue(s *domain.Snapshot, col int) (domain.Value, bool) {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	cells := make(map[string]domain.Value)
	order := 0
	for r := 0; r < s.Rows(); r++ {
		v := s.Cell(r, col)
		if v.IsMissing() {
			continue
		}
		key := v.Display()
		if _, ok := counts[key]; !ok {
			firstSeen[key] = order
			cells[key] = v
			order++
		}
		counts[key]++
	}
	if len(counts) == 0 {
		return domain.Missing(), false
	}
	bestKey := ""
	bestCount := -1
	for key, n := range counts {
		if n > bestCount || (n == bestCount && firstSeen[key] < firstSeen[bestKey]) {
			bestKey, bestCount = key, n
		}
	}
	return cells[bestKey], true
}
