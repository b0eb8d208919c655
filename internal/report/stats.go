package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Stats summarizes a numeric dataset. Min, Max, Mean and Std ignore NaN and
// infinite values and are NaN when no finite value is left.
type Stats struct {
	Count int
	NaN   int // non-finite values, NaN or infinite
	Min   float64
	Max   float64
	Mean  float64
	Std   float64
}

// ComputeStats makes a single pass over vals using Welford's update for the
// population standard deviation.
func ComputeStats(vals []float64) Stats {
	s := Stats{Count: len(vals), Min: math.Inf(1), Max: math.Inf(-1)}
	var n int
	var mean, m2 float64
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.NaN++
			continue
		}
		n++
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		d := v - mean
		mean += d / float64(n)
		m2 += d * (v - mean)
	}
	if n == 0 {
		s.Min, s.Max, s.Mean, s.Std = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.Mean = mean
	s.Std = math.Sqrt(m2 / float64(n))
	return s
}

// Panel renders the statistics.
func (s Stats) Panel() Panel {
	var p Panel
	p.Add("Count", "%s", Grouped(uint64(s.Count)))
	p.Add("NaN count", "%s", Grouped(uint64(s.NaN)))
	p.Add("Min", "%s", Float(s.Min))
	p.Add("Max", "%s", Float(s.Max))
	p.Add("Mean", "%s", Float(s.Mean))
	p.Add("Std", "%s", Float(s.Std))
	return p
}

// Float formats a value compactly: plain notation for moderate magnitudes,
// exponent notation otherwise.
func Float(v float64) string {
	a := math.Abs(v)
	if v == 0 || (a >= 1e-3 && a < 1e7) || math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'e', 3, 64)
}

// Bin is one histogram bucket covering [Lo, Hi). The last bin includes Hi.
type Bin struct {
	Lo    float64
	Hi    float64
	Count int
}

// Histogram buckets the finite values of vals into n equal-width bins
// between their minimum and maximum.
func Histogram(vals []float64, n int) ([]Bin, error) {
	if n <= 0 {
		return nil, fmt.Errorf("bin count must be positive, got %d", n)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return nil, errors.New("no finite values")
	}

	// Halved so that hi-lo cannot overflow.
	span := hi*0.5 - lo*0.5
	step := span / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		x := step * float64(i)
		bins[i].Lo = lo + x + x
		if i > 0 {
			bins[i-1].Hi = bins[i].Lo
		}
	}
	bins[n-1].Hi = hi

	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		bins[binIndex(bins, v, lo, span)].Count++
	}
	return bins, nil
}

// binIndex places v in bins. A zero span puts everything in the last bin.
func binIndex(bins []Bin, v, lo, span float64) int {
	n := len(bins)
	if span <= 0 {
		return n - 1
	}
	i := min(max(int((v*0.5-lo*0.5)/span*float64(n)), 0), n-1)
	// Agree with the rounded bin edges.
	if i > 0 && v < bins[i].Lo {
		i--
	} else if i < n-1 && v >= bins[i+1].Lo {
		i++
	}
	return i
}

// RenderHistogram draws one bar per bin, scaled so the fullest bin is width
// characters wide.
func RenderHistogram(w io.Writer, bins []Bin, width int) error {
	peak := 0
	labels := make([]string, len(bins))
	labelWidth := 0
	for i, b := range bins {
		peak = max(peak, b.Count)
		labels[i] = fmt.Sprintf("[%s, %s)", Float(b.Lo), Float(b.Hi))
		labelWidth = max(labelWidth, len(labels[i]))
	}
	if len(bins) > 0 {
		last := bins[len(bins)-1]
		labels[len(bins)-1] = fmt.Sprintf("[%s, %s]", Float(last.Lo), Float(last.Hi))
	}
	for i, b := range bins {
		bar := 0
		if peak > 0 {
			bar = b.Count * width / peak
		}
		if _, err := fmt.Fprintf(w, "%-*s %10s %s\n", labelWidth, labels[i], Grouped(uint64(b.Count)),
			strings.Repeat("#", bar)); err != nil {
			return err
		}
	}
	return nil
}
