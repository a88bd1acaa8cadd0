package grade

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// GradingScale maps a percentage to a letter grade.
type GradingScale interface {
	LetterGradeFor(percentage int) string
}

type Band struct {
	Letter string
	Min    int // inclusive lower bound, in percent
}

// BandScale is a GradingScale made of bands sorted by descending Min.
type BandScale []Band

var _ GradingScale = BandScale(nil)

var DefaultScale = BandScale{
	{Letter: "A", Min: 90},
	{Letter: "B", Min: 80},
	{Letter: "C", Min: 70},
	{Letter: "D", Min: 60},
	{Letter: "F", Min: 0},
}

// ParseBandScale parses "A:90,B:80,C:70,D:60,F:0". The lowest band must start at 0.
func ParseBandScale(s string) (BandScale, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultScale, nil
	}

	seen := make(map[int]bool)
	var scale BandScale
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, errors.Errorf("invalid grading band %q", part)
		}
		min, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing grading band %q", part)
		}
		if min < 0 || min > 100 {
			return nil, errors.Errorf("grading band %q is out of range [0, 100]", part)
		}
		if seen[min] {
			return nil, errors.Errorf("duplicate grading band minimum %d", min)
		}
		seen[min] = true
		scale = append(scale, Band{Letter: strings.TrimSpace(kv[0]), Min: min})
	}

	sort.Slice(scale, func(i, j int) bool { return scale[i].Min > scale[j].Min })
	if scale[len(scale)-1].Min != 0 {
		return nil, errors.New("the lowest grading band must start at 0")
	}
	return scale, nil
}

func (s BandScale) LetterGradeFor(percentage int) string {
	for _, b := range s {
		if percentage >= b.Min {
			return b.Letter
		}
	}
	if len(s) > 0 {
		return s[len(s)-1].Letter
	}
	return ""
}

// Percentage returns score/max as a percentage rounded half up.
// Multiplying before dividing keeps exact halves exact (45/50 -> 90, 1/8 -> 13).
func Percentage(score, max float64) int {
	if max <= 0 {
		return 0
	}
	return int(math.Floor(score*100/max + 0.5))
}

// round1 rounds half up to one decimal place.
func round1(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}
