package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name       string
		score, max float64
		want       int
	}{
		{name: "exact", score: 45, max: 50, want: 90},
		{name: "half rounds up", score: 1, max: 8, want: 13},
		{name: "below half rounds down", score: 2, max: 3, want: 67},
		{name: "zero", score: 0, max: 20, want: 0},
		{name: "full", score: 20, max: 20, want: 100},
		{name: "fractional score", score: 17.5, max: 20, want: 88},
		{name: "zero max", score: 5, max: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.score, tt.max))
		})
	}
}

func TestBandScale_LetterGradeFor(t *testing.T) {
	tests := []struct {
		pct  int
		want string
	}{
		{100, "A"}, {90, "A"}, {89, "B"}, {80, "B"}, {79, "C"}, {70, "C"}, {69, "D"}, {60, "D"}, {59, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultScale.LetterGradeFor(tt.pct), "LetterGradeFor(%d)", tt.pct)
	}
}

func TestParseBandScale(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    BandScale
		wantErr bool
	}{
		{name: "empty is default", input: "", want: DefaultScale},
		{name: "default", input: "A:90,B:80,C:70,D:60,F:0", want: DefaultScale},
		{name: "unordered with spaces", input: " F:0 , P:50", want: BandScale{{"P", 50}, {"F", 0}}},
		{name: "missing colon", input: "A90,F:0", wantErr: true},
		{name: "missing letter", input: ":90,F:0", wantErr: true},
		{name: "not a number", input: "A:x,F:0", wantErr: true},
		{name: "out of range", input: "A:101,F:0", wantErr: true},
		{name: "duplicate minimum", input: "A:90,B:90,F:0", wantErr: true},
		{name: "no zero band", input: "A:90,B:80", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBandScale(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_round1(t *testing.T) {
	assert.Equal(t, 85.0, round1(84.95))
	assert.Equal(t, 84.9, round1(84.94))
	assert.Equal(t, 66.7, round1(200.0/3))
	assert.Equal(t, 0.0, round1(0))
}
