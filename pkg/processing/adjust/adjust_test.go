//nolint:funlen // ok for tests
package adjust

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

func place(p int) *int { return &p }

func plain(race, comp, p int) model.ComputedScore {
	v := decimal.NewFromInt(int64(p))
	return model.ComputedScore{
		RaceID: race, CompetitorID: comp, Place: place(p),
		BaseValue: v, Value: v, Discardable: true,
	}
}

func coded(race, comp int, p *int, code string, v int64) model.ComputedScore {
	return model.ComputedScore{
		RaceID: race, CompetitorID: comp, Place: p, Code: code,
		BaseValue: decimal.NewFromInt(v), Value: decimal.NewFromInt(v),
	}
}

func values(scores []model.ComputedScore) map[int]string {
	ret := make(map[int]string)
	for _, s := range scores {
		ret[s.CompetitorID] = s.Value.String()
	}
	return ret
}

// testCodes: RDGA adjusts others, ZFP and TIE are place based, TIE ties
type testCodes struct{}

func (testCodes) AdjustsOthers(code string) bool { return code == "RDGA" }

func (testCodes) PlaceBased(code string) bool {
	return code == "ZFP" || code == "TIE" || code == "RDGA"
}

func (testCodes) TiesWithPrevious(code string) bool { return code == "TIE" }

var codes = testCodes{}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		scores []model.ComputedScore
		want   map[int]string
	}{
		{
			name:   "no adjusting codes",
			scores: []model.ComputedScore{plain(1, 1, 1), plain(1, 2, 2)},
			want:   map[int]string{1: "1", 2: "2"},
		},
		{
			name: "single phantom",
			scores: []model.ComputedScore{
				plain(1, 1, 1),
				coded(1, 2, place(2), "RDGA", 2),
				plain(1, 3, 2),
				plain(1, 4, 3),
			},
			want: map[int]string{1: "1", 2: "2", 3: "2", 4: "4"},
		},
		{
			name: "two phantoms",
			scores: []model.ComputedScore{
				coded(1, 1, place(1), "RDGA", 1),
				plain(1, 2, 1),
				coded(1, 3, place(2), "RDGA", 2),
				plain(1, 4, 2),
				plain(1, 5, 3),
			},
			want: map[int]string{1: "1", 2: "1", 3: "2", 4: "3", 5: "5"},
		},
		{
			name: "other race untouched",
			scores: []model.ComputedScore{
				coded(1, 1, place(1), "RDGA", 1),
				plain(2, 2, 2),
			},
			want: map[int]string{1: "1", 2: "2"},
		},
		{
			name: "place based coded rows behind are shifted",
			scores: []model.ComputedScore{
				coded(1, 1, place(1), "RDGA", 1),
				plain(1, 2, 1),
				coded(1, 3, place(2), "ZFP", 3),
			},
			want: map[int]string{1: "1", 2: "1", 3: "4"},
		},
		{
			name: "codes not derived from the place are not shifted",
			scores: []model.ComputedScore{
				coded(1, 1, place(1), "RDGA", 1),
				coded(1, 2, place(4), "DNF", 4),
			},
			want: map[int]string{1: "1", 2: "4"},
		},
		{
			name: "manual values are not shifted",
			scores: []model.ComputedScore{
				coded(1, 1, place(1), "RDGA", 1),
				func() model.ComputedScore {
					s := coded(1, 2, place(3), "ZFP", 5)
					s.IsManual = true
					return s
				}(),
			},
			want: map[int]string{1: "1", 2: "5"},
		},
		{
			name: "tie follows the adjusted competitor ahead",
			scores: []model.ComputedScore{
				coded(1, 1, place(1), "RDGA", 1),
				plain(1, 2, 2),
				coded(1, 3, place(3), "TIE", 2),
				plain(1, 4, 4),
			},
			want: map[int]string{1: "1", 2: "3", 3: "3", 4: "5"},
		},
		{
			name: "phantom between tie and the competitor ahead",
			scores: []model.ComputedScore{
				plain(1, 1, 1),
				coded(1, 2, place(1), "RDGA", 1),
				coded(1, 3, place(2), "TIE", 1),
			},
			want: map[int]string{1: "1", 2: "1", 3: "1"},
		},
		{
			name: "chained ties",
			scores: []model.ComputedScore{
				coded(1, 1, place(1), "RDGA", 1),
				plain(1, 2, 2),
				coded(1, 3, place(3), "TIE", 2),
				coded(1, 4, place(4), "TIE", 2),
			},
			want: map[int]string{1: "1", 2: "3", 3: "3", 4: "3"},
		},
		{
			name: "adjusting code without place",
			scores: []model.ComputedScore{
				coded(1, 1, nil, "RDGA", 7),
				plain(1, 2, 1),
			},
			want: map[int]string{1: "7", 2: "1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.scores, codes)
			if diff := cmp.Diff(tt.want, values(got)); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyIdempotent(t *testing.T) {
	scores := []model.ComputedScore{
		plain(1, 1, 1),
		coded(1, 2, place(1), "RDGA", 1),
		plain(1, 3, 2),
	}
	first := Apply(scores, codes)
	second := Apply(first, codes)
	assert.Equal(t, values(first), values(second))
	// input must not be modified
	assert.Equal(t, "2", scores[2].Value.String())
}

func TestApplyOrderIndependent(t *testing.T) {
	a := []model.ComputedScore{
		coded(1, 1, place(1), "RDGA", 1),
		coded(1, 2, place(2), "RDGA", 2),
		plain(1, 3, 3),
	}
	b := []model.ComputedScore{a[2], a[1], a[0]}
	assert.Equal(t, values(Apply(a, codes)), values(Apply(b, codes)))
	assert.Equal(t, "5", values(Apply(a, codes))[3])
}
