//nolint:funlen // ok for tests
package rank

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

var races = []model.Race{{ID: 1}, {ID: 2}, {ID: 3}}

func scores(comp int, values ...int64) model.CompetitorStanding {
	ret := model.CompetitorStanding{CompetitorID: comp}
	for i, v := range values {
		if v < 0 {
			continue
		}
		ret.Scores = append(ret.Scores, model.ComputedScore{
			RaceID: i + 1, CompetitorID: comp,
			BaseValue: decimal.NewFromInt(v), Value: decimal.NewFromInt(v),
			Discardable: true,
		})
	}
	return ret
}

func withDiscard(c model.CompetitorStanding, idx int) model.CompetitorStanding {
	c.Scores[idx].Discarded = true
	return c
}

type result struct {
	Competitor int
	Rank       int
	Net        string
}

func summary(s *model.SeriesStanding) []result {
	ret := make([]result, 0, len(s.Competitors))
	for _, c := range s.Competitors {
		ret = append(ret, result{c.CompetitorID, c.Rank, c.NetTotal.String()})
	}
	return ret
}

func TestRank(t *testing.T) {
	tests := []struct {
		name  string
		input []model.CompetitorStanding
		dir   model.Direction
		want  []result
	}{
		{
			name:  "by net total",
			input: []model.CompetitorStanding{scores(1, 3, 3, 3), scores(2, 1, 1, 1), scores(3, 2, 2, 2)},
			dir:   model.LowPoint,
			want:  []result{{2, 1, "3"}, {3, 2, "6"}, {1, 3, "9"}},
		},
		{
			name:  "discarded points do not count",
			input: []model.CompetitorStanding{withDiscard(scores(1, 1, 1, 9), 2), scores(2, 1, 2, 2)},
			dir:   model.LowPoint,
			want:  []result{{1, 1, "2"}, {2, 2, "5"}},
		},
		{
			name:  "fewer discards wins",
			input: []model.CompetitorStanding{withDiscard(scores(1, 1, 2, 5), 2), scores(2, 1, 2)},
			dir:   model.LowPoint,
			want:  []result{{2, 1, "3"}, {1, 2, "3"}},
		},
		{
			name:  "last race breaks tie",
			input: []model.CompetitorStanding{scores(1, 2, 3, 1), scores(2, 2, 2, 2)},
			dir:   model.LowPoint,
			want:  []result{{1, 1, "6"}, {2, 2, "6"}},
		},
		{
			name:  "walk back when last race is equal",
			input: []model.CompetitorStanding{scores(1, 1, 3, 2), scores(2, 2, 2, 2)},
			dir:   model.LowPoint,
			want:  []result{{2, 1, "6"}, {1, 2, "6"}},
		},
		{
			name:  "missing score is worse",
			input: []model.CompetitorStanding{scores(1, 2, -1), scores(2, 1, 1)},
			dir:   model.LowPoint,
			want:  []result{{2, 1, "2"}, {1, 2, "2"}},
		},
		{
			name:  "shared rank",
			input: []model.CompetitorStanding{scores(1, 1, 2), scores(2, 1, 2), scores(3, 5, 5)},
			dir:   model.LowPoint,
			want:  []result{{1, 1, "3"}, {2, 1, "3"}, {3, 3, "10"}},
		},
		{
			name:  "high point",
			input: []model.CompetitorStanding{scores(1, 3, 3), scores(2, 10, 10)},
			dir:   model.HighPoint,
			want:  []result{{2, 1, "20"}, {1, 2, "6"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rank(42, tt.input, tt.dir, races)
			assert.Equal(t, 42, got.SeriesID)
			assert.Equal(t, tt.dir, got.Direction)
			assert.Equal(t, len(races), got.RacesCounted)
			if diff := cmp.Diff(tt.want, summary(got)); diff != "" {
				t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRankTieBreakTrail(t *testing.T) {
	got := Rank(1, []model.CompetitorStanding{
		scores(1, 1, 3, 2),
		scores(2, 2, 2, 2),
		scores(3, 9, 9, 9),
	}, model.LowPoint, races)

	assert.Equal(t, []string{"net 6", "discards 0", "race 3: 2", "race 2: 2"}, got.Competitors[0].TieBreak)
	assert.Equal(t, []string{"net 6", "discards 0", "race 3: 2", "race 2: 3"}, got.Competitors[1].TieBreak)
	assert.Equal(t, []string{"net 27"}, got.Competitors[2].TieBreak)
}

func TestRankTotals(t *testing.T) {
	got := Rank(1, []model.CompetitorStanding{withDiscard(scores(1, 1, 2, 7), 2)}, model.LowPoint, races)
	c := got.Competitors[0]
	assert.Equal(t, "10", c.TotalPoints.String())
	assert.Equal(t, "3", c.NetTotal.String())
	assert.Equal(t, 1, c.DiscardCount)
	assert.Len(t, c.Scores, 3)
}

func TestRankDoesNotModifyInput(t *testing.T) {
	in := []model.CompetitorStanding{scores(2, 5), scores(1, 1)}
	Rank(1, in, model.LowPoint, races)
	assert.Equal(t, 2, in[0].CompetitorID)
	assert.Equal(t, 0, in[0].Rank)
}
