// Package rank aggregates discarded scores into a ranked series standing.
package rank

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/util"
)

type competitor struct {
	standing model.CompetitorStanding
	byRace   map[int]decimal.Decimal
	keys     []string
}

// Rank computes totals and ranks for competitors.
// races must contain the counted races in chronological order.
//
// Ties on net total are broken by
//   - fewer discards
//   - better score in the last race, walking back race by race
//
// Competitors still tied share the same rank.
func Rank(
	seriesID int,
	competitors []model.CompetitorStanding,
	dir model.Direction,
	races []model.Race,
) *model.SeriesStanding {
	work := lo.Map(competitors, func(c model.CompetitorStanding, _ int) *competitor {
		return prepare(c, races)
	})

	slices.SortStableFunc(work, func(a, b *competitor) int {
		if c := compare(a, b, dir, races); c != 0 {
			return c
		}
		return a.standing.CompetitorID - b.standing.CompetitorID
	})

	for i, c := range work {
		if i > 0 && compare(work[i-1], c, dir, races) == 0 {
			c.standing.Rank = work[i-1].standing.Rank
		} else {
			c.standing.Rank = i + 1
		}
	}
	for _, c := range work {
		c.standing.TieBreak = trail(c, work)
	}

	return &model.SeriesStanding{
		SeriesID:     seriesID,
		Direction:    dir,
		RacesCounted: len(races),
		Competitors: lo.Map(work, func(c *competitor, _ int) model.CompetitorStanding {
			return c.standing
		}),
	}
}

func prepare(c model.CompetitorStanding, races []model.Race) *competitor {
	ret := &competitor{standing: c, byRace: make(map[int]decimal.Decimal)}
	ret.standing.Scores = slices.Clone(c.Scores)

	all := lo.Map(c.Scores, func(s model.ComputedScore, _ int) decimal.Decimal { return s.Value })
	counted := lo.FilterMap(c.Scores, func(s model.ComputedScore, _ int) (decimal.Decimal, bool) {
		return s.Value, !s.Discarded
	})
	ret.standing.TotalPoints = util.Sum(all)
	ret.standing.NetTotal = util.Sum(counted)
	ret.standing.DiscardCount = len(all) - len(counted)
	for _, s := range c.Scores {
		ret.byRace[s.RaceID] = s.Value
	}

	ret.keys = []string{
		"net " + ret.standing.NetTotal.String(),
		fmt.Sprintf("discards %d", ret.standing.DiscardCount),
	}
	for i := len(races) - 1; i >= 0; i-- {
		if v, ok := ret.byRace[races[i].ID]; ok {
			ret.keys = append(ret.keys, fmt.Sprintf("race %d: %s", races[i].ID, v.String()))
		} else {
			ret.keys = append(ret.keys, fmt.Sprintf("race %d: -", races[i].ID))
		}
	}
	return ret
}

// compare returns a negative value if a ranks ahead of b
func compare(a, b *competitor, dir model.Direction, races []model.Race) int {
	if c := dir.Compare(a.standing.NetTotal, b.standing.NetTotal); c != 0 {
		return c
	}
	if a.standing.DiscardCount != b.standing.DiscardCount {
		return a.standing.DiscardCount - b.standing.DiscardCount
	}
	for i := len(races) - 1; i >= 0; i-- {
		av, aok := a.byRace[races[i].ID]
		bv, bok := b.byRace[races[i].ID]
		switch {
		case aok && !bok:
			return -1
		case !aok && bok:
			return 1
		case !aok && !bok:
			continue
		}
		if c := dir.Compare(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// trail returns the keys needed to separate c from every competitor with the
// same net total. Competitors without such a neighbor just get the net total.
func trail(c *competitor, all []*competitor) []string {
	depth := 1
	for _, o := range all {
		if o == c || o.keys[0] != c.keys[0] {
			continue
		}
		idx := len(c.keys)
		for i := range c.keys {
			if c.keys[i] != o.keys[i] {
				idx = i + 1
				break
			}
		}
		depth = max(depth, idx)
	}
	return slices.Clone(c.keys[:depth])
}
