// Package adjust shifts the points of competitors finishing behind an entry
// whose code inserts a phantom finisher (e.g. redress given as a place).
package adjust

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

// CodeInfo classifies score codes for the adjustment pass
type CodeInfo interface {
	// AdjustsOthers reports whether the code inserts a phantom finisher
	AdjustsOthers(code string) bool
	// PlaceBased reports whether the value of the code is derived from the
	// competitor's place (e.g. place plus penalty, ties)
	PlaceBased(code string) bool
	// TiesWithPrevious reports whether the code scores the value of the
	// next better placed competitor
	TiesWithPrevious(code string) bool
}

// Apply returns a copy of scores with adjustments applied.
// Every place based row behind a phantom finisher gets one point per phantom
// ahead of it. Manual or preserved values and the adjusting rows themselves
// are never shifted. Tied rows take the adjusted value of the competitor
// they tied with.
// Values are always recomputed from BaseValue, so applying the result again
// yields the same values.
func Apply(scores []model.ComputedScore, info CodeInfo) []model.ComputedScore {
	ret := make([]model.ComputedScore, len(scores))
	copy(ret, scores)

	// nominal places of adjusting entries per race
	phantoms := make(map[int][]int)
	for i := range ret {
		s := &ret[i]
		if s.Code == "" || s.Place == nil || !info.AdjustsOthers(s.Code) {
			continue
		}
		phantoms[s.RaceID] = append(phantoms[s.RaceID], *s.Place)
	}

	ties := make([]int, 0)
	for i := range ret {
		s := &ret[i]
		s.Value = s.BaseValue
		if !shiftable(s, info) {
			continue
		}
		if s.Code != "" && info.TiesWithPrevious(s.Code) {
			ties = append(ties, i)
		}
		shift := lo.CountBy(phantoms[s.RaceID], func(p int) bool {
			return p < *s.Place
		})
		if shift > 0 {
			s.Value = s.BaseValue.Add(decimal.NewFromInt(int64(shift)))
		}
	}
	if len(phantoms) > 0 {
		retie(ret, ties)
	}
	return ret
}

func shiftable(s *model.ComputedScore, info CodeInfo) bool {
	if s.Place == nil || s.IsManual {
		return false
	}
	if s.Code == "" {
		return true
	}
	return !info.AdjustsOthers(s.Code) && info.PlaceBased(s.Code)
}

// retie sets tied rows to the adjusted value of the next better placed row.
// Rows are processed by place so that chains of ties follow their leader.
func retie(scores []model.ComputedScore, ties []int) {
	slices.SortFunc(ties, func(a, b int) int {
		return cmp.Compare(*scores[a].Place, *scores[b].Place)
	})
	for _, i := range ties {
		s := &scores[i]
		prev := -1
		for j := range scores {
			x := &scores[j]
			if j == i || x.RaceID != s.RaceID || x.Place == nil || *x.Place >= *s.Place {
				continue
			}
			if prev < 0 || *x.Place > *scores[prev].Place {
				prev = j
			}
		}
		if prev >= 0 {
			s.Value = scores[prev].Value
		}
	}
}
