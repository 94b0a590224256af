package discard

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/util"
)

// Pattern maps the number of races sailed to the number of allowed discards.
// Entry i holds the discards allowed after i+1 races. Beyond the last entry
// the last value applies.
type Pattern []int

// ParsePattern parses a comma separated pattern like "0,0,1,1,2".
// An empty string means no discards at all.
func ParsePattern(s string) (Pattern, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Pattern{}, nil
	}
	parts := strings.Split(s, ",")
	ret := make(Pattern, 0, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d (%q) is not a number",
				util.ErrInvalidDiscardPattern, i+1, p)
		}
		ret = append(ret, v)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

func MustParse(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) Validate() error {
	prev := 0
	for i, v := range p {
		if v < 0 {
			return fmt.Errorf("%w: entry %d is negative", util.ErrInvalidDiscardPattern, i+1)
		}
		if v < prev {
			return fmt.Errorf("%w: entry %d (%d) is less than entry %d (%d)",
				util.ErrInvalidDiscardPattern, i+1, v, i, prev)
		}
		prev = v
	}
	return nil
}

// Allowed returns the number of discards for racesSailed.
// The result never exceeds racesSailed.
func (p Pattern) Allowed(racesSailed int) int {
	if racesSailed <= 0 || len(p) == 0 {
		return 0
	}
	idx := min(racesSailed, len(p)) - 1
	return min(p[idx], racesSailed)
}

func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// AllowedDiscards is a convenience wrapper around ParsePattern and Allowed
func AllowedDiscards(pattern string, racesSailed int) (int, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return 0, err
	}
	return p.Allowed(racesSailed), nil
}

// Apply marks the allowed number of worst discardable scores as discarded.
// Scores that are not discardable are skipped, never swapped in.
// Ties are broken by chronological race order (earliest first) given by chrono
// (race id -> position). The input slice is not modified.
func Apply(
	scores []model.ComputedScore,
	allowed int,
	dir model.Direction,
	chrono map[int]int,
) []model.ComputedScore {
	ret := make([]model.ComputedScore, len(scores))
	copy(ret, scores)
	for i := range ret {
		ret[i].Discarded = false
	}
	if allowed <= 0 {
		return ret
	}
	candidates := make([]int, 0, len(ret))
	for i := range ret {
		if ret[i].Discardable {
			candidates = append(candidates, i)
		}
	}
	slices.SortStableFunc(candidates, func(a, b int) int {
		// worst first
		if c := dir.Compare(ret[b].Value, ret[a].Value); c != 0 {
			return c
		}
		return chrono[ret[a].RaceID] - chrono[ret[b].RaceID]
	})
	for _, idx := range candidates[:min(allowed, len(candidates))] {
		ret[idx].Discarded = true
	}
	return ret
}
