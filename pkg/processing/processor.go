package processing

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/adjust"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/codes"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/discard"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/rank"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/resolve"
)

// Processor computes series standings for one scoring system.
// A Processor holds no state between calls and may be shared.
type Processor struct {
	system      *model.ScoringSystem
	parent      *model.ScoringSystem
	library     *codes.Library
	placePoints resolve.PlacePointsFunc
	now         func() time.Time
	l           *log.Logger
}
type ProcessorOption func(proc *Processor)

// WithScoringSystem sets the scoring system and its optional parent
func WithScoringSystem(system, parent *model.ScoringSystem) ProcessorOption {
	return func(proc *Processor) {
		proc.system = system
		proc.parent = parent
		proc.library = codes.ForSystem(system, parent)
	}
}

func WithPlacePoints(f resolve.PlacePointsFunc) ProcessorOption {
	return func(proc *Processor) {
		proc.placePoints = f
	}
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(proc *Processor) {
		proc.now = now
	}
}

func WithLogger(l *log.Logger) ProcessorOption {
	return func(proc *Processor) {
		proc.l = l
	}
}

func NewProcessor(opts ...ProcessorOption) *Processor {
	ret := &Processor{
		system:  &model.ScoringSystem{},
		library: codes.NewLibrary(nil, nil),
		now:     time.Now,
		l:       log.Default().Named("processing"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (p *Processor) Library() *codes.Library {
	return p.library
}

// Compute runs the full pipeline on input.
// The input is not modified. Errors from code resolution are returned joined
// and can be inspected with util.ResolutionErrors.
func (p *Processor) Compute(input *model.SeriesInput) (*model.SeriesStanding, error) {
	pattern, err := discard.ParsePattern(p.system.DiscardPattern)
	if err != nil {
		return nil, err
	}
	dir := p.system.EffectiveDirection()

	races := ScoredRaces(input.Races)
	chrono := make(map[int]int, len(races))
	for i := range races {
		chrono[races[i].ID] = i
	}
	rows := lo.Filter(input.Results, func(r model.RaceResultRow, _ int) bool {
		_, ok := chrono[r.RaceID]
		return ok && r.Entered()
	})
	rows = p.fillMissing(rows, races)

	resolverOpts := []resolve.Option{
		resolve.WithLibrary(p.library),
		resolve.WithParticipationPercent(p.system.ParticipationPercent),
		resolve.WithLogger(p.l.Named("resolve")),
	}
	if p.placePoints != nil {
		resolverOpts = append(resolverOpts, resolve.WithPlacePoints(p.placePoints))
	}
	scores, err := resolve.NewResolver(resolverOpts...).Resolve(rows)
	if err != nil {
		return nil, fmt.Errorf("series %d: %w", input.Series.ID, err)
	}
	scores = adjust.Apply(scores, libraryCodes{p.library})

	byCompetitor := lo.GroupBy(scores, func(s model.ComputedScore) int {
		return s.CompetitorID
	})
	competitors := make([]model.CompetitorStanding, 0, len(byCompetitor))
	for _, id := range sortedKeys(byCompetitor) {
		own := byCompetitor[id]
		slices.SortStableFunc(own, func(a, b model.ComputedScore) int {
			return chrono[a.RaceID] - chrono[b.RaceID]
		})
		allowed := pattern.Allowed(len(own))
		competitors = append(competitors, model.CompetitorStanding{
			CompetitorID: id,
			Scores:       discard.Apply(own, allowed, dir, chrono),
		})
	}

	ret := rank.Rank(input.Series.ID, competitors, dir, races)
	ret.ComputedAt = p.now()
	p.l.Debug("standing computed",
		log.Int("seriesId", input.Series.ID),
		log.Int("races", len(races)),
		log.Int("competitors", len(competitors)))
	return ret, nil
}

// fillMissing assigns the scoring system's missing result code to series
// entrants without a result in a race that has results.
func (p *Processor) fillMissing(rows []model.RaceResultRow, races []model.Race) []model.RaceResultRow {
	code := p.system.MissingResultCode
	if code == "" {
		return rows
	}
	entrants := lo.Uniq(lo.Map(rows, func(r model.RaceResultRow, _ int) int {
		return r.CompetitorID
	}))
	slices.Sort(entrants)
	present := make(map[[2]int]bool, len(rows))
	raceHasRows := make(map[int]bool)
	for _, r := range rows {
		present[[2]int{r.RaceID, r.CompetitorID}] = true
		raceHasRows[r.RaceID] = true
	}
	ret := slices.Clone(rows)
	for _, race := range races {
		if !raceHasRows[race.ID] {
			continue
		}
		for _, c := range entrants {
			if !present[[2]int{race.ID, c}] {
				ret = append(ret, model.RaceResultRow{RaceID: race.ID, CompetitorID: c, Code: code})
			}
		}
	}
	return ret
}

// libraryCodes answers the adjustment pass' questions from the code library
type libraryCodes struct {
	lib *codes.Library
}

func (c libraryCodes) AdjustsOthers(code string) bool {
	if sc, err := c.lib.Resolve(code); err == nil && sc.AdjustsOtherFinishers {
		return true
	}
	target, err := c.lib.Target(code)
	return err == nil && target.AdjustsOtherFinishers
}

func (c libraryCodes) PlaceBased(code string) bool {
	target, err := c.lib.Target(code)
	if err != nil {
		return false
	}
	return target.Formula == model.FormulaPlacePlusPercentOfWorst ||
		target.Formula == model.FormulaTieWithPrevious
}

func (c libraryCodes) TiesWithPrevious(code string) bool {
	target, err := c.lib.Target(code)
	return err == nil && target.Formula == model.FormulaTieWithPrevious
}

// ScoredRaces returns the races counting for the series in chronological order
func ScoredRaces(races []model.Race) []model.Race {
	ret := lo.Filter(races, func(r model.Race, _ int) bool {
		return r.State.Scored()
	})
	slices.SortStableFunc(ret, func(a, b model.Race) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return a.ID - b.ID
	})
	return ret
}

func sortedKeys[V any](m map[int]V) []int {
	ret := lo.Keys(m)
	slices.Sort(ret)
	return ret
}
