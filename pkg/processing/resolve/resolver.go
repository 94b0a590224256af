// Package resolve turns raw race results into point values.
//
// Resolution runs in two passes. Pass 1 handles everything that does not depend
// on other resolved values (numeric places, series wide counts, manual values).
// Pass 2 resolves the remaining rows by iterating to a fixed point. Rows that
// already failed are left out of the computations of the others. The number
// of iterations is bounded by the number of pending rows; rows still pending
// after that are reported with util.ErrUnresolvableDependency.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/codes"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/util"
)

type (
	// PlacePointsFunc converts a finishing place into points
	PlacePointsFunc func(place int) decimal.Decimal

	Resolver struct {
		lib           *codes.Library
		placePoints   PlacePointsFunc
		participation *decimal.Decimal
		l             *log.Logger
	}
	Option func(*Resolver)

	entry struct {
		row      model.RaceResultRow
		assigned model.ScoreCode // code as entered (may be an alias)
		target   model.ScoreCode // alias chain resolved
		hasCode  bool
		value    decimal.Decimal
		resolved bool
		manual   bool
		failed   bool
	}

	// state shared by all rows of one resolution run
	work struct {
		r            *Resolver
		entries      []*entry
		byRace       map[int][]*entry
		byCompetitor map[int][]*entry
		entrants     int
		errs         []error
	}
)

func WithLibrary(lib *codes.Library) Option {
	return func(r *Resolver) {
		r.lib = lib
	}
}

// WithPlacePoints configures a points table. Default is place == points.
func WithPlacePoints(f PlacePointsFunc) Option {
	return func(r *Resolver) {
		r.placePoints = f
	}
}

func WithParticipationPercent(p *decimal.Decimal) Option {
	return func(r *Resolver) {
		r.participation = p
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		r.l = l
	}
}

func NewResolver(opts ...Option) *Resolver {
	ret := &Resolver{
		lib: codes.NewLibrary(nil, nil),
		placePoints: func(place int) decimal.Decimal {
			return decimal.NewFromInt(int64(place))
		},
		l: log.Default().Named("processing.resolve"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Resolve computes the point value of each entered row. Rows without place and
// code are ignored. On failure all resolution errors are returned joined.
func (r *Resolver) Resolve(rows []model.RaceResultRow) ([]model.ComputedScore, error) {
	w := r.prepare(rows)
	w.pass1()
	w.pass2()
	if len(w.errs) > 0 {
		return nil, errors.Join(w.errs...)
	}
	return w.result(), nil
}

func (r *Resolver) prepare(rows []model.RaceResultRow) *work {
	w := &work{
		r:            r,
		entries:      make([]*entry, 0, len(rows)),
		byRace:       make(map[int][]*entry),
		byCompetitor: make(map[int][]*entry),
	}
	for i := range rows {
		if !rows[i].Entered() {
			continue
		}
		e := &entry{row: rows[i]}
		e.row.Code = strings.ToUpper(strings.TrimSpace(e.row.Code))
		if e.row.Code != "" {
			e.hasCode = true
			if err := w.lookup(e); err != nil {
				w.fail(e, err)
			}
		}
		w.entries = append(w.entries, e)
		w.byRace[e.row.RaceID] = append(w.byRace[e.row.RaceID], e)
		w.byCompetitor[e.row.CompetitorID] = append(w.byCompetitor[e.row.CompetitorID], e)
	}
	w.entrants = len(lo.Keys(w.byCompetitor))
	return w
}

func (w *work) lookup(e *entry) (err error) {
	if e.assigned, err = w.r.lib.Resolve(e.row.Code); err != nil {
		return err
	}
	if e.target, err = w.r.lib.Target(e.row.Code); err != nil {
		return err
	}
	return nil
}

func (w *work) fail(e *entry, err error) {
	e.failed = true
	w.errs = append(w.errs, &util.ResolutionError{
		RaceID:       e.row.RaceID,
		CompetitorID: e.row.CompetitorID,
		Code:         e.row.Code,
		Err:          err,
	})
}

func (w *work) set(e *entry, v decimal.Decimal, manual bool) {
	e.value = v
	e.resolved = true
	e.manual = manual
}

func (w *work) pass1() {
	for _, e := range w.entries {
		if e.failed {
			continue
		}
		if !e.hasCode {
			w.set(e, w.r.placePoints(*e.row.Place), false)
			continue
		}
		if e.row.Value != nil && (e.assigned.PreserveResult || e.target.PreserveResult) {
			w.set(e, *e.row.Value, true)
			continue
		}
		switch e.target.Formula {
		case model.FormulaManual:
			if e.row.Value == nil {
				w.fail(e, util.ErrMissingManualValue)
				continue
			}
			w.set(e, *e.row.Value, true)
		case model.FormulaTieWithPrevious:
			if e.row.Place == nil {
				w.fail(e, util.ErrMissingPlace)
			}
		case model.FormulaSeriesEntrantsPlus:
			w.set(e, decimal.NewFromInt(int64(w.entrants)).Add(e.target.Offset), false)
		case model.FormulaCodeAlias:
			// Target never returns an alias
			w.fail(e, fmt.Errorf("%w: %s", util.ErrCyclicAlias, e.row.Code))
		default:
		}
	}
	w.r.l.Debug("pass 1 done",
		log.Int("entries", len(w.entries)),
		log.Int("pending", len(w.pending())))
}

func (w *work) pending() []*entry {
	return lo.Filter(w.entries, func(e *entry, _ int) bool {
		return !e.resolved && !e.failed
	})
}

func (w *work) pass2() {
	pending := w.pending()
	maxIterations := len(pending)
	for i := 0; i < maxIterations && len(pending) > 0; i++ {
		progress := false
		for _, e := range pending {
			v, ok := w.tryResolve(e)
			if !ok {
				continue
			}
			w.set(e, v, false)
			progress = true
		}
		pending = w.pending()
		w.r.l.Debug("pass 2 iteration",
			log.Int("iteration", i+1),
			log.Int("pending", len(pending)))
		if !progress {
			break
		}
	}
	for _, e := range pending {
		w.fail(e, fmt.Errorf("%w: %s depends on values that cannot be resolved",
			util.ErrUnresolvableDependency, e.target.Formula))
	}
}

// tryResolve returns the value of e if all its dependencies are resolved
func (w *work) tryResolve(e *entry) (decimal.Decimal, bool) {
	switch e.target.Formula {
	case model.FormulaFinishersPlus:
		return w.countInRace(e, func(x *entry) bool { return x.finished() })
	case model.FormulaStartersPlus:
		return w.countInRace(e, func(x *entry) bool { return x.cameToStart() })
	case model.FormulaAverageOfOtherRaces:
		return w.averageOfOtherRaces(e)
	case model.FormulaPlacePlusPercentOfWorst:
		return w.placePlusPercentOfWorst(e)
	case model.FormulaTieWithPrevious:
		return w.tieWithPrevious(e)
	default:
		return decimal.Zero, false
	}
}

// countInRace requires all plain places of the race to be known
func (w *work) countInRace(e *entry, pred func(x *entry) bool) (decimal.Decimal, bool) {
	race := w.byRace[e.row.RaceID]
	for _, x := range race {
		if !x.hasCode && !x.resolved {
			return decimal.Zero, false
		}
	}
	count := lo.CountBy(lo.UniqBy(race, func(x *entry) int { return x.row.CompetitorID }), pred)
	return decimal.NewFromInt(int64(count)).Add(e.target.Offset), true
}

func (w *work) averageOfOtherRaces(e *entry) (decimal.Decimal, bool) {
	others := lo.Filter(w.byCompetitor[e.row.CompetitorID], func(x *entry, _ int) bool {
		return x != e && !x.failed &&
			!(x.hasCode && x.target.Formula == model.FormulaAverageOfOtherRaces)
	})
	if len(others) == 0 {
		return w.fallback(), true
	}
	values := make([]decimal.Decimal, 0, len(others))
	for _, x := range others {
		if !x.resolved {
			return decimal.Zero, false
		}
		values = append(values, x.value)
	}
	return util.Round1(util.Mean(values)), true
}

func (w *work) placePlusPercentOfWorst(e *entry) (decimal.Decimal, bool) {
	others := lo.Filter(w.byRace[e.row.RaceID], func(x *entry, _ int) bool {
		return x != e && !x.failed &&
			!(x.hasCode && x.target.Formula == model.FormulaPlacePlusPercentOfWorst)
	})
	worst := w.fallback()
	if len(others) > 0 {
		worst = decimal.Zero
		for _, x := range others {
			if !x.resolved {
				return decimal.Zero, false
			}
			worst = decimal.Max(worst, x.value)
		}
	}
	base := worst
	if e.row.Place != nil {
		base = w.r.placePoints(*e.row.Place)
	}
	return util.Round1(base.Add(util.Percent(worst, e.target.Offset))), true
}

// tieWithPrevious requires a place, rows without one are rejected in pass 1
func (w *work) tieWithPrevious(e *entry) (decimal.Decimal, bool) {
	var prev *entry
	for _, x := range w.byRace[e.row.RaceID] {
		if x == e || x.failed || x.row.Place == nil || *x.row.Place >= *e.row.Place {
			continue
		}
		if prev == nil || *x.row.Place > *prev.row.Place {
			prev = x
		}
	}
	if prev == nil {
		return w.r.placePoints(*e.row.Place), true
	}
	if !prev.resolved {
		return decimal.Zero, false
	}
	return prev.value, true
}

// fallback is used when a relative formula has no data to relate to
func (w *work) fallback() decimal.Decimal {
	ret := decimal.NewFromInt(int64(w.entrants + 1))
	if w.r.participation != nil && w.r.participation.IsPositive() {
		ret = util.Round1(util.Percent(ret, *w.r.participation))
	}
	return ret
}

func (e *entry) finished() bool {
	if !e.hasCode {
		return e.row.Place != nil
	}
	return e.assigned.Finished
}

func (e *entry) cameToStart() bool {
	if !e.hasCode {
		return e.row.Place != nil
	}
	return e.assigned.CameToStart
}

func (e *entry) discardable() bool {
	if !e.hasCode {
		return true
	}
	return e.assigned.Discardable
}

func (w *work) result() []model.ComputedScore {
	return lo.Map(w.entries, func(e *entry, _ int) model.ComputedScore {
		return model.ComputedScore{
			RaceID:       e.row.RaceID,
			CompetitorID: e.row.CompetitorID,
			Place:        e.row.Place,
			BaseValue:    e.value,
			Value:        e.value,
			Code:         e.row.Code,
			IsManual:     e.manual,
			Discardable:  e.discardable(),
		}
	})
}
