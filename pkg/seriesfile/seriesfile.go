// Package seriesfile reads scoring systems and a series with its results
// from a YAML document.
package seriesfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/codes"
)

var (
	ErrUnknownSystem   = errors.New("unknown scoring system")
	ErrDuplicateResult = errors.New("duplicate result")
	ErrEmptyResult     = errors.New("result needs place or code")
)

type (
	// File is the decoded content of a series file
	File struct {
		Systems map[int]*model.ScoringSystem
		Input   *model.SeriesInput
	}

	number struct {
		decimal.Decimal
	}

	fileContent struct {
		ScoringSystems []systemEntry `yaml:"scoringSystems"`
		Series         seriesEntry   `yaml:"series"`
	}
	systemEntry struct {
		ID                   int         `yaml:"id"`
		Name                 string      `yaml:"name"`
		Parent               *int        `yaml:"parent"`
		DiscardPattern       string      `yaml:"discardPattern"`
		Direction            string      `yaml:"direction"`
		MissingResultCode    string      `yaml:"missingResultCode"`
		ParticipationPercent *number     `yaml:"participationPercent"`
		StandardCodes        bool        `yaml:"standardCodes"`
		Codes                []codeEntry `yaml:"codes"`
	}
	codeEntry struct {
		Name                  string `yaml:"name"`
		Description           string `yaml:"description"`
		Formula               string `yaml:"formula"`
		Offset                number `yaml:"offset"`
		Ref                   string `yaml:"ref"`
		Discardable           *bool  `yaml:"discardable"`
		CameToStart           bool   `yaml:"cameToStart"`
		Started               bool   `yaml:"started"`
		Finished              bool   `yaml:"finished"`
		PreserveResult        bool   `yaml:"preserveResult"`
		AdjustsOtherFinishers bool   `yaml:"adjustsOtherFinishers"`
	}
	seriesEntry struct {
		ID            int         `yaml:"id"`
		Name          string      `yaml:"name"`
		ScoringSystem int         `yaml:"scoringSystem"`
		Races         []raceEntry `yaml:"races"`
	}
	raceEntry struct {
		ID      int           `yaml:"id"`
		Name    string        `yaml:"name"`
		Date    time.Time     `yaml:"date"`
		Order   int           `yaml:"order"`
		State   string        `yaml:"state"`
		Results []resultEntry `yaml:"results"`
	}
	resultEntry struct {
		Competitor int     `yaml:"competitor"`
		Place      *int    `yaml:"place"`
		Code       string  `yaml:"code"`
		Value      *number `yaml:"value"`
	}
)

func (n *number) UnmarshalYAML(value *yaml.Node) error {
	d, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	n.Decimal = d
	return nil
}

func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*File, error) {
	var content fileContent
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&content); err != nil {
		return nil, err
	}
	return content.toFile()
}

// System returns the scoring system of the series and its parent (if any)
func (f *File) System() (system, parent *model.ScoringSystem, err error) {
	id := f.Input.Series.ScoringSystemID
	system, ok := f.Systems[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownSystem, id)
	}
	if system.ParentID != nil {
		if parent, ok = f.Systems[*system.ParentID]; !ok {
			return nil, nil, fmt.Errorf("%w: parent %d", ErrUnknownSystem, *system.ParentID)
		}
	}
	return system, parent, nil
}

func (c *fileContent) toFile() (*File, error) {
	ret := &File{Systems: make(map[int]*model.ScoringSystem)}
	for i := range c.ScoringSystems {
		s := c.ScoringSystems[i].toModel()
		ret.Systems[s.ID] = s
	}
	input, err := c.Series.toModel()
	if err != nil {
		return nil, err
	}
	ret.Input = input
	if _, _, err := ret.System(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (e *systemEntry) toModel() *model.ScoringSystem {
	ret := &model.ScoringSystem{
		ID:                e.ID,
		Name:              e.Name,
		ParentID:          e.Parent,
		DiscardPattern:    e.DiscardPattern,
		Direction:         model.Direction(e.Direction),
		MissingResultCode: e.MissingResultCode,
		Codes:             []model.ScoreCode{},
	}
	if e.ParticipationPercent != nil {
		ret.ParticipationPercent = &e.ParticipationPercent.Decimal
	}
	if e.StandardCodes {
		ret.Codes = append(ret.Codes, codes.StandardCodes()...)
	}
	for i := range e.Codes {
		c := &e.Codes[i]
		sc := model.ScoreCode{
			Name:                  c.Name,
			Description:           c.Description,
			Formula:               model.Formula(c.Formula),
			Offset:                c.Offset.Decimal,
			ReferencedCode:        c.Ref,
			Discardable:           c.Discardable == nil || *c.Discardable,
			CameToStart:           c.CameToStart,
			Started:               c.Started,
			Finished:              c.Finished,
			PreserveResult:        c.PreserveResult,
			AdjustsOtherFinishers: c.AdjustsOtherFinishers,
		}
		// explicit definitions replace standard ones with the same name
		replaced := false
		for j := range ret.Codes {
			if ret.Codes[j].Name == sc.Name {
				ret.Codes[j] = sc
				replaced = true
			}
		}
		if !replaced {
			ret.Codes = append(ret.Codes, sc)
		}
	}
	return ret
}

func (e *seriesEntry) toModel() (*model.SeriesInput, error) {
	ret := &model.SeriesInput{
		Series: model.Series{
			ID:              e.ID,
			Name:            e.Name,
			ScoringSystemID: e.ScoringSystem,
		},
		Races:   make([]model.Race, 0, len(e.Races)),
		Results: []model.RaceResultRow{},
	}
	type key struct{ race, competitor int }
	seen := make(map[key]bool)
	for i := range e.Races {
		r := &e.Races[i]
		raceID := r.ID
		if raceID == 0 {
			raceID = i + 1
		}
		order := r.Order
		if order == 0 {
			order = i + 1
		}
		ret.Races = append(ret.Races, model.Race{
			ID:       raceID,
			SeriesID: e.ID,
			Name:     r.Name,
			Date:     r.Date,
			Order:    order,
			State:    model.RaceState(r.State),
		})
		for _, res := range r.Results {
			k := key{raceID, res.Competitor}
			if seen[k] {
				return nil, fmt.Errorf("%w: race %d, competitor %d",
					ErrDuplicateResult, raceID, res.Competitor)
			}
			seen[k] = true
			row := model.RaceResultRow{
				RaceID:       raceID,
				CompetitorID: res.Competitor,
				Place:        res.Place,
				Code:         res.Code,
			}
			if res.Value != nil {
				row.Value = &res.Value.Decimal
			}
			if !row.Entered() {
				return nil, fmt.Errorf("%w: race %d, competitor %d",
					ErrEmptyResult, raceID, res.Competitor)
			}
			ret.Results = append(ret.Results, row)
		}
	}
	return ret, nil
}
