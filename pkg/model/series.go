package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RaceState string

const (
	RaceStateRaced       RaceState = "Raced"
	RaceStatePreliminary RaceState = "Preliminary"
	RaceStateScheduled   RaceState = "Scheduled"
	RaceStateAbandoned   RaceState = "Abandoned"
)

// Scored reports whether results of races in this state count for the series
func (s RaceState) Scored() bool {
	return s == "" || s == RaceStateRaced || s == RaceStatePreliminary
}

type Series struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	ScoringSystemID int    `json:"scoringSystemId"`
}

type Race struct {
	ID       int       `json:"id"`
	SeriesID int       `json:"seriesId"`
	Name     string    `json:"name,omitempty"`
	Date     time.Time `json:"date"`
	Order    int       `json:"order"`
	State    RaceState `json:"state,omitempty"`
}

// RaceResultRow is the raw result of one competitor in one race.
// If Code is set it is authoritative, Place is then only used by codes that
// refer to the nominal place (e.g. PlacePlusPercentOfWorst).
type RaceResultRow struct {
	RaceID       int    `json:"raceId"`
	CompetitorID int    `json:"competitorId"`
	Place        *int   `json:"place,omitempty"`
	Code         string `json:"code,omitempty"`
	// manually entered or preserved point value
	Value *decimal.Decimal `json:"value,omitempty"`
}

func (r *RaceResultRow) Entered() bool {
	return r.Place != nil || r.Code != ""
}

// SeriesInput is the immutable snapshot a computation works on
type SeriesInput struct {
	Series  Series          `json:"series"`
	Races   []Race          `json:"races"`
	Results []RaceResultRow `json:"results"`
}
