package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

type ComputedScore struct {
	RaceID       int  `json:"raceId"`
	CompetitorID int  `json:"competitorId"`
	Place        *int `json:"place,omitempty"`
	// value before adjustments by other competitors' codes
	BaseValue   decimal.Decimal `json:"baseValue"`
	Value       decimal.Decimal `json:"value"`
	Code        string          `json:"code,omitempty"`
	IsManual    bool            `json:"isManual"`
	Discardable bool            `json:"discardable"`
	Discarded   bool            `json:"discarded"`
}

type CompetitorStanding struct {
	CompetitorID int             `json:"competitorId"`
	Scores       []ComputedScore `json:"scores"`
	TotalPoints  decimal.Decimal `json:"totalPoints"`
	NetTotal     decimal.Decimal `json:"netTotal"`
	DiscardCount int             `json:"discardCount"`
	Rank         int             `json:"rank"`
	// keys used to justify the rank against tied neighbors
	TieBreak []string `json:"tieBreak,omitempty"`
}

type SeriesStanding struct {
	SeriesID     int                  `json:"seriesId"`
	Direction    Direction            `json:"direction"`
	RacesCounted int                  `json:"racesCounted"`
	Competitors  []CompetitorStanding `json:"competitors"`
	ComputedAt   time.Time            `json:"computedAt"`
}

type StandingState string

const (
	StandingStale     StandingState = "Stale"
	StandingComputing StandingState = "Computing"
	StandingCurrent   StandingState = "Current"
)

type CachedResult struct {
	ID        uuid.UUID       `json:"id"`
	SeriesID  int             `json:"seriesId"`
	Payload   *SeriesStanding `json:"payload"`
	IsCurrent bool            `json:"isCurrent"`
	CreatedAt time.Time       `json:"createdAt"`
}
