package model

import (
	"github.com/shopspring/decimal"
)

type Formula string

const (
	FormulaCodeAlias               Formula = "CodeAlias"
	FormulaFinishersPlus           Formula = "FinishersPlus"
	FormulaSeriesEntrantsPlus      Formula = "SeriesEntrantsPlus"
	FormulaStartersPlus            Formula = "StartersPlus"
	FormulaAverageOfOtherRaces     Formula = "AverageOfOtherRaces"
	FormulaPlacePlusPercentOfWorst Formula = "PlacePlusPercentOfWorst"
	FormulaManual                  Formula = "Manual"
	FormulaTieWithPrevious         Formula = "TieWithPrevious"
)

var formulas = []Formula{
	FormulaCodeAlias,
	FormulaFinishersPlus,
	FormulaSeriesEntrantsPlus,
	FormulaStartersPlus,
	FormulaAverageOfOtherRaces,
	FormulaPlacePlusPercentOfWorst,
	FormulaManual,
	FormulaTieWithPrevious,
}

func (f Formula) Valid() bool {
	for _, item := range formulas {
		if item == f {
			return true
		}
	}
	return false
}

type Direction string

const (
	LowPoint  Direction = "LowPoint"
	HighPoint Direction = "HighPoint"
)

// Better reports whether a is a better score than b
func (d Direction) Better(a, b decimal.Decimal) bool {
	if d == HighPoint {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// Compare returns -1 if a is better than b, 1 if worse and 0 on equality
func (d Direction) Compare(a, b decimal.Decimal) int {
	if d == HighPoint {
		return b.Cmp(a)
	}
	return a.Cmp(b)
}

// ScoreCode is the definition of a symbolic result like DNF or RDG
type ScoreCode struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Formula     Formula         `json:"formula"`
	Offset      decimal.Decimal `json:"offset"`
	// only meaningful for FormulaCodeAlias
	ReferencedCode        string `json:"referencedCode,omitempty"`
	Discardable           bool   `json:"discardable"`
	CameToStart           bool   `json:"cameToStart"`
	Started               bool   `json:"started"`
	Finished              bool   `json:"finished"`
	PreserveResult        bool   `json:"preserveResult"`
	AdjustsOtherFinishers bool   `json:"adjustsOtherFinishers"`
}

type ScoringSystem struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	DiscardPattern string `json:"discardPattern"`
	// used by AverageOfOtherRaces when no other race is available
	ParticipationPercent *decimal.Decimal `json:"participationPercent,omitempty"`
	ParentID             *int             `json:"parentId,omitempty"`
	Direction            Direction        `json:"direction"`
	// assigned to series entrants without a result in a sailed race
	MissingResultCode string      `json:"missingResultCode,omitempty"`
	Codes             []ScoreCode `json:"codes"`
}

func (s *ScoringSystem) EffectiveDirection() Direction {
	if s == nil || s.Direction == "" {
		return LowPoint
	}
	return s.Direction
}
