package codes

import (
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

// StandardCodes returns the scoring abbreviations of the racing rules of
// sailing. Scoring systems without a parent inherit from this set.
func StandardCodes() []model.ScoreCode {
	one := decimal.NewFromInt(1)
	twenty := decimal.NewFromInt(20)
	entrantsPlusOne := func(name, desc string, came, started, discardable bool) model.ScoreCode {
		return model.ScoreCode{
			Name:        name,
			Description: desc,
			Formula:     model.FormulaSeriesEntrantsPlus,
			Offset:      one,
			Discardable: discardable,
			CameToStart: came,
			Started:     started,
		}
	}
	return []model.ScoreCode{
		entrantsPlusOne("DNC", "did not come to the starting area", false, false, true),
		entrantsPlusOne("DNS", "did not start", true, false, true),
		entrantsPlusOne("OCS", "on course side at start", true, true, true),
		entrantsPlusOne("UFD", "U flag disqualification", true, true, true),
		entrantsPlusOne("BFD", "black flag disqualification", true, true, true),
		entrantsPlusOne("DNF", "did not finish", true, true, true),
		entrantsPlusOne("RET", "retired", true, true, true),
		entrantsPlusOne("DSQ", "disqualified", true, true, true),
		entrantsPlusOne("DNE", "disqualification not excludable", true, true, false),
		{
			Name:           "NSC",
			Description:    "did not sail the course",
			Formula:        model.FormulaCodeAlias,
			ReferencedCode: "DNF",
			Discardable:    true,
			CameToStart:    true,
			Started:        true,
		},
		{
			Name:        "ZFP",
			Description: "20% penalty under rule 30.2",
			Formula:     model.FormulaPlacePlusPercentOfWorst,
			Offset:      twenty,
			Discardable: true,
			CameToStart: true,
			Started:     true,
			Finished:    true,
		},
		{
			Name:        "SCP",
			Description: "scoring penalty",
			Formula:     model.FormulaPlacePlusPercentOfWorst,
			Offset:      twenty,
			Discardable: true,
			CameToStart: true,
			Started:     true,
			Finished:    true,
		},
		{
			Name:        "RDG",
			Description: "redress given, average of other races",
			Formula:     model.FormulaAverageOfOtherRaces,
			Discardable: true,
		},
		{
			Name:                  "RDGP",
			Description:           "redress given as finishing place",
			Formula:               model.FormulaPlacePlusPercentOfWorst,
			Discardable:           true,
			CameToStart:           true,
			Started:               true,
			Finished:              true,
			AdjustsOtherFinishers: true,
		},
		{
			Name:           "DPI",
			Description:    "discretionary penalty imposed",
			Formula:        model.FormulaManual,
			Discardable:    true,
			CameToStart:    true,
			Started:        true,
			Finished:       true,
			PreserveResult: true,
		},
		{
			Name:        "TIE",
			Description: "tied with the previous finisher",
			Formula:     model.FormulaTieWithPrevious,
			Discardable: true,
			CameToStart: true,
			Started:     true,
			Finished:    true,
		},
	}
}
