package check

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

// renderTable prints one line per competitor: rank, id, the score of each
// race (discarded scores in parentheses), total and net.
func renderTable(w io.Writer, s *model.SeriesStanding, races []model.Race) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"Rank", "Competitor"}
	for i := range races {
		name := races[i].Name
		if name == "" {
			name = fmt.Sprintf("R%d", i+1)
		}
		header = append(header, name)
	}
	header = append(header, "Total", "Net")
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for _, c := range s.Competitors {
		byRace := make(map[int]model.ComputedScore, len(c.Scores))
		for _, sc := range c.Scores {
			byRace[sc.RaceID] = sc
		}
		line := []string{fmt.Sprint(c.Rank), fmt.Sprint(c.CompetitorID)}
		for i := range races {
			line = append(line, formatScore(byRace, races[i].ID))
		}
		line = append(line, c.TotalPoints.String(), c.NetTotal.String())
		fmt.Fprintln(tw, strings.Join(line, "\t")+"\t")
	}
	return tw.Flush()
}

func formatScore(byRace map[int]model.ComputedScore, raceID int) string {
	sc, ok := byRace[raceID]
	if !ok {
		return "-"
	}
	v := sc.Value.String()
	if sc.Code != "" {
		v += " " + sc.Code
	}
	if sc.Discarded {
		return "(" + v + ")"
	}
	return v
}
