package notify

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

const (
	SubjectSeriesChanged        = "rsm.series.changed"
	SubjectScoringSystemChanged = "rsm.scoringsystem.changed"
)

type (
	// ChangeEvent announces that the input of a series or a scoring system changed.
	ChangeEvent struct {
		ID     int       `json:"id"`
		Reason string    `json:"reason,omitempty"`
		At     time.Time `json:"at"`
	}

	// Summary is the compact form of a published standing kept in the KV bucket
	Summary struct {
		ResultID   uuid.UUID      `json:"resultId"`
		SeriesID   int            `json:"seriesId"`
		ComputedAt time.Time      `json:"computedAt"`
		Entries    []SummaryEntry `json:"entries"`
	}
	SummaryEntry struct {
		CompetitorID int             `json:"competitorId"`
		Rank         int             `json:"rank"`
		NetTotal     decimal.Decimal `json:"netTotal"`
	}
)

func summarize(res *model.CachedResult) *Summary {
	ret := &Summary{
		ResultID: res.ID,
		SeriesID: res.SeriesID,
		Entries:  []SummaryEntry{},
	}
	if res.Payload == nil {
		return ret
	}
	ret.ComputedAt = res.Payload.ComputedAt
	for i := range res.Payload.Competitors {
		c := &res.Payload.Competitors[i]
		ret.Entries = append(ret.Entries, SummaryEntry{
			CompetitorID: c.CompetitorID,
			Rank:         c.Rank,
			NetTotal:     c.NetTotal,
		})
	}
	return ret
}

type jsonTransfer[T any] struct{}

func (jsonTransfer[T]) ToBinary(v *T) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonTransfer[T]) FromBinary(data []byte) (*T, error) {
	ret := new(T)
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, err
	}
	return ret, nil
}
