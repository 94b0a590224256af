//nolint:funlen,errcheck,lll // ok for this test code
package rest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/notify"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/util"
	"github.com/mpapenbr/regatta-scoring-go/pkg/repository"
	"github.com/mpapenbr/regatta-scoring-go/pkg/utils/broadcast"
)

type fakeService struct {
	standing    *model.CachedResult
	err         error
	invalidated []int
	systems     []int
	state       model.StandingState
	limit       int
}

func (f *fakeService) Standing(ctx context.Context, seriesID int) (*model.CachedResult, error) {
	return f.standing, f.err
}

func (f *fakeService) Recompute(ctx context.Context, seriesID int) (*model.CachedResult, error) {
	return f.standing, f.err
}

func (f *fakeService) Invalidate(ctx context.Context, seriesID int) error {
	f.invalidated = append(f.invalidated, seriesID)
	return nil
}

func (f *fakeService) State(ctx context.Context, seriesID int) (model.StandingState, error) {
	return f.state, f.err
}

//nolint:whitespace // can't make both editor and linter happy
func (f *fakeService) History(
	ctx context.Context, seriesID, limit int,
) ([]*model.CachedResult, error) {
	f.limit = limit
	return []*model.CachedResult{}, f.err
}

//nolint:whitespace // can't make both editor and linter happy
func (f *fakeService) InvalidateScoringSystem(
	ctx context.Context, systemID int,
) ([]int, error) {
	f.systems = append(f.systems, systemID)
	return []int{1, 2}, nil
}

type fakeWriter struct {
	rows []*model.RaceResultRow
	err  error
}

func (f *fakeWriter) UpsertResult(ctx context.Context, row *model.RaceResultRow) (int, error) {
	f.rows = append(f.rows, row)
	return 5, f.err
}

func (f *fakeWriter) DeleteResult(ctx context.Context, raceID, competitorID int) (int, error) {
	return 5, f.err
}

//nolint:whitespace // can't make both editor and linter happy
func (f *fakeWriter) UpdateRaceState(
	ctx context.Context, raceID int, state model.RaceState,
) (int, error) {
	return 5, f.err
}

type fakeSystemWriter struct {
	systems []*model.ScoringSystem
	codes   []*model.ScoreCode
	deleted []string
	err     error
}

func (f *fakeSystemWriter) UpdateScoringSystem(ctx context.Context, system *model.ScoringSystem) error {
	if f.err == nil {
		f.systems = append(f.systems, system)
	}
	return f.err
}

func (f *fakeSystemWriter) UpsertCode(ctx context.Context, systemID int, code *model.ScoreCode) error {
	if f.err == nil {
		f.codes = append(f.codes, code)
	}
	return f.err
}

func (f *fakeSystemWriter) DeleteCode(ctx context.Context, systemID int, name string) error {
	if f.err == nil {
		f.deleted = append(f.deleted, name)
	}
	return f.err
}

type fakeSummaries struct {
	summary *notify.Summary
}

func (f *fakeSummaries) LoadSummary(ctx context.Context, seriesID int) (*notify.Summary, error) {
	if f.summary == nil || f.summary.SeriesID != seriesID {
		return nil, notify.ErrNoSummary
	}
	return f.summary, nil
}

type fakePublisher struct {
	series  []int
	systems []int
}

func (f *fakePublisher) PublishSeriesChanged(seriesID int, reason string) error {
	f.series = append(f.series, seriesID)
	return nil
}

func (f *fakePublisher) PublishScoringSystemChanged(systemID int, reason string) error {
	f.systems = append(f.systems, systemID)
	return nil
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetStanding(t *testing.T) {
	svc := &fakeService{standing: &model.CachedResult{SeriesID: 3, IsCurrent: true}}
	h := NewServer(WithStandingService(svc)).Handler()

	rec := do(t, h, http.MethodGet, "/series/3/standing", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var got model.CachedResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.SeriesID)

	rec = do(t, h, http.MethodGet, "/series/abc/standing", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	resErr := errors.Join(
		&util.ResolutionError{RaceID: 1, CompetitorID: 2, Code: "XYZ", Err: util.ErrUnknownCode},
		&util.ResolutionError{RaceID: 1, CompetitorID: 3, Code: "DPI", Err: util.ErrMissingManualValue},
	)
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantDetails int
	}{
		{"not found", fmt.Errorf("series 1: %w", repository.ErrNoData), http.StatusNotFound, 0},
		{"resolution errors", fmt.Errorf("series 1: %w", resErr), http.StatusUnprocessableEntity, 2},
		{"discard pattern", util.ErrInvalidDiscardPattern, http.StatusUnprocessableEntity, 0},
		{"other", errors.New("boom"), http.StatusInternalServerError, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(WithStandingService(&fakeService{err: tt.err})).Handler()
			rec := do(t, h, http.MethodGet, "/series/1/standing", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			var p problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Len(t, p.Details, tt.wantDetails)
		})
	}
}

func TestResolutionErrorDetails(t *testing.T) {
	err := &util.ResolutionError{RaceID: 4, CompetitorID: 7, Code: "XYZ", Err: util.ErrUnknownCode}
	p := problemFor(fmt.Errorf("series 1: %w", errors.Join(err)))
	require.Len(t, p.Details, 1)
	assert.Equal(t, problemDetail{
		RaceID: 4, CompetitorID: 7, Code: "XYZ", Reason: util.ErrUnknownCode.Error(),
	}, p.Details[0])
}

func TestStateAndHistory(t *testing.T) {
	svc := &fakeService{state: model.StandingStale}
	h := NewServer(WithStandingService(svc)).Handler()

	rec := do(t, h, http.MethodGet, "/series/2/state", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"seriesId":2,"state":"Stale"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/series/2/history?limit=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.limit)

	rec = do(t, h, http.MethodGet, "/series/2/history?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminToken(t *testing.T) {
	svc := &fakeService{}
	pub := &fakePublisher{}
	h := NewServer(
		WithStandingService(svc),
		WithAdminToken("secret"),
		WithChangePublisher(pub),
	).Handler()

	rec := do(t, h, http.MethodPost, "/series/2/invalidate", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, svc.invalidated)

	rec = do(t, h, http.MethodPost, "/series/2/invalidate", "", tokenHeader, "secret")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int{2}, svc.invalidated)
	assert.Equal(t, []int{2}, pub.series)
}

func TestResultWrites(t *testing.T) {
	svc := &fakeService{}
	w := &fakeWriter{}
	h := NewServer(WithStandingService(svc), WithResultWriter(w)).Handler()

	rec := do(t, h, http.MethodPut, "/races/1/results/8", `{"code":"DNF"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, w.rows, 1)
	assert.Equal(t, &model.RaceResultRow{RaceID: 1, CompetitorID: 8, Code: "DNF"}, w.rows[0])
	assert.Equal(t, []int{5}, svc.invalidated)

	rec = do(t, h, http.MethodPut, "/races/1/results/8", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, body := range []string{`{"place":0}`, `{"place":-1}`, `{"place":-2,"code":"ZFP"}`} {
		rec = do(t, h, http.MethodPut, "/races/1/results/8", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	require.Len(t, w.rows, 1)

	rec = do(t, h, http.MethodPut, "/races/1/state", `{"state":"Abandoned"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPut, "/races/1/state", `{"state":"Sunk"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w.err = repository.ErrNoData
	rec = do(t, h, http.MethodDelete, "/races/1/results/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []int{5, 5}, svc.invalidated)
}

func TestWritesDisabledWithoutWriter(t *testing.T) {
	h := NewServer(WithStandingService(&fakeService{})).Handler()
	rec := do(t, h, http.MethodPut, "/races/1/results/8", `{"code":"DNF"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/scoring-systems/1/codes/DNF", `{"formula":"Manual"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScoringSystemWrites(t *testing.T) {
	svc := &fakeService{}
	w := &fakeSystemWriter{}
	pub := &fakePublisher{}
	h := NewServer(
		WithStandingService(svc),
		WithScoringSystemWriter(w),
		WithChangePublisher(pub),
		WithAdminToken("secret"),
	).Handler()

	rec := do(t, h, http.MethodPut, "/scoring-systems/3", `{"name":"x"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, w.systems)

	rec = do(t, h, http.MethodPut, "/scoring-systems/3",
		`{"id":99,"name":"club","discardPattern":"0,1","direction":"LowPoint"}`,
		tokenHeader, "secret")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, w.systems, 1)
	assert.Equal(t, 3, w.systems[0].ID)
	assert.Equal(t, "club", w.systems[0].Name)

	rec = do(t, h, http.MethodPut, "/scoring-systems/3/codes/zfp",
		`{"formula":"PlacePlusPercentOfWorst","offset":"20","discardable":true}`,
		tokenHeader, "secret")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, w.codes, 1)
	assert.Equal(t, "ZFP", w.codes[0].Name)
	assert.Equal(t, model.FormulaPlacePlusPercentOfWorst, w.codes[0].Formula)
	assert.Equal(t, "20", w.codes[0].Offset.String())

	rec = do(t, h, http.MethodDelete, "/scoring-systems/3/codes/ZFP", "", tokenHeader, "secret")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"ZFP"}, w.deleted)

	// every accepted write drops the cached system and announces the change
	assert.Equal(t, []int{3, 3, 3}, svc.systems)
	assert.Equal(t, []int{3, 3, 3}, pub.systems)

	rec = do(t, h, http.MethodPut, "/scoring-systems/x", `{}`, tokenHeader, "secret")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPut, "/scoring-systems/3", `{`, tokenHeader, "secret")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoringSystemWriteErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid discard pattern", fmt.Errorf("%w: entry 2", util.ErrInvalidDiscardPattern), http.StatusUnprocessableEntity},
		{"cyclic alias", util.ErrCyclicAlias, http.StatusUnprocessableEntity},
		{"unknown system", repository.ErrNoData, http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			pub := &fakePublisher{}
			h := NewServer(
				WithStandingService(svc),
				WithScoringSystemWriter(&fakeSystemWriter{err: tt.err}),
				WithChangePublisher(pub),
			).Handler()

			rec := do(t, h, http.MethodPut, "/scoring-systems/3", `{"discardPattern":"0,x"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			rec = do(t, h, http.MethodPut, "/scoring-systems/3/codes/RDG", `{"formula":"AverageOfOtherRaces"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			rec = do(t, h, http.MethodDelete, "/scoring-systems/3/codes/RDG", "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			assert.Empty(t, svc.systems)
			assert.Empty(t, pub.systems)
		})
	}
}

func TestGetSummary(t *testing.T) {
	summaries := &fakeSummaries{summary: &notify.Summary{
		SeriesID: 4,
		Entries:  []notify.SummaryEntry{{CompetitorID: 7, Rank: 1}},
	}}
	h := NewServer(
		WithStandingService(&fakeService{}),
		WithSummaryReader(summaries),
	).Handler()

	rec := do(t, h, http.MethodGet, "/series/4/summary", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var got notify.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.SeriesID)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, 7, got.Entries[0].CompetitorID)

	rec = do(t, h, http.MethodGet, "/series/5/summary", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamStandings(t *testing.T) {
	source := make(chan *model.CachedResult)
	updates := broadcast.NewBroadcastServer[*model.CachedResult]("test", source)
	defer updates.Close()
	srv := httptest.NewServer(NewServer(
		WithStandingService(&fakeService{}),
		WithUpdates(updates),
	).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/series/5/events", http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	go func() {
		source <- &model.CachedResult{SeriesID: 4}
		source <- &model.CachedResult{SeriesID: 5, IsCurrent: true}
	}()
	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		if after, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			data = after
			break
		}
	}
	var got model.CachedResult
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, 5, got.SeriesID)
	assert.True(t, got.IsCurrent)
}

func TestStreamDisabledWithoutUpdates(t *testing.T) {
	h := NewServer(WithStandingService(&fakeService{})).Handler()
	rec := do(t, h, http.MethodGet, "/series/5/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
