package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"llm-defi-agent/internal/history"
	"llm-defi-agent/internal/types"
)

type fakeEngine struct {
	params *types.CycleParams
	report *types.CycleReport
	err    error
}

func (f *fakeEngine) RunDecisionCycle(ctx context.Context, p *types.CycleParams) (*types.CycleReport, error) {
	f.params = p
	return f.report, f.err
}

func (f *fakeEngine) Close() error { return nil }

func do(s *server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newServer(&fakeEngine{}, history.NewMemoryStore(), http.NotFoundHandler())
	if rec := do(s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestRunCycleForwardsParams(t *testing.T) {
	eng := &fakeEngine{report: &types.CycleReport{Pair: "ETHUSD"}}
	s := newServer(eng, history.NewMemoryStore(), nil)

	rec := do(s, http.MethodPost, "/v1/decisions/cycle", `{"symbol":"ETHUSD","resolution":"60","from":100,"to":200}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if eng.params.Symbol != "ETHUSD" || eng.params.From != 100 || eng.params.To != 200 {
		t.Errorf("Unexpected params %+v", eng.params)
	}
	var report types.CycleReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil || report.Pair != "ETHUSD" {
		t.Errorf("Expected report for ETHUSD, got %s", rec.Body.String())
	}
}

func TestRunCycleWithoutBody(t *testing.T) {
	eng := &fakeEngine{report: &types.CycleReport{}}
	s := newServer(eng, history.NewMemoryStore(), nil)
	if rec := do(s, http.MethodPost, "/v1/decisions/cycle", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestRunCycleErrors(t *testing.T) {
	s := newServer(&fakeEngine{err: fmt.Errorf("%w: all down", types.ErrNoProviders)}, history.NewMemoryStore(), nil)
	if rec := do(s, http.MethodPost, "/v1/decisions/cycle", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/v1/decisions/cycle", `{"from":300,"to":200}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for inverted window, got %d", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/v1/decisions/cycle", `{"from":`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestRunCycleFailedTracksReturnReportWithError(t *testing.T) {
	eng := &fakeEngine{
		report: &types.CycleReport{Pair: "BTCUSD", Errors: map[string]string{"trading": "rpc: connection reset"}},
		err:    errors.New("rpc: connection reset"),
	}
	s := newServer(eng, history.NewMemoryStore(), nil)

	rec := do(s, http.MethodPost, "/v1/decisions/cycle", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rec.Code)
	}
	var body cycleError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "rpc: connection reset" {
		t.Errorf("Expected error in body, got %q", body.Error)
	}
	if body.Report == nil || body.Report.Errors["trading"] == "" {
		t.Errorf("Expected partial report in body, got %+v", body.Report)
	}
}

func TestListAndGetDecisions(t *testing.T) {
	store := history.NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, pair := range []string{"BTCUSD", "ETHUSD", "BTCUSD"} {
		rec := &types.DecisionRecord{ID: fmt.Sprintf("r%d", i), Pair: pair, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if _, err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	s := newServer(&fakeEngine{}, store, nil)

	rec := do(s, http.MethodGet, "/v1/decisions?pair=btcusd&limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var recs []types.DecisionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "r2" {
		t.Errorf("Expected newest BTCUSD record r2, got %+v", recs)
	}

	if rec := do(s, http.MethodGet, "/v1/decisions?limit=zero", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/v1/decisions?since=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad since, got %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/v1/decisions/r1", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for known record, got %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/v1/decisions/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestPollLoopStopsOnCancel(t *testing.T) {
	eng := &fakeEngine{report: &types.CycleReport{}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pollLoop(ctx, eng, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected poll loop to stop after cancel")
	}
}
