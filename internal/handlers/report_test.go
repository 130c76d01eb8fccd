package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/approx"
	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/report"
	"github.com/Kartikesh07/RailSetuBackend/internal/scenario"
)

func newReportHandler(policy engine.Policy) *ReportHandler {
	sec := scenario.SolapurWadiSection()
	gen := scenario.NewGenerator(sec, time.Now(), 11)
	return NewReportHandler(report.NewReporter(
		engine.New(sec, policy, engine.WithWorkers(2)),
		report.NewScenarioSource(gen, 10),
	))
}

func TestGetLiveReport(t *testing.T) {
	h := newReportHandler(engine.NewSimulationPolicy())

	rec := httptest.NewRecorder()
	h.GetLiveReport(rec, httptest.NewRequest(http.MethodGet, "/api/live_report", nil))
	expectStatus(t, rec, http.StatusOK)

	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}

	var rep report.LiveReport
	decodeBody(t, rec, &rep)
	if rep.Section != "Solapur-Wadi" || len(rep.Stations) != 9 {
		t.Errorf("report section %q with %d stations", rep.Section, len(rep.Stations))
	}
	if rep.RunID != "" {
		t.Errorf("RunID = %q without any store", rep.RunID)
	}
	if len(rep.Decisions) != rep.Metrics.ActiveTrains {
		t.Errorf("%d decisions for %d active trains", len(rep.Decisions), rep.Metrics.ActiveTrains)
	}
}

func TestGetLiveReportPlaceholder(t *testing.T) {
	h := newReportHandler(engine.NewModelPolicy(approx.NewForest(5)))

	rec := httptest.NewRecorder()
	h.GetLiveReport(rec, httptest.NewRequest(http.MethodGet, "/api/live_report", nil))
	expectStatus(t, rec, http.StatusServiceUnavailable)

	var rep report.LiveReport
	decodeBody(t, rec, &rep)
	if rep.Section != "Solapur-Wadi (Model Not Trained)" {
		t.Errorf("Section = %q", rep.Section)
	}
	if len(rep.Decisions) != 0 || len(rep.Trains) != 0 {
		t.Errorf("placeholder carries data: %+v", rep)
	}
}
