package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/validation"
	"github.com/goliatone/go-intake/pkg/wizard"
)

func TestRecorderObservesWizard(t *testing.T) {
	rec := New(prometheus.NewRegistry())

	def := wizard.Definition{
		Name:          "metrics",
		AutosaveDelay: time.Hour,
		Pages: []wizard.Page{
			{Slug: "a", Schema: validation.MustSchema([]validation.Rule{{Path: "name", Required: true}})},
			{Slug: "b"},
		},
	}
	store := draft.NewMemoryStore()
	record, err := store.Create(context.Background(), draft.NewRecord("metrics", nil))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w, err := wizard.New(def, record, store, wizard.WithObserver(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if _, err := w.GoNext(context.Background()); err != nil {
		t.Fatalf("GoNext: %v", err)
	}
	if err := w.SetField("name", "x"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if _, err := w.GoNext(context.Background()); err != nil {
		t.Fatalf("GoNext: %v", err)
	}
	if _, err := w.SaveAndExit(context.Background()); err != nil {
		t.Fatalf("SaveAndExit: %v", err)
	}

	checks := map[[3]string]float64{
		{"metrics", "next", wizard.ResultInvalid}:     1,
		{"metrics", "next", wizard.ResultMoved}:       1,
		{"metrics", "save-exit", wizard.ResultExited}: 1,
	}
	for labels, want := range checks {
		if got := testutil.ToFloat64(rec.transitions.WithLabelValues(labels[0], labels[1], labels[2])); got != want {
			t.Fatalf("transitions%v = %v, want %v", labels, got, want)
		}
	}
}

func TestRecorderSessionsAndHandler(t *testing.T) {
	rec := New(nil)
	rec.SessionOpened()
	rec.SessionOpened()
	rec.SessionClosed()
	rec.Autosave("w", "saved")
	rec.ObserveRequest("/system/{id}/next", "POST", 200, 20*time.Millisecond)

	if got := testutil.ToFloat64(rec.sessions); got != 1 {
		t.Fatalf("sessions = %v", got)
	}

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"intake_sessions_active 1", `intake_autosaves_total{outcome="saved",wizard="w"} 1`, "intake_http_request_duration_seconds"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in exposition:\n%s", want, body)
		}
	}
}
