package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brandflow/hookd/internal/models"
)

func TestProbeSuccess(t *testing.T) {
	var gotSig, gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Brandflow-Signature")
		gotEvent = r.Header.Get("X-Brandflow-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := New().Probe(context.Background(), srv.URL, "whsec_probe", 5*time.Second)
	if !res.OK {
		t.Fatalf("expected ok, got error %q", res.Error)
	}
	if !strings.HasPrefix(gotSig, "sha256=") {
		t.Errorf("expected signed probe, got signature %q", gotSig)
	}
	if gotEvent != models.EventTest {
		t.Errorf("expected event %q, got %q", models.EventTest, gotEvent)
	}
}

func TestProbeNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := New().Probe(context.Background(), srv.URL, "s", 5*time.Second)
	if res.OK {
		t.Fatal("expected failure for HTTP 500")
	}
	if res.Error != "HTTP 500: Internal Server Error" {
		t.Errorf("unexpected error text: %q", res.Error)
	}
}

func TestProbeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	start := time.Now()
	res := New().Probe(context.Background(), srv.URL, "s", 50*time.Millisecond)
	if res.OK {
		t.Fatal("expected timeout failure")
	}
	if res.Error != "Request timeout" {
		t.Errorf("expected %q, got %q", "Request timeout", res.Error)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Error("probe did not honor its timeout")
	}
}

func TestProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	res := New().Probe(context.Background(), srv.URL, "s", time.Second)
	if res.OK {
		t.Fatal("expected failure for refused connection")
	}
	if res.Error == "" {
		t.Error("expected underlying transport error text")
	}
}
