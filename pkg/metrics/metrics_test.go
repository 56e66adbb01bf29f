package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.IncConsumed()
	m.IncConsumed()
	m.IncDelivered()
	m.IncGone()
	m.IncSubscription("subscribe", "ok")

	if got := testutil.ToFloat64(m.consumed); got != 2 {
		t.Errorf("consumed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.delivered); got != 1 {
		t.Errorf("delivered = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.gone); got != 1 {
		t.Errorf("gone = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.subscriptions.WithLabelValues("subscribe", "ok")); got != 1 {
		t.Errorf("subscriptions{subscribe,ok} = %v, want 1", got)
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncFailed()
	if got := testutil.ToFloat64(b.failed); got != 0 {
		t.Errorf("second collector saw first collector's increment: %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.IncRetried()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "push_send_retries_total 1") {
		t.Errorf("exposition missing retried counter:\n%s", rec.Body.String())
	}
}
