package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersExposed(t *testing.T) {
	m := New()
	m.LoginAttempts.WithLabelValues("success").Inc()
	m.Panels.WithLabelValues("srv1", "success").Add(2)

	if got := testutil.ToFloat64(m.Panels.WithLabelValues("srv1", "success")); got != 2 {
		t.Errorf("panels = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `paneldash_login_attempts_total{result="success"} 1`) {
		t.Errorf("metrics output missing login counter:\n%s", body)
	}
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.LoginAttempts.WithLabelValues("failure").Inc()
	if got := testutil.ToFloat64(b.LoginAttempts.WithLabelValues("failure")); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}
