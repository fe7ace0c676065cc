package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecordRequestLabelsOutcomeByStubRC(t *testing.T) {
	c := New()
	c.RecordRequest("ReqCoprocRead", 2*time.Millisecond, 0)
	c.RecordRequest("ReqBranchTo", time.Millisecond, 7)

	body := scrape(t, c)
	if !strings.Contains(body, `pspproxy_requests_total{outcome="ok",rrn="ReqCoprocRead"} 1`) {
		t.Errorf("missing ok counter in:\n%s", body)
	}
	if !strings.Contains(body, `pspproxy_requests_total{outcome="rejected",rrn="ReqBranchTo"} 1`) {
		t.Errorf("missing rejected counter in:\n%s", body)
	}
}

func TestSetConnectedTogglesGauge(t *testing.T) {
	c := New()
	c.SetConnected(true)
	if !strings.Contains(scrape(t, c), "pspproxy_connected 1") {
		t.Errorf("expected gauge at 1 after SetConnected(true)")
	}
	c.SetConnected(false)
	if !strings.Contains(scrape(t, c), "pspproxy_connected 0") {
		t.Errorf("expected gauge at 0 after SetConnected(false)")
	}
}

func TestRecordIRQChangeLabelsByCCD(t *testing.T) {
	c := New()
	c.RecordIRQChange(3)
	c.RecordIRQChange(3)

	if !strings.Contains(scrape(t, c), `pspproxy_irq_changes_total{ccd="3"} 2`) {
		t.Errorf("expected ccd=3 counter at 2")
	}
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)
	return rec.Body.String()
}
