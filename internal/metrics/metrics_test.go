package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は名前とラベルが一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLogin_CountsByOutcome はログイン結果ごとにカウンタが増加することを検証する。
func TestRecordLogin_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("mock", "success", 1200*time.Millisecond)
	c.RecordLogin("mock", "success", 900*time.Millisecond)
	c.RecordLogin("mock", "provider_denied", 0)

	success := findMetric(t, reg, "dcode_login_total", map[string]string{"provider": "mock", "outcome": "success"})
	if v := success.GetCounter().GetValue(); v != 2 {
		t.Errorf("login_total{success} = %v, want 2", v)
	}
	denied := findMetric(t, reg, "dcode_login_total", map[string]string{"outcome": "provider_denied"})
	if v := denied.GetCounter().GetValue(); v != 1 {
		t.Errorf("login_total{provider_denied} = %v, want 1", v)
	}

	// 交換に至らなかった失敗はレイテンシに含めない
	latency := findMetric(t, reg, "dcode_login_latency_seconds", nil)
	if n := latency.GetHistogram().GetSampleCount(); n != 2 {
		t.Errorf("latency sample count = %d, want 2", n)
	}
}

// TestRecordLogout_IncrementsCounter はログアウトカウンタが増加することを検証する。
func TestRecordLogout_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogout()

	m := findMetric(t, reg, "dcode_logout_total", nil)
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("logout_total = %v, want 1", v)
	}
}

// TestRecordGuardDecision_LabelsByScreen は画面と判定のラベルで記録されることを検証する。
func TestRecordGuardDecision_LabelsByScreen(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGuardDecision("admin_dashboard", "redirect_to_login")
	c.RecordGuardDecision("admin_dashboard", "allow")
	c.RecordGuardDecision("admin_dashboard", "allow")

	m := findMetric(t, reg, "dcode_guard_decisions_total", map[string]string{"screen": "admin_dashboard", "decision": "allow"})
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("guard_decisions_total{allow} = %v, want 2", v)
	}
}

// TestRecordDataFetch_Outcome はエラーの有無で結果ラベルが変わることを検証する。
func TestRecordDataFetch_Outcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDataFetch("search_repositories", nil)
	c.RecordDataFetch("search_repositories", errors.New("timeout"))

	for _, outcome := range []string{"success", "failure"} {
		m := findMetric(t, reg, "dcode_data_fetch_total", map[string]string{"operation": "search_repositories", "outcome": outcome})
		if v := m.GetCounter().GetValue(); v != 1 {
			t.Errorf("data_fetch_total{%s} = %v, want 1", outcome, v)
		}
	}
}

// TestRecordHTTPStatus_LabelsByCode はステータスコードごとに記録されることを検証する。
func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(302)

	m := findMetric(t, reg, "dcode_http_status_total", map[string]string{"status_code": "200"})
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("http_status_total{200} = %v, want 2", v)
	}
}

// TestRecordPurgedEntries_AddsCount は削除件数が加算されることを検証する。
func TestRecordPurgedEntries_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPurgedEntries(3)
	c.RecordPurgedEntries(4)

	m := findMetric(t, reg, "dcode_session_entries_purged_total", nil)
	if v := m.GetCounter().GetValue(); v != 7 {
		t.Errorf("session_entries_purged_total = %v, want 7", v)
	}
}
