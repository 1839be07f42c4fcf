package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func gathered(t *testing.T, r *Recorder) map[string]float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			for _, l := range m.GetLabel() {
				key += "{" + l.GetName() + "=" + l.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestRecorder(t *testing.T) {
	r := New()
	r.ObserveUpload("package", 100)
	r.ObserveUpload("package", 50)
	r.ObserveUpload("cache", 10)
	r.ObservePass(1, time.Second)
	r.ObservePass(3, 2*time.Second)
	r.SetRowsReset(4)
	r.LockOutcome("succeeded")
	r.PackagesStaged(2)

	got := gathered(t, r)
	want := map[string]float64{
		"conda_publish_uploads_total{kind=package}":             2,
		"conda_publish_uploads_total{kind=cache}":               1,
		"conda_publish_upload_bytes_total":                      160,
		"conda_publish_reconcile_pass_duration_seconds{pass=1}": 1,
		"conda_publish_reconcile_pass_duration_seconds{pass=3}": 1,
		"conda_publish_cache_rows_reset":                        4,
		"conda_publish_lock_outcomes_total{outcome=succeeded}":  1,
		"conda_publish_packages_staged":                         2,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.ObserveUpload("package", 1)
	r.ObservePass(1, time.Second)
	r.SetRowsReset(1)
	r.LockOutcome("failed")
	r.PackagesStaged(1)
	r.MarkSuccess(time.Now())
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("WriteTextfile: %v", err)
	}
	if r.Registry() != nil {
		t.Error("nil recorder has a registry")
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.MarkSuccess(time.Unix(1700000000, 0))
	path := filepath.Join(t.TempDir(), "conda_publish.prom")

	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "conda_publish_last_success_timestamp_seconds 1.7e+09") {
		t.Errorf("textfile missing timestamp:\n%s", data)
	}

	if err := r.WriteTextfile(""); err != nil {
		t.Errorf("empty path: %v", err)
	}
}
