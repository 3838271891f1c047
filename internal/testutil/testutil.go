// Package testutil holds recording fixtures and HTTP assertions shared by
// package tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/ecgscope/internal/waveform"
)

// SpikeTrain returns n zero samples with a unit-amplitude triangular R-like
// spike every period samples, starting at offset.
func SpikeTrain(n, offset, period int, amp float64) []float64 {
	x := make([]float64, n)
	if period <= 0 {
		return x
	}
	for i := offset; i < n; i += period {
		x[i] = amp
		if i > 0 {
			x[i-1] = amp / 4
		}
		if i+1 < n {
			x[i+1] = amp / 4
		}
	}
	return x
}

// SpikeRecording builds a 12-lead waveform with the same spike train on
// every lead.
func SpikeRecording(t testing.TB, rate, n, offset, period int) *waveform.Waveform {
	t.Helper()
	leads := make([][]float64, waveform.LeadCount)
	for i := range leads {
		leads[i] = SpikeTrain(n, offset, period, 1)
	}
	w, err := waveform.New(rate, leads)
	if err != nil {
		t.Fatalf("spike recording: %v", err)
	}
	return w
}

// Synthetic builds a deterministic synthetic 12-lead recording.
func Synthetic(t testing.TB, rate int, seconds, bpm float64) *waveform.Waveform {
	t.Helper()
	w, err := waveform.Synthesize(waveform.SynthOptions{Rate: rate, Seconds: seconds, HeartRate: bpm})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	return w
}

// CSV renders w as a headed CSV file, one column per lead.
func CSV(w *waveform.Waveform) string {
	var b strings.Builder
	b.WriteString(strings.Join(w.Names(), ","))
	b.WriteByte('\n')
	leads := w.Leads()
	for i := 0; i < w.Len(); i++ {
		for l, lead := range leads {
			if l > 0 {
				b.WriteByte(',')
			}
			v := 0.0
			if i < len(lead) {
				v = lead[i]
			}
			fmt.Fprintf(&b, "%g", v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// DecodeBody unmarshals a recorded JSON response into v.
func DecodeBody(t testing.TB, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
