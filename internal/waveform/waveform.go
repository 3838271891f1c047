// Package waveform owns the decoded 12-lead sample arrays, their sampling
// rate and the lead metadata. A Waveform is immutable once built.
package waveform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput reports an empty or missing waveform, or a lead index out
// of range. Callers surface it synchronously and never retry.
var ErrInvalidInput = errors.New("invalid input")

// LeadCount is the number of leads in a standard 12-lead recording.
const LeadCount = 12

// LeadNames lists the standard lead labels in storage order.
var LeadNames = [LeadCount]string{"I", "II", "III", "aVR", "aVL", "aVF", "V1", "V2", "V3", "V4", "V5", "V6"}

// LeadII is the index of lead II, the default rhythm lead.
const LeadII = 1

// LeadName returns the label for lead i, or "lead<i>" outside the standard set.
func LeadName(i int) string {
	if i >= 0 && i < LeadCount {
		return LeadNames[i]
	}
	return fmt.Sprintf("lead%d", i)
}

// LeadIndex resolves a lead label case-insensitively ("avr" matches "aVR").
func LeadIndex(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, n := range LeadNames {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return -1, false
}

// Waveform is an ordered set of leads sharing one sampling rate.
type Waveform struct {
	rate  int
	leads [][]float64
}

// New copies leads into a new Waveform. The rate must be positive and there
// must be between 1 and LeadCount leads with at least one sample overall.
func New(rate int, leads [][]float64) (*Waveform, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("sampling rate must be positive, got %d: %w", rate, ErrInvalidInput)
	}
	if len(leads) == 0 || len(leads) > LeadCount {
		return nil, fmt.Errorf("expected 1..%d leads, got %d: %w", LeadCount, len(leads), ErrInvalidInput)
	}

	total := 0
	cp := make([][]float64, len(leads))
	for i, l := range leads {
		cp[i] = append([]float64(nil), l...)
		total += len(l)
	}
	if total == 0 {
		return nil, fmt.Errorf("waveform has no samples: %w", ErrInvalidInput)
	}
	return &Waveform{rate: rate, leads: cp}, nil
}

// Rate returns the sampling rate in samples per second (0 for nil).
func (w *Waveform) Rate() int {
	if w == nil {
		return 0
	}
	return w.rate
}

// LeadCount returns the number of leads held.
func (w *Waveform) LeadCount() int {
	if w == nil {
		return 0
	}
	return len(w.leads)
}

// Lead returns the samples of lead i. The slice is shared and must be
// treated as read-only.
func (w *Waveform) Lead(i int) ([]float64, error) {
	if w == nil {
		return nil, fmt.Errorf("no waveform loaded: %w", ErrInvalidInput)
	}
	if i < 0 || i >= len(w.leads) {
		return nil, fmt.Errorf("lead index %d out of range [0,%d): %w", i, len(w.leads), ErrInvalidInput)
	}
	return w.leads[i], nil
}

// Sample returns one bounds-checked sample.
func (w *Waveform) Sample(lead, idx int) (float64, error) {
	l, err := w.Lead(lead)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(l) {
		return 0, fmt.Errorf("sample %d out of range for lead %s (%d samples): %w", idx, LeadName(lead), len(l), ErrInvalidInput)
	}
	return l[idx], nil
}

// Len returns the length of the longest lead.
func (w *Waveform) Len() int {
	if w == nil {
		return 0
	}
	n := 0
	for _, l := range w.leads {
		if len(l) > n {
			n = len(l)
		}
	}
	return n
}

// Duration returns Len / Rate in seconds.
func (w *Waveform) Duration() float64 {
	if w == nil || w.rate == 0 {
		return 0
	}
	return float64(w.Len()) / float64(w.rate)
}

// Leads returns a deep copy of every lead, suitable for handing to an
// external service.
func (w *Waveform) Leads() [][]float64 {
	if w == nil {
		return nil
	}
	out := make([][]float64, len(w.leads))
	for i, l := range w.leads {
		out[i] = append([]float64(nil), l...)
	}
	return out
}

// Names returns the labels of the held leads.
func (w *Waveform) Names() []string {
	names := make([]string, w.LeadCount())
	for i := range names {
		names[i] = LeadName(i)
	}
	return names
}
