package waveform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/ecgscope/internal/monitoring"
)

// DefaultSamplingRate is used when an upload does not state its rate.
const DefaultSamplingRate = 360

// placeholderLength sizes a zero-filled lead when the file has no data rows.
const placeholderLength = 1000

var csvLog = monitoring.Component("csv")

// ParseCSV decodes a 12-lead CSV recording. The header row names the leads
// (case-insensitive). Leads absent from the header are zero-filled, blank
// or non-numeric cells are dropped, and shorter leads are zero-padded to the
// longest one. A header of bare numbers is read as headerless data with
// leads in column order.
func ParseCSV(r io.Reader, rate int) (*Waveform, error) {
	if rate <= 0 {
		rate = DefaultSamplingRate
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty ECG file: %w", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV rows: %w", err)
	}

	columns := make([]int, LeadCount)
	for i := range columns {
		columns[i] = -1
	}
	found := 0
	for col, name := range header {
		if idx, ok := LeadIndex(name); ok && columns[idx] < 0 {
			columns[idx] = col
			found++
		}
	}

	if found == 0 && numericRow(header) {
		csvLog.Printf("no lead names in header, reading %d columns positionally", len(header))
		rows = append([][]string{header}, rows...)
		for i := 0; i < LeadCount && i < len(header); i++ {
			columns[i] = i
		}
	} else if found == 0 {
		return nil, fmt.Errorf("no recognised lead columns in header %v: %w", header, ErrInvalidInput)
	}

	leads := make([][]float64, LeadCount)
	maxLen := 0
	for lead, col := range columns {
		if col < 0 {
			continue
		}
		values := make([]float64, 0, len(rows))
		for _, row := range rows {
			if col >= len(row) {
				continue
			}
			v, ok := parseCell(row[col])
			if !ok {
				continue
			}
			values = append(values, v)
		}
		leads[lead] = values
		if len(values) > maxLen {
			maxLen = len(values)
		}
	}

	missingLen := len(rows)
	if missingLen == 0 {
		missingLen = placeholderLength
	}
	for lead, col := range columns {
		if col < 0 {
			csvLog.Printf("lead %s not found, zero-filling %d samples", LeadName(lead), missingLen)
			leads[lead] = make([]float64, missingLen)
			if missingLen > maxLen {
				maxLen = missingLen
			}
		}
	}

	for lead := range leads {
		if pad := maxLen - len(leads[lead]); pad > 0 {
			leads[lead] = append(leads[lead], make([]float64, pad)...)
		}
	}

	csvLog.Printf("parsed %d/%d leads, %d samples per lead at %d Hz", found, LeadCount, maxLen, rate)
	return New(rate, leads)
}

func parseCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func numericRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	for _, c := range row {
		if _, ok := parseCell(c); !ok {
			return false
		}
	}
	return true
}
