package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Recording describes one loaded recording.
type Recording struct {
	ID             string    `json:"recording_id"`
	Name           string    `json:"name"`
	SamplingRate   int       `json:"sampling_rate"`
	LeadCount      int       `json:"lead_count"`
	SamplesPerLead int       `json:"samples_per_lead"`
	Duration       float64   `json:"duration_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnalysisRun is one persisted beat analysis.
type AnalysisRun struct {
	RunID         string    `json:"run_id"`
	RecordingID   string    `json:"recording_id"`
	Lead          int       `json:"lead"`
	TotalBeats    int       `json:"total_beats"`
	HeartRate     int       `json:"heart_rate"`
	RRms          int       `json:"rr_interval"`
	HRVms         int       `json:"hrv"`
	QTms          int       `json:"qt_interval"`
	AbnormalBeats int       `json:"abnormal_beats"`
	SignalQuality int       `json:"signal_quality"`
	ParamsJSON    string    `json:"params,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Classification is one stored classifier reply.
type Classification struct {
	ID               string    `json:"classification_id"`
	RecordingID      string    `json:"recording_id"`
	PrimaryDiagnosis string    `json:"primary_diagnosis"`
	IsAbnormal       bool      `json:"is_abnormal"`
	ResultJSON       string    `json:"result"`
	CreatedAt        time.Time `json:"created_at"`
}

// RecordingSummary is a history row: a recording with its latest run and
// classification, when present.
type RecordingSummary struct {
	Recording
	LatestRun            *AnalysisRun `json:"latest_run,omitempty"`
	LatestClassification *string      `json:"latest_diagnosis,omitempty"`
}

// InsertRecording stores r, updating the row in place when the id exists so
// its runs and classifications are kept.
func (db *DB) InsertRecording(ctx context.Context, r *Recording) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO recordings
			(recording_id, name, sampling_rate, lead_count, samples_per_lead, duration_seconds, created_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(recording_id) DO UPDATE SET
			name = excluded.name,
			sampling_rate = excluded.sampling_rate,
			lead_count = excluded.lead_count,
			samples_per_lead = excluded.samples_per_lead,
			duration_seconds = excluded.duration_seconds,
			created_unix_ms = excluded.created_unix_ms`,
		r.ID, r.Name, r.SamplingRate, r.LeadCount, r.SamplesPerLead, r.Duration, r.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert recording %s: %w", r.ID, err)
	}
	return nil
}

// GetRecording loads one recording.
func (db *DB) GetRecording(ctx context.Context, id string) (*Recording, error) {
	row := db.QueryRowContext(ctx, `
		SELECT recording_id, name, sampling_rate, lead_count, samples_per_lead, duration_seconds, created_unix_ms
		FROM recordings WHERE recording_id = ?`, id)

	var r Recording
	var created int64
	err := row.Scan(&r.ID, &r.Name, &r.SamplingRate, &r.LeadCount, &r.SamplesPerLead, &r.Duration, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get recording %s: %w", id, err)
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	return &r, nil
}

// DeleteRecording removes a recording and, by cascade, its runs and
// classifications.
func (db *DB) DeleteRecording(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM recordings WHERE recording_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	return nil
}

// InsertAnalysisRun stores one analysis run.
func (db *DB) InsertAnalysisRun(ctx context.Context, r *AnalysisRun) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO analysis_runs
			(run_id, recording_id, lead, total_beats, heart_rate, rr_interval_ms, hrv_ms,
			 qt_interval_ms, abnormal_beats, signal_quality, params_json, created_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.RecordingID, r.Lead, r.TotalBeats, r.HeartRate, r.RRms, r.HRVms,
		r.QTms, r.AbnormalBeats, r.SignalQuality, nullString(r.ParamsJSON), r.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert analysis run %s: %w", r.RunID, err)
	}
	return nil
}

// AnalysisRuns returns a recording's runs, newest first.
func (db *DB) AnalysisRuns(ctx context.Context, recordingID string) ([]AnalysisRun, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, recording_id, lead, total_beats, heart_rate, rr_interval_ms, hrv_ms,
		       qt_interval_ms, abnormal_beats, signal_quality, params_json, created_unix_ms
		FROM analysis_runs WHERE recording_id = ?
		ORDER BY created_unix_ms DESC, run_id`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("query analysis runs: %w", err)
	}
	defer rows.Close()

	runs := []AnalysisRun{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// InsertClassification stores one classifier reply.
func (db *DB) InsertClassification(ctx context.Context, c *Classification) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO classifications
			(classification_id, recording_id, primary_diagnosis, is_abnormal, result_json, created_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.RecordingID, nullString(c.PrimaryDiagnosis), c.IsAbnormal, c.ResultJSON, c.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert classification %s: %w", c.ID, err)
	}
	return nil
}

// Classifications returns a recording's classifier replies, newest first.
func (db *DB) Classifications(ctx context.Context, recordingID string) ([]Classification, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT classification_id, recording_id, primary_diagnosis, is_abnormal, result_json, created_unix_ms
		FROM classifications WHERE recording_id = ?
		ORDER BY created_unix_ms DESC, classification_id`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("query classifications: %w", err)
	}
	defer rows.Close()

	out := []Classification{}
	for rows.Next() {
		var c Classification
		var diag sql.NullString
		var created int64
		if err := rows.Scan(&c.ID, &c.RecordingID, &diag, &c.IsAbnormal, &c.ResultJSON, &created); err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		c.PrimaryDiagnosis = diag.String
		c.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListRecordings returns up to limit recordings, newest first, each with its
// latest run and diagnosis. A non-positive limit means 100.
func (db *DB) ListRecordings(ctx context.Context, limit int) ([]RecordingSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT recording_id, name, sampling_rate, lead_count, samples_per_lead, duration_seconds, created_unix_ms
		FROM recordings
		ORDER BY created_unix_ms DESC, recording_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}

	out := []RecordingSummary{}
	for rows.Next() {
		var s RecordingSummary
		var created int64
		if err := rows.Scan(&s.ID, &s.Name, &s.SamplingRate, &s.LeadCount, &s.SamplesPerLead, &s.Duration, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		s.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, s)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Follow-up queries run after rows is closed so a single-connection
	// pool is not starved.
	for i := range out {
		run, err := db.latestRun(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].LatestRun = run

		var diag sql.NullString
		err = db.QueryRowContext(ctx, `
			SELECT primary_diagnosis FROM classifications
			WHERE recording_id = ? ORDER BY created_unix_ms DESC LIMIT 1`, out[i].ID).Scan(&diag)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, fmt.Errorf("latest classification: %w", err)
		case diag.Valid:
			d := diag.String
			out[i].LatestClassification = &d
		}
	}
	return out, nil
}

func (db *DB) latestRun(ctx context.Context, recordingID string) (*AnalysisRun, error) {
	row := db.QueryRowContext(ctx, `
		SELECT run_id, recording_id, lead, total_beats, heart_rate, rr_interval_ms, hrv_ms,
		       qt_interval_ms, abnormal_beats, signal_quality, params_json, created_unix_ms
		FROM analysis_runs WHERE recording_id = ?
		ORDER BY created_unix_ms DESC, run_id LIMIT 1`, recordingID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*AnalysisRun, error) {
	var r AnalysisRun
	var params sql.NullString
	var created int64
	err := s.Scan(&r.RunID, &r.RecordingID, &r.Lead, &r.TotalBeats, &r.HeartRate, &r.RRms, &r.HRVms,
		&r.QTms, &r.AbnormalBeats, &r.SignalQuality, &params, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis run: %w", err)
	}
	r.ParamsJSON = params.String
	r.CreatedAt = time.UnixMilli(created).UTC()
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
