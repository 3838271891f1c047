package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ecgscope/internal/classify"
	"github.com/banshee-data/ecgscope/internal/db"
	"github.com/banshee-data/ecgscope/internal/ecgclient"
	"github.com/banshee-data/ecgscope/internal/httputil"
	"github.com/banshee-data/ecgscope/internal/monitoring"
	"github.com/banshee-data/ecgscope/internal/playback"
	"github.com/banshee-data/ecgscope/internal/session"
	"github.com/banshee-data/ecgscope/internal/testutil"
	"github.com/banshee-data/ecgscope/internal/timeutil"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

func init() {
	monitoring.SetLogger(nil)
}

var epoch = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	server *Server
	mux    *http.ServeMux
	store  *db.DB
	mock   *httputil.MockHTTPClient
	clock  *timeutil.MockClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mock := httputil.NewMockHTTPClient()
	clock := timeutil.NewMockClock(epoch)
	srv := NewServer(nil,
		WithStore(store),
		WithClassifier(ecgclient.New("http://classifier.test", mock)),
		WithClock(clock),
		WithChartAssets("/assets/"),
	)
	t.Cleanup(srv.Close)
	return &fixture{server: srv, mux: srv.ServeMux(), store: store, mock: mock, clock: clock}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, content, rate string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("ecg_file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	if rate != "" {
		require.NoError(t, mw.WriteField("sampling_rate", rate))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-ecg", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// upload posts a 10 s, 60 bpm spike recording and returns the session id.
func (f *fixture) upload(t *testing.T) string {
	t.Helper()
	csv := testutil.CSV(testutil.SpikeRecording(t, 100, 1000, 50, 100))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, uploadRequest(t, "spikes.csv", csv, "100"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	testutil.DecodeBody(t, rec, &resp)
	return resp.SessionID
}

func ecgBody(leads [][]float64, rate int) map[string]any {
	return map[string]any{"ecg_data": leads, "sampling_rate": rate}
}

// twelveLeads repeats x on every lead.
func twelveLeads(x []float64) [][]float64 {
	leads := make([][]float64, waveform.LeadCount)
	for i := range leads {
		leads[i] = x
	}
	return leads
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/health", nil)

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var got map[string]any
	testutil.DecodeBody(t, rec, &got)
	assert.Equal(t, "healthy", got["status"])
	assert.Equal(t, "remote", got["classification_method"])
	assert.Equal(t, true, got["persistence"])
	assert.Contains(t, got["endpoints"], "upload_ecg")
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/health", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	csv := testutil.CSV(testutil.SpikeRecording(t, 100, 1000, 50, 100))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, uploadRequest(t, "spikes.csv", csv, "100"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	testutil.DecodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 100, resp.Data.SamplingRate)
	assert.Equal(t, 1000, resp.Data.SamplesPerLead)
	assert.Equal(t, 10.0, resp.Data.Duration)
	assert.Len(t, resp.Data.Leads, waveform.LeadCount)
	assert.Equal(t, waveform.LeadNames[:], resp.Data.LeadNames)

	assert.Equal(t, 60, resp.Analysis.HeartRate)
	assert.Equal(t, 1000, resp.Analysis.RRms)
	assert.Equal(t, 10, resp.Analysis.TotalBeats)
	assert.Equal(t, 10, resp.Analysis.PQRSTPoints["R"])
	assert.Equal(t, 0, resp.Analysis.PQRSTPoints["P"])

	_, err := f.server.Sessions().Get(resp.SessionID)
	require.NoError(t, err)

	runs, err := f.store.AnalysisRuns(t.Context(), resp.SessionID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 60, runs[0].HeartRate)
}

func TestUpload_Rejects(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name     string
		filename string
		content  string
		rate     string
		wantErr  string
	}{
		{"no file", "", "", "", "No file provided"},
		{"wrong type", "ecg.pdf", "I,II\n1,2\n", "", "Invalid file type"},
		{"bad rate", "ecg.csv", "I,II\n1,2\n", "fast", "invalid sampling_rate"},
		{"no leads", "ecg.csv", "foo,bar\nx,y\n", "", "Failed to parse ECG file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.mux.ServeHTTP(rec, uploadRequest(t, tt.filename, tt.content, tt.rate))
			testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
			assert.Contains(t, rec.Body.String(), tt.wantErr)
		})
	}
	assert.Equal(t, 0, f.server.Sessions().Len())
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t)
	leads := [][]float64{
		testutil.SpikeTrain(500, 25, 50, 1),
		testutil.SpikeTrain(500, 25, 50, 1),
	}
	rec := f.do(t, http.MethodPost, "/api/analyze-ecg", ecgBody(leads, 100))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep session.Report
	testutil.DecodeBody(t, rec, &rep)
	assert.Equal(t, 120, rep.HeartRate)
	assert.Equal(t, 10, rep.TotalBeats)
	assert.Equal(t, 1, rep.Lead)
	assert.Equal(t, 500, rep.DataPoints)
	assert.Equal(t, 5.0, rep.Duration)
	require.NotNil(t, rep.Analysis)
	assert.Len(t, rep.Analysis.R, 10)
}

func TestAnalyze_BadInput(t *testing.T) {
	f := newFixture(t)
	for name, body := range map[string]any{
		"empty data":   ecgBody(nil, 360),
		"empty leads":  ecgBody([][]float64{{}, {}}, 360),
		"bad json":     `{"ecg_data": [`,
		"missing body": "",
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/analyze-ecg", body)
			testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
		})
	}
}

func TestClassify_Forwards(t *testing.T) {
	f := newFixture(t)
	reply := `{"primary_diagnosis":"Sinus Bradycardia","predictions":[{"condition":"Sinus Bradycardia","probability":0.6,"confidence":"High"}],"is_abnormal":true,"model_used":false}`
	f.mock.Respond(http.StatusOK, reply)

	rec := f.do(t, http.MethodPost, "/api/classify-ecg", ecgBody(twelveLeads([]float64{0, 1, 0}), 360))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, reply, rec.Body.String())
	assert.Equal(t, "/api/classify-ecg", f.mock.Request(0).URL.Path)
}

func TestClassify_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.mock.Respond(http.StatusInternalServerError, `{"error":"model crashed"}`)

	rec := f.do(t, http.MethodPost, "/api/classify-ecg", ecgBody(twelveLeads([]float64{0, 1, 0}), 360))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadGateway)
	assert.Contains(t, rec.Body.String(), "model crashed")
	assert.Equal(t, 1, f.mock.Calls())
}

func TestClassify_RequiresTwelveLeads(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/classify-ecg", ecgBody([][]float64{{0, 1, 0}}, 360))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	assert.Contains(t, rec.Body.String(), "expected 12 leads")
	assert.Equal(t, 0, f.mock.Calls())
}

func newRuleBasedServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(nil, WithClock(timeutil.NewMockClock(epoch)))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassify_RuleBased(t *testing.T) {
	tests := []struct {
		name      string
		period    int
		primary   string
		abnormal  bool
		heartRate int
	}{
		{"normal", 100, classify.NormalSinusRhythm, false, 60},
		{"bradycardia", 150, classify.SinusBradycardia, true, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newRuleBasedServer(t).ServeMux()
			wave := testutil.SpikeRecording(t, 100, 1000, 50, tt.period)

			body, err := json.Marshal(ecgBody(wave.Leads(), 100))
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/classify-ecg", bytes.NewReader(body)))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var got classify.Result
			testutil.DecodeBody(t, rec, &got)
			assert.Equal(t, tt.primary, got.PrimaryDiagnosis)
			assert.Equal(t, tt.abnormal, got.IsAbnormal)
			assert.False(t, got.ModelUsed)
			assert.Equal(t, tt.heartRate, got.Features.HeartRate)
			assert.Len(t, got.Predictions, 5)
		})
	}
}

func TestClassify_RuleBasedRequiresTwelveLeads(t *testing.T) {
	mux := newRuleBasedServer(t).ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/classify-ecg", strings.NewReader(`{"ecg_data":[[1,2]]}`)))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	assert.Contains(t, rec.Body.String(), "expected 12 leads")
}

func TestHealth_RuleBased(t *testing.T) {
	mux := newRuleBasedServer(t).ServeMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var got map[string]any
	testutil.DecodeBody(t, rec, &got)
	assert.Equal(t, "rule_based", got["classification_method"])
	assert.Equal(t, false, got["persistence"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", waveform.ErrInvalidInput), http.StatusBadRequest},
		{session.ErrNoWaveform, http.StatusBadRequest},
		{httputil.ErrBadBody, http.StatusBadRequest},
		{session.ErrNotFound, http.StatusNotFound},
		{db.ErrNotFound, http.StatusNotFound},
		{ecgclient.ErrNotConfigured, http.StatusServiceUnavailable},
		{&ecgclient.UpstreamError{Op: "classify", StatusCode: 500}, http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health?x=1", nil))

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "418")
	assert.Contains(t, lines[0], "/api/health?x=1")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"502"+colorReset, statusCodeColor(502))
	assert.Equal(t, "100", statusCodeColor(100))
}

func TestPlaybackRequestValidate(t *testing.T) {
	neg := -1.0
	zero := int64(0)
	tests := []struct {
		name string
		req  PlaybackRequest
		ok   bool
	}{
		{"empty", PlaybackRequest{}, true},
		{"play", PlaybackRequest{Action: "play"}, true},
		{"seek without time", PlaybackRequest{Action: "seek"}, false},
		{"unknown action", PlaybackRequest{Action: "rewind"}, false},
		{"negative window", PlaybackRequest{WindowSeconds: &neg}, false},
		{"zero speed", PlaybackRequest{SpeedMillis: &zero}, false},
		{"bad loop", PlaybackRequest{Loop: "forever"}, false},
		{"full loop", PlaybackRequest{Loop: playback.LoopFull.String()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, waveform.ErrInvalidInput)
			}
		})
	}
}
