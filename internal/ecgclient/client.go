// Package ecgclient talks to the remote upload and classification services.
// Responses are decoded and handed back as-is; nothing is validated or
// retried.
package ecgclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/ecgscope/internal/httputil"
	"github.com/banshee-data/ecgscope/internal/monitoring"
	"github.com/banshee-data/ecgscope/internal/waveform"
)

const (
	UploadPath   = "/api/upload-ecg"
	ClassifyPath = "/api/classify-ecg"

	// maxResponseBytes bounds how much of a reply is read.
	maxResponseBytes = 64 << 20
)

// ErrUpstreamFailure is matched by every error caused by the remote side.
var ErrUpstreamFailure = errors.New("upstream failure")

// ErrNotConfigured is returned when no base URL was given.
var ErrNotConfigured = errors.New("remote service not configured")

var logger = monitoring.Component("ecgclient")

// UpstreamError carries the remote status and raw message.
type UpstreamError struct {
	Op         string
	StatusCode int // 0 for transport errors
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamFailure }

// Prediction is one ranked condition.
type Prediction struct {
	Condition   string  `json:"condition"`
	Probability float64 `json:"probability"`
	Confidence  string  `json:"confidence,omitempty"`
}

// Classification is the classifier's reply. Raw keeps the body exactly as
// received for forwarding.
type Classification struct {
	PrimaryDiagnosis string          `json:"primary_diagnosis,omitempty"`
	Predictions      []Prediction    `json:"predictions"`
	IsAbnormal       bool            `json:"is_abnormal"`
	ModelUsed        json.RawMessage `json:"model_used,omitempty"`
	Raw              json.RawMessage `json:"-"`
}

// UploadData is the parsed recording returned by the upload service.
type UploadData struct {
	Leads          [][]float64 `json:"leads"`
	Duration       float64     `json:"duration"`
	SamplingRate   int         `json:"sampling_rate"`
	LeadNames      []string    `json:"lead_names"`
	SamplesPerLead int         `json:"samples_per_lead"`
}

// Waveform builds a waveform from the uploaded data.
func (d *UploadData) Waveform() (*waveform.Waveform, error) {
	return waveform.New(d.SamplingRate, d.Leads)
}

type uploadReply struct {
	Message string     `json:"message"`
	Data    UploadData `json:"data"`
}

type classifyRequest struct {
	ECGData      [][]float64 `json:"ecg_data"`
	SamplingRate int         `json:"sampling_rate"`
}

// Client calls a remote ECG backend rooted at BaseURL.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// New returns a client for baseURL. A nil HTTP client selects
// http.DefaultClient.
func New(baseURL string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: c}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Upload posts a recording file as multipart {ecg_file, sampling_rate}.
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader, rate int) (*UploadData, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("ecg_file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.WriteField("sampling_rate", strconv.Itoa(rate)); err != nil {
		return nil, fmt.Errorf("write sampling_rate: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.do(req, "upload")
	if err != nil {
		return nil, err
	}
	var reply uploadReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, &UpstreamError{Op: "upload", Message: fmt.Sprintf("decode reply: %v", err)}
	}
	logger.Printf("uploaded %s: %d leads at %d Hz", filename, len(reply.Data.Leads), reply.Data.SamplingRate)
	return &reply.Data, nil
}

// Classify posts every lead of w as {ecg_data, sampling_rate}.
func (c *Client) Classify(ctx context.Context, w *waveform.Waveform) (*Classification, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if w == nil || w.Len() == 0 {
		return nil, fmt.Errorf("classify: %w", waveform.ErrInvalidInput)
	}

	payload, err := json.Marshal(classifyRequest{ECGData: w.Leads(), SamplingRate: w.Rate()})
	if err != nil {
		return nil, fmt.Errorf("encode classify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ClassifyPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "classify")
	if err != nil {
		return nil, err
	}
	var out Classification
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &UpstreamError{Op: "classify", Message: fmt.Sprintf("decode reply: %v", err)}
	}
	out.Raw = json.RawMessage(body)
	logger.Printf("classified: %q (%d predictions)", out.PrimaryDiagnosis, len(out.Predictions))
	return &out, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf("read reply: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} when present, else the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
