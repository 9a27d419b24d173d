package kelvin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"cargo-kelvin/internal/errdefs"
)

const (
	DefaultTimeout = 60 * time.Second
	FormField      = "solution"
	maxErrorBody   = 4 << 10
)

var Version = "dev"

type Client struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "cargo-kelvin/" + Version,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		// Copy so an injected client is left as the caller configured it.
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// SubmitURL is the endpoint a submit for assignmentID is posted to.
func (c *Client) SubmitURL(assignmentID string) string {
	return c.baseURL + "/api/submits/" + url.PathEscape(assignmentID)
}

// Submit uploads the archive once. It never retries.
func (c *Client) Submit(ctx context.Context, req SubmissionRequest) (*SubmissionResult, error) {
	if strings.TrimSpace(req.Token) == "" {
		return nil, errdefs.Config("submit", "missing API token")
	}
	if strings.TrimSpace(req.AssignmentID) == "" {
		return nil, errdefs.Config("submit", "missing assignment id")
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = "submit.zip"
	}

	body, contentType, err := encodeForm(fileName, req.Archive)
	if err != nil {
		return nil, errdefs.Transport("encode form", err)
	}

	submitURL := c.SubmitURL(req.AssignmentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, body)
	if err != nil {
		return nil, errdefs.Config("submit", "invalid Kelvin URL %q: %v", c.baseURL, err)
	}
	requestID := newRequestID()
	httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-Id", requestID)

	slog.Debug("uploading submit", "url", submitURL, "bytes", len(req.Archive), "request_id", requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errdefs.Transport("submit", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errdefs.Transport("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug("submit rejected", "status", resp.StatusCode, "body", string(data), "request_id", requestID)
		return nil, errdefs.FromStatus("submit", resp.StatusCode, truncate(string(data), maxErrorBody))
	}

	return decodeResult(data), nil
}

func decodeResult(data []byte) *SubmissionResult {
	var sr SubmitResponse
	if err := json.Unmarshal(data, &sr); err != nil || sr.Submit.ID == 0 {
		return &SubmissionResult{Message: strings.TrimSpace(string(data))}
	}
	return &SubmissionResult{
		ID:       sr.Submit.ID,
		URL:      sr.Submit.URL,
		TaskName: sr.Task.Name,
	}
}

func encodeForm(fileName string, archive []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormField, fileName))
	h.Set("Content-Type", "application/zip")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(archive); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
