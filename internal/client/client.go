// Package client talks to the InsurePal backend on behalf of the UI: it
// uploads a document, then asks a question about it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/insurepal/internal/models"
	"go.uber.org/zap"
)

// Messages returned by UploadAndQuery besides the backend's answer.
const (
	MsgNoDocument   = "Please upload a document."
	MsgNoAnswer     = "No answer found."
	UploadFailedPfx = "Upload failed: "
	QueryFailedPfx  = "Query failed: "
)

// Client is a blocking backend client. Requests have no timeout.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its cookie jar, if any, is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the backend at baseURL with a cookie jar so the
// session namespace survives between calls.
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type uploadResult struct {
	Message   string `json:"message"`
	Namespace string `json:"namespace"`
}

// UploadAndQuery uploads the file at filePath and then asks question against
// it. It always returns a displayable string: the answer or a failure message.
// The two calls are not atomic; a failed query leaves the upload indexed.
func (c *Client) UploadAndQuery(ctx context.Context, filePath, question string) string {
	if filePath == "" {
		return MsgNoDocument
	}
	up, msg := c.upload(ctx, filePath)
	if up == nil {
		return msg
	}
	return c.query(ctx, question, up.Namespace)
}

func (c *Client) upload(ctx context.Context, filePath string) (*uploadResult, string) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, UploadFailedPfx + err.Error()
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, UploadFailedPfx + err.Error()
	}
	if _, err := part.Write(content); err != nil {
		return nil, UploadFailedPfx + err.Error()
	}
	if err := mw.Close(); err != nil {
		return nil, UploadFailedPfx + err.Error()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/", &body)
	if err != nil {
		return nil, UploadFailedPfx + err.Error()
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	status, respBody, err := c.do(req)
	if err != nil {
		return nil, UploadFailedPfx + err.Error()
	}
	if status != http.StatusOK {
		return nil, UploadFailedPfx + respBody
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(respBody), &res); err != nil {
		c.logger.Warn("upload response is not JSON", zap.Error(err))
	}
	c.logger.Debug("upload done", zap.String("file", filePath), zap.String("namespace", res.Namespace))
	return &res, ""
}

func (c *Client) query(ctx context.Context, question, namespace string) string {
	form := url.Values{"question": {question}}
	if namespace != "" {
		form.Set("namespace", namespace)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query/", strings.NewReader(form.Encode()))
	if err != nil {
		return QueryFailedPfx + err.Error()
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	status, respBody, err := c.do(req)
	if err != nil {
		return QueryFailedPfx + err.Error()
	}
	if status != http.StatusOK {
		return QueryFailedPfx + respBody
	}
	var res struct {
		Answer *string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(respBody), &res); err != nil || res.Answer == nil {
		return MsgNoAnswer
	}
	return *res.Answer
}

func (c *Client) do(req *http.Request) (int, string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, string(b), nil
}

// Status fetches the server's /api/v1/status report.
func (c *Client) Status(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.getJSON(ctx, "/api/v1/status", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Documents fetches one page of the upload ledger for namespace.
func (c *Client) Documents(ctx context.Context, namespace string, offset, limit int) ([]*models.UploadRecord, error) {
	q := url.Values{}
	if namespace != "" {
		q.Set("namespace", namespace)
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	var out struct {
		Documents []*models.UploadRecord `json:"documents"`
	}
	if err := c.getJSON(ctx, "/api/v1/documents?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	status, body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", status, body)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
