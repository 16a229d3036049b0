// Package bulkverify provides access to the remote bulk email verification
// service: list upload, asynchronous verification, categorized result
// download, and account credits.
package bulkverify

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospector-cli/internal/model"
)

// Default base URL for the verification service API.
const defaultBaseURL = "https://api.bulkverifier.io"

// MaxEmailLen is the RFC 5321 limit on a full address.
const MaxEmailLen = 254

// Vendor-reported list states. Anything else is treated as an unexpected
// terminal state by callers.
const (
	ListStatusVerifying  = "Verifying"
	ListStatusProcessing = "Processing"
	ListStatusCompleted  = "Completed"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Client defines the verification service operations used by the pipeline.
type Client interface {
	Login(ctx context.Context) (*TokenPair, error)
	VerifyEmail(ctx context.Context, email string) (*VerifyResult, error)
	UploadList(ctx context.Context, emails []string) (*UploadResponse, error)
	StartVerification(ctx context.Context, slug string) error
	GetStatus(ctx context.Context, slug string) (*StatusResponse, error)
	GetResults(ctx context.Context, slug string) (*ResultFiles, error)
	DownloadCategory(ctx context.Context, fileURL string) ([]string, error)
	DeleteList(ctx context.Context, slug string)
	CheckCredits(ctx context.Context) (map[string]any, error)
}

// TokenPair is the response from POST /api/token/.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// VerifyResult is the outcome of a single-address verification. Raw holds the
// vendor payload as returned; MappedStatus is the normalized outcome derived
// from it.
type VerifyResult struct {
	Raw          map[string]any
	MappedStatus model.VerificationStatus
}

// UploadResponse is the response from POST /api/file/upload/.
type UploadResponse struct {
	Slug        string `json:"slug"`
	TotalEmails int    `json:"total_emails"`
}

// StatusResponse is the response from POST /api/file/status/{slug}/.
type StatusResponse struct {
	Status        string  `json:"status"`
	TotalVerified int     `json:"total_verified"`
	TotalEmails   int     `json:"total_emails"`
	Percentage    float64 `json:"percentage"`
}

// ResultFiles holds the per-category download URLs for a completed list.
type ResultFiles struct {
	ValidFileURL    string `json:"valid_file_url"`
	InvalidFileURL  string `json:"invalid_file_url"`
	CatchallFileURL string `json:"catchall_file_url"`
	UnknownFileURL  string `json:"unknown_file_url"`
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit paces outgoing calls at rps requests per second, so bulk
// workflows respect the vendor's account-level limits.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// httpClient implements Client using net/http. The cached bearer token is the
// only mutable state; tokenMu guards it against concurrent refresh races when
// several pipeline invocations share one client.
type httpClient struct {
	email    string
	password string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter

	tokenMu sync.Mutex
	token   string
}

// NewClient creates a new verification service client.
func NewClient(email, password string, opts ...Option) Client {
	c := &httpClient{
		email:    email,
		password: password,
		baseURL:  defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Login authenticates with the configured credentials and caches the access
// token for subsequent calls.
func (c *httpClient) Login(ctx context.Context) (*TokenPair, error) {
	if c.email == "" || c.password == "" {
		return nil, &AuthError{Message: "credentials not configured"}
	}

	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "bulkverify: rate limit")
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return nil, eris.Wrap(err, "bulkverify: marshal login")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/token/", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "bulkverify: create login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &AuthError{Message: "login request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Message: "read login response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthError{Message: fmt.Sprintf("login rejected: HTTP %d: %s", resp.StatusCode, data)}
	}

	var pair TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, &AuthError{Message: "decode login response", Err: err}
	}
	if pair.Access == "" {
		return nil, &AuthError{Message: "login response missing access token"}
	}

	c.tokenMu.Lock()
	c.token = pair.Access
	c.tokenMu.Unlock()

	return &pair, nil
}

// ensureToken logs in only if no token is cached.
func (c *httpClient) ensureToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	token := c.token
	c.tokenMu.Unlock()
	if token != "" {
		return token, nil
	}
	if _, err := c.Login(ctx); err != nil {
		return "", err
	}
	c.tokenMu.Lock()
	token = c.token
	c.tokenMu.Unlock()
	return token, nil
}

func (c *httpClient) clearToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

// doAuthed executes an authenticated request built by build. On a 401 it
// clears the cached token, re-authenticates exactly once, and retries; if the
// retry fails too, the original 401 propagates. A 429 is surfaced unchanged
// as a RateLimitError.
func (c *httpClient) doAuthed(ctx context.Context, build func(token string) (*http.Request, error)) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "bulkverify: rate limit")
	}

	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	data, status, err := c.execute(build, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		original := &APIError{StatusCode: status, Body: string(data)}

		c.clearToken()
		token, err = c.ensureToken(ctx)
		if err != nil {
			return nil, original
		}
		data, status, err = c.execute(build, token)
		if err != nil || status < 200 || status >= 300 {
			return nil, original
		}
		return data, nil
	}
	if status == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: retryAfter(data), Body: string(data)}
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Body: string(data)}
	}
	return data, nil
}

func (c *httpClient) execute(build func(token string) (*http.Request, error), token string) ([]byte, int, error) {
	req, err := build(token)
	if err != nil {
		return nil, 0, eris.Wrap(err, "bulkverify: build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "bulkverify: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "bulkverify: read response body")
	}
	return data, resp.StatusCode, nil
}

// retryAfter extracts a retry hint from a 429 body, defaulting to one minute.
func retryAfter(body []byte) time.Duration {
	var payload struct {
		RetryAfter int `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter) * time.Second
	}
	return time.Minute
}

func (c *httpClient) postJSON(ctx context.Context, path string, body any) ([]byte, error) {
	var buf []byte
	if body != nil {
		var err error
		buf, err = json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "bulkverify: marshal request")
		}
	}
	return c.doAuthed(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
}

// ValidateEmail checks an address against the simple local@domain shape and
// the overall length limit, without touching the network.
func ValidateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Message: "empty address"}
	}
	if len(email) > MaxEmailLen {
		return &ValidationError{Field: "email", Message: fmt.Sprintf("address exceeds %d characters", MaxEmailLen)}
	}
	if !emailRegex.MatchString(email) {
		return &ValidationError{Field: "email", Message: "malformed address"}
	}
	return nil
}

// VerifyEmail verifies a single address. Syntax is checked locally first; the
// raw vendor payload is returned augmented with the normalized status.
func (c *httpClient) VerifyEmail(ctx context.Context, email string) (*VerifyResult, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	data, err := c.postJSON(ctx, "/api/email/verify/", map[string]string{"email": email})
	if err != nil {
		return nil, err
	}

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "bulkverify: decode verify response")
	}
	return &VerifyResult{Raw: raw, MappedStatus: MapStatus(raw)}, nil
}

// MapStatus normalizes raw vendor fields into a VerificationStatus. The
// catch_all flag wins over everything; an error flag or raw "invalid" status
// maps to invalid; raw "valid" maps to valid; anything else is unknown.
func MapStatus(raw map[string]any) model.VerificationStatus {
	status, _ := raw["status"].(string)
	switch {
	case truthy(raw["catch_all"]):
		return model.StatusCatchall
	case truthy(raw["error"]) || strings.EqualFold(status, "invalid"):
		return model.StatusInvalid
	case strings.EqualFold(status, "valid"):
		return model.StatusValid
	default:
		return model.StatusUnknown
	}
}

// truthy interprets the loosely-typed flags the vendor emits: booleans,
// "True"/"true"/"1" strings, and nonzero numbers.
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		}
		return false
	case float64:
		return val != 0
	default:
		return false
	}
}

// UploadList serializes the addresses as a CSV with an "email" header and
// submits it as a multipart email_file upload.
func (c *httpClient) UploadList(ctx context.Context, emails []string) (*UploadResponse, error) {
	if len(emails) == 0 {
		return nil, &ValidationError{Field: "emails", Message: "empty list"}
	}

	var csvBuf bytes.Buffer
	w := csv.NewWriter(&csvBuf)
	if err := w.Write([]string{"email"}); err != nil {
		return nil, eris.Wrap(err, "bulkverify: write csv header")
	}
	for _, email := range emails {
		if err := w.Write([]string{email}); err != nil {
			return nil, eris.Wrap(err, "bulkverify: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "bulkverify: flush csv")
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("email_file", "emails.csv")
	if err != nil {
		return nil, eris.Wrap(err, "bulkverify: create form file")
	}
	if _, err := part.Write(csvBuf.Bytes()); err != nil {
		return nil, eris.Wrap(err, "bulkverify: write form file")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "bulkverify: close form")
	}

	data, err := c.doAuthed(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/file/upload/", bytes.NewReader(form.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "bulkverify: upload list")
	}

	var resp UploadResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, eris.Wrap(err, "bulkverify: decode upload response")
	}
	if resp.Slug == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Body: "upload response missing slug"}
	}
	if resp.TotalEmails == 0 {
		resp.TotalEmails = len(emails)
	}
	return &resp, nil
}

// StartVerification triggers verification on an already-uploaded list.
func (c *httpClient) StartVerification(ctx context.Context, slug string) error {
	if _, err := c.postJSON(ctx, fmt.Sprintf("/api/file/verify/%s/", slug), nil); err != nil {
		return eris.Wrap(err, fmt.Sprintf("bulkverify: start verification %s", slug))
	}
	return nil
}

// GetStatus performs a single status poll; it does not loop.
func (c *httpClient) GetStatus(ctx context.Context, slug string) (*StatusResponse, error) {
	data, err := c.postJSON(ctx, fmt.Sprintf("/api/file/status/%s/", slug), nil)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("bulkverify: get status %s", slug))
	}
	var resp StatusResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, eris.Wrap(err, "bulkverify: decode status response")
	}
	if resp.Percentage == 0 && resp.TotalEmails > 0 {
		resp.Percentage = float64(resp.TotalVerified) / float64(resp.TotalEmails) * 100
	}
	return &resp, nil
}

// GetResults returns the per-category download URLs. Only meaningful once the
// list status is terminal.
func (c *httpClient) GetResults(ctx context.Context, slug string) (*ResultFiles, error) {
	data, err := c.postJSON(ctx, fmt.Sprintf("/api/file/result/%s/", slug), nil)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("bulkverify: get results %s", slug))
	}
	var resp ResultFiles
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, eris.Wrap(err, "bulkverify: decode results response")
	}
	return &resp, nil
}

// DownloadCategory fetches a category file and extracts the email column,
// accepting either "email" or "Email" as the header. Rows without a usable
// address are skipped.
func (c *httpClient) DownloadCategory(ctx context.Context, fileURL string) ([]string, error) {
	url := fileURL
	if strings.HasPrefix(url, "/") {
		url = c.baseURL + url
	}

	data, err := c.doAuthed(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "bulkverify: download category")
	}

	return parseEmailCSV(data)
}

func parseEmailCSV(data []byte) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "bulkverify: parse category csv")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := -1
	for i, name := range rows[0] {
		if name == "email" || name == "Email" {
			col = i
			break
		}
	}
	body := rows
	if col >= 0 {
		body = rows[1:]
	} else {
		// No recognized header; assume a bare single-column list.
		col = 0
	}

	var emails []string
	for _, row := range body {
		if col >= len(row) {
			continue
		}
		email := strings.TrimSpace(row[col])
		if email == "" || !strings.Contains(email, "@") {
			continue
		}
		emails = append(emails, email)
	}
	return emails, nil
}

// DeleteList removes an uploaded list at the service. It is best-effort by
// contract: the list may already be gone, and a failed delete must never fail
// the surrounding workflow, so errors are logged and swallowed here.
func (c *httpClient) DeleteList(ctx context.Context, slug string) {
	if _, err := c.postJSON(ctx, fmt.Sprintf("/api/file/delete/%s/", slug), nil); err != nil {
		zap.L().Warn("bulkverify: delete list failed",
			zap.String("slug", slug),
			zap.Error(err),
		)
	}
}

// CheckCredits returns the account credit balance. A non-JSON body is
// tolerated and returned raw under the "credits" key.
func (c *httpClient) CheckCredits(ctx context.Context) (map[string]any, error) {
	data, err := c.postJSON(ctx, "/api/check/credits/", nil)
	if err != nil {
		return nil, eris.Wrap(err, "bulkverify: check credits")
	}
	credits := map[string]any{}
	if err := json.Unmarshal(data, &credits); err != nil {
		return map[string]any{"credits": strings.TrimSpace(string(data))}, nil
	}
	return credits, nil
}
