// Package backend is the HTTP/SSE client for the pipeline backend service.
// It covers the streaming run surface (start, stream, status) and the
// individually callable step endpoints used by the legacy path.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ideaforge/ideaforge/internal/prd"
)

const (
	defaultBaseURL      = "http://127.0.0.1:8000"
	defaultStartTimeout = 30 * time.Second
	healthTimeout       = 5 * time.Second
)

// Client talks to the backend service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	startTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithStartTimeout bounds the initial start-run call. When the call does not
// complete within this window the caller falls back to the legacy path.
func WithStartTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.startTimeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a backend client. An empty baseURL falls back to the local
// development server address.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 10 * time.Minute},
		startTimeout: defaultStartTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HealthStatus is the /health response.
type HealthStatus struct {
	Status          string `json:"status"`
	GeminiAvailable bool   `json:"gemini_available"`
}

// Health checks backend reachability and AI availability. Used only to
// decide fallback eligibility, never to gate a run.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var status HealthStatus
	if err := c.getJSON(ctx, "/health", &status); err != nil {
		return HealthStatus{}, err
	}
	return status, nil
}

// RunRequest starts a streamed pipeline run.
type RunRequest struct {
	IdeaText        string `json:"idea_text"`
	TechPreferences string `json:"tech_preferences,omitempty"`
	GithubToken     string `json:"token,omitempty"`
	GeminiKey       string `json:"gemini_key,omitempty"`
	Private         bool   `json:"private"`
}

type startRunResponse struct {
	RunID string `json:"run_id"`
}

// StartRun asks the backend to begin a run and returns the server-assigned
// run identifier. The call is bounded by the configured start timeout; a
// non-2xx response or timeout is returned as an error so the caller can fall
// back to the legacy path.
func (c *Client) StartRun(ctx context.Context, req RunRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.startTimeout)
	defer cancel()

	var resp startRunResponse
	if err := c.postJSON(ctx, "/api/run", req, &resp); err != nil {
		return "", err
	}
	if resp.RunID == "" {
		return "", fmt.Errorf("backend returned no run id")
	}
	return resp.RunID, nil
}

// RunResult is the authoritative final run data.
type RunResult struct {
	ProjectTitle  string `json:"project_title"`
	RepoURL       string `json:"repo_url"`
	EpicsCount    int    `json:"epics_count"`
	FeaturesCount int    `json:"features_count"`
}

// RunStatus is the /api/run/{id} response, used for reconciliation after a
// connection loss and for post-success enrichment.
type RunStatus struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Result *RunResult `json:"result,omitempty"`
}

// GetRun fetches the server-side status of a run.
func (c *Client) GetRun(ctx context.Context, runID string) (*RunStatus, error) {
	var status RunStatus
	if err := c.getJSON(ctx, "/api/run/"+runID, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

type enhanceIdeaRequest struct {
	GeminiKey       string `json:"gemini_key"`
	AppIdea         string `json:"app_idea"`
	TechPreferences string `json:"tech_preferences,omitempty"`
}

type enhanceIdeaResponse struct {
	Success      bool              `json:"success"`
	EnhancedIdea *prd.EnhancedIdea `json:"enhanced_idea,omitempty"`
	Message      string            `json:"message,omitempty"`
}

// EnhanceIdea calls the standalone idea enhancement endpoint.
func (c *Client) EnhanceIdea(ctx context.Context, geminiKey, appIdea, techPreferences string) (*prd.EnhancedIdea, error) {
	var resp enhanceIdeaResponse
	err := c.postJSON(ctx, "/api/enhance-idea", enhanceIdeaRequest{
		GeminiKey:       geminiKey,
		AppIdea:         appIdea,
		TechPreferences: techPreferences,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.EnhancedIdea == nil {
		return nil, fmt.Errorf("enhance idea failed: %s", resp.Message)
	}
	return resp.EnhancedIdea, nil
}

type generatePRDRequest struct {
	GeminiKey    string           `json:"gemini_key"`
	EnhancedIdea prd.EnhancedIdea `json:"enhanced_idea"`
}

type generatePRDResponse struct {
	Success     bool          `json:"success"`
	PRD         *prd.Document `json:"prd,omitempty"`
	PRDMarkdown string        `json:"prd_markdown,omitempty"`
	Message     string        `json:"message,omitempty"`
}

// GeneratePRD calls the standalone PRD generation endpoint. Returns the PRD
// tree and its markdown rendering.
func (c *Client) GeneratePRD(ctx context.Context, geminiKey string, idea prd.EnhancedIdea) (*prd.Document, string, error) {
	var resp generatePRDResponse
	err := c.postJSON(ctx, "/api/generate-prd", generatePRDRequest{
		GeminiKey:    geminiKey,
		EnhancedIdea: idea,
	}, &resp)
	if err != nil {
		return nil, "", err
	}
	if !resp.Success || resp.PRD == nil {
		return nil, "", fmt.Errorf("generate prd failed: %s", resp.Message)
	}
	markdown := resp.PRDMarkdown
	if markdown == "" {
		markdown = prd.RenderMarkdown(resp.PRD, idea)
	}
	return resp.PRD, markdown, nil
}

type createRepoRequest struct {
	Token       string `json:"token"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
}

// RepoInfo describes a created GitHub repository.
type RepoInfo struct {
	Success  bool   `json:"success"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	CloneURL string `json:"clone_url"`
	FullName string `json:"full_name"`
	Message  string `json:"message,omitempty"`
}

// CreateRepo creates a GitHub repository through the backend.
func (c *Client) CreateRepo(ctx context.Context, token, name, description string, private bool) (*RepoInfo, error) {
	var info RepoInfo
	err := c.postJSON(ctx, "/api/create-repo", createRepoRequest{
		Token:       token,
		Name:        name,
		Description: description,
		Private:     private,
	}, &info)
	if err != nil {
		return nil, err
	}
	if !info.Success {
		return nil, fmt.Errorf("create repo failed: %s", info.Message)
	}
	return &info, nil
}

type pushFilesRequest struct {
	Token         string            `json:"token"`
	RepoFullName  string            `json:"repo_full_name"`
	Files         map[string]string `json:"files"`
	CommitMessage string            `json:"commit_message"`
}

// PushFiles pushes a set of files to an existing repository.
func (c *Client) PushFiles(ctx context.Context, token, repoFullName string, files map[string]string, commitMessage string) error {
	var resp struct {
		Success bool `json:"success"`
	}
	err := c.postJSON(ctx, "/api/push-files", pushFilesRequest{
		Token:         token,
		RepoFullName:  repoFullName,
		Files:         files,
		CommitMessage: commitMessage,
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("push files failed")
	}
	return nil
}

type validateTokenResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ValidateToken checks a GitHub token and returns the associated username.
func (c *Client) ValidateToken(ctx context.Context, token string) (string, error) {
	var resp validateTokenResponse
	err := c.postJSON(ctx, "/api/validate-token", map[string]string{"token": token}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Valid {
		return "", fmt.Errorf("invalid token: %s", resp.Message)
	}
	return resp.Username, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readErrorDetail(resp.Body)
		if detail != "" {
			return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, detail)
		}
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readErrorDetail extracts the {"detail": "..."} body the backend sends on
// errors, preserving the literal detail text for the user.
func readErrorDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Detail == "" {
		return strings.TrimSpace(string(data))
	}
	return body.Detail
}
