package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/objectstore"
	"github.com/MayankTamakuwala/TranscriBelt/internal/summary"
)

// Client calls the ingress HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient targets the ingress at baseURL. A nil httpClient uses one
// without a timeout so large uploads are not cut off.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api client: server URL is required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api client: invalid server URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{base: baseURL, http: httpClient}, nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.base
}

// APIError is a non-2xx reply.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// SubmitFile streams the video at path as a multipart upload.
func (c *Client) SubmitFile(ctx context.Context, path string) (SubmitResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
		header.Set("Content-Type", objectstore.ContentTypeFor(path))
		part, err := mw.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/upload", pr)
	if err != nil {
		pr.Close()
		return SubmitResponse{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var resp SubmitResponse
	err = c.do(req, http.StatusAccepted, &resp)
	return resp, err
}

// Status fetches one job status.
func (c *Client) Status(ctx context.Context, jobID string) (JobStatus, error) {
	var st JobStatus
	err := c.getJSON(ctx, "/status/"+url.PathEscape(jobID), &st)
	return st, err
}

// WaitForTerminal polls Status every interval until the job completes or
// fails. onUpdate sees every status whose stage changed.
func (c *Client) WaitForTerminal(ctx context.Context, jobID string, interval time.Duration, onUpdate func(JobStatus)) (JobStatus, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	lastStage := ""
	for {
		st, err := c.Status(ctx, jobID)
		if err != nil {
			return JobStatus{}, err
		}
		if st.Stage != lastStage {
			lastStage = st.Stage
			if onUpdate != nil {
				onUpdate(st)
			}
		}
		if st.Terminal() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Download copies the named artifact into w and returns the bytes written.
func (c *Client) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/download/"+url.PathEscape(name), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, decodeAPIError(resp)
	}
	return io.Copy(w, resp.Body)
}

// Folders lists one level of the artifact store.
func (c *Client) Folders(ctx context.Context, prefix string) (objectstore.Listing, error) {
	var listing objectstore.Listing
	path := "/folders"
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		path += "?prefix=" + url.QueryEscape(prefix)
	}
	err := c.getJSON(ctx, path, &listing)
	return listing, err
}

// Summary fetches a summary as html or raw text.
func (c *Client) Summary(ctx context.Context, folderID, format string) (SummaryResponse, error) {
	var resp SummaryResponse
	path := "/folders/" + url.PathEscape(folderID) + "/summary"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	err := c.getJSON(ctx, path, &resp)
	return resp, err
}

// Comments lists the comments on a summary.
func (c *Client) Comments(ctx context.Context, folderID string) (CommentsResponse, error) {
	var resp CommentsResponse
	err := c.getJSON(ctx, "/folders/"+url.PathEscape(folderID)+"/comments", &resp)
	return resp, err
}

// AddComment creates a comment.
func (c *Client) AddComment(ctx context.Context, folderID string, req CommentRequest) (summary.Comment, error) {
	var out summary.Comment
	err := c.sendJSON(ctx, http.MethodPost, "/folders/"+url.PathEscape(folderID)+"/comments", req, http.StatusCreated, &out)
	return out, err
}

// EditComment replaces a comment's text.
func (c *Client) EditComment(ctx context.Context, folderID, commentID, text string) (summary.Comment, error) {
	var out summary.Comment
	path := "/folders/" + url.PathEscape(folderID) + "/comments/" + url.PathEscape(commentID)
	err := c.sendJSON(ctx, http.MethodPut, path, CommentRequest{Text: text}, http.StatusOK, &out)
	return out, err
}

// DeleteComment removes a comment and returns those left.
func (c *Client) DeleteComment(ctx context.Context, folderID, commentID string) (CommentsResponse, error) {
	var out CommentsResponse
	path := "/folders/" + url.PathEscape(folderID) + "/comments/" + url.PathEscape(commentID)
	err := c.sendJSON(ctx, http.MethodDelete, path, nil, http.StatusOK, &out)
	return out, err
}

// Health fetches /healthz. A degraded server still returns its body.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return HealthResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	var out HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return HealthResponse{}, fmt.Errorf("decode health: %w", err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, want, out)
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Message = body.Error
	}
	if secs := resp.Header.Get("Retry-After"); secs != "" {
		if d, err := time.ParseDuration(secs + "s"); err == nil {
			apiErr.RetryAfter = d
		}
	}
	return apiErr
}
