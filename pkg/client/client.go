// Package client is a Go client for the kektormatch HTTP API.
//
// It covers graph editing (nodes, edges, imports, traversal), subgraph
// matching, attribute clustering and polling of asynchronous tasks.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sanonone/kektormatch/pkg/cluster"
	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/sanonone/kektormatch/pkg/match"
)

// --- Custom Errors ---

// APIError represents an error returned by the API (status >= 400).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// --- JSON Response Structs ---

type idResponse struct {
	ID uint64 `json:"id"`
}

type idsResponse struct {
	IDs []uint64 `json:"ids"`
}

// ImportStats reports what an import created.
type ImportStats struct {
	Nodes int    `json:"nodes"`
	Edges int    `json:"edges"`
	Error string `json:"error,omitempty"`
}

// MatchResult is a matching outcome. Mappings holds one dictionary per
// subgraph, oriented from the first node set to the second.
type MatchResult struct {
	match.Result
	Mappings     []map[match.NodeID]match.NodeID `json:"mappings"`
	PersistError string                          `json:"persist_error,omitempty"`
}

// ClusterResult pairs every clustered node id with its assignment.
type ClusterResult struct {
	cluster.Result
	NodeIDs      []uint64 `json:"node_ids"`
	PersistError string   `json:"persist_error,omitempty"`
}

// Task represents an asynchronous operation on the server.
type Task struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	Status          string          `json:"status"`
	ProgressMessage string          `json:"progress_message,omitempty"`
	Error           string          `json:"error,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`

	client *Client // Reference to the client for polling.
}

type taskResponse struct {
	TaskID string `json:"task_id"`
}

// --- Client ---

// Client talks to one kektormatch server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client for baseURL, e.g. "http://localhost:9191". An empty
// apiKey sends no Authorization header.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// do executes one request and returns the body of a successful response.
func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		if json.Unmarshal(respBody, &errResp) == nil && errResp["error"] != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp["error"]}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}

// jsonRequest marshals payload, sends it and decodes the response into out.
func (c *Client) jsonRequest(ctx context.Context, method, endpoint string, payload, out any) error {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}
	respBody, err := c.do(ctx, method, endpoint, "application/json", reqBody)
	if err != nil {
		return err
	}
	if out == nil || respBody == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("invalid JSON response for %s %s: %w", method, endpoint, err)
	}
	return nil
}

// --- Graph ---

// AddNode creates a node and returns its id. A non-zero id creates or
// replaces that node.
func (c *Client) AddNode(ctx context.Context, id uint64, labels []string, props map[string]string) (uint64, error) {
	payload := map[string]any{"id": id, "labels": labels, "properties": props}
	var resp idResponse
	if err := c.jsonRequest(ctx, http.MethodPost, "/graph/nodes", payload, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// GetNode fetches one node.
func (c *Client) GetNode(ctx context.Context, id uint64) (*engine.Node, error) {
	var n engine.Node
	if err := c.jsonRequest(ctx, http.MethodGet, "/graph/nodes/"+strconv.FormatUint(id, 10), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNodes returns node ids, optionally restricted to one label.
func (c *Client) ListNodes(ctx context.Context, label string) ([]uint64, error) {
	endpoint := "/graph/nodes"
	if label != "" {
		endpoint += "?label=" + url.QueryEscape(label)
	}
	var resp idsResponse
	if err := c.jsonRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// PatchNode merges set into the node's properties and removes the given keys.
func (c *Client) PatchNode(ctx context.Context, id uint64, set map[string]string, remove []string) (*engine.Node, error) {
	payload := map[string]any{"set": set, "remove": remove}
	var n engine.Node
	if err := c.jsonRequest(ctx, http.MethodPatch, "/graph/nodes/"+strconv.FormatUint(id, 10), payload, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNode removes a node and its edges.
func (c *Client) DeleteNode(ctx context.Context, id uint64) error {
	return c.jsonRequest(ctx, http.MethodDelete, "/graph/nodes/"+strconv.FormatUint(id, 10), nil, nil)
}

// AddEdge creates a directed edge and returns its id.
func (c *Client) AddEdge(ctx context.Context, source, target uint64, relType string, props map[string]string) (uint64, error) {
	payload := map[string]any{"source": source, "target": target, "type": relType, "properties": props}
	var resp idResponse
	if err := c.jsonRequest(ctx, http.MethodPost, "/graph/edges", payload, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Edges returns the edges of a node in direction "out" or "in".
func (c *Client) Edges(ctx context.Context, id uint64, direction string) ([]engine.Edge, error) {
	endpoint := fmt.Sprintf("/graph/nodes/%d/edges?direction=%s", id, url.QueryEscape(direction))
	var edges []engine.Edge
	if err := c.jsonRequest(ctx, http.MethodGet, endpoint, nil, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

// DeleteEdge removes one edge.
func (c *Client) DeleteEdge(ctx context.Context, id uint64) error {
	return c.jsonRequest(ctx, http.MethodDelete, "/graph/edges/"+strconv.FormatUint(id, 10), nil, nil)
}

// Traverse returns the node ids reached by q.
func (c *Client) Traverse(ctx context.Context, q engine.GraphQuery) ([]uint64, error) {
	var resp idsResponse
	if err := c.jsonRequest(ctx, http.MethodPost, "/graph/traverse", q, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// Import uploads a graph script, or a class hierarchy CSV when format is
// "csv". On a failed import the returned stats describe what was applied.
func (c *Client) Import(ctx context.Context, format string, r io.Reader) (*ImportStats, error) {
	endpoint := "/graph/import"
	contentType := "text/plain"
	if format != "" {
		endpoint += "?format=" + url.QueryEscape(format)
		if format == "csv" {
			contentType = "text/csv"
		}
	}
	respBody, err := c.do(ctx, http.MethodPost, endpoint, contentType, r)
	if err != nil {
		return nil, err
	}
	var stats ImportStats
	if err := json.Unmarshal(respBody, &stats); err != nil {
		return nil, fmt.Errorf("invalid JSON response for Import: %w", err)
	}
	return &stats, nil
}

// --- Matching and clustering ---

// MatchOptions tunes a single match request.
type MatchOptions struct {
	Persist bool
	// Threshold overrides the server default when non-nil.
	Threshold *float64
}

func matchPayload(a, b []uint64, opts MatchOptions) map[string]any {
	payload := map[string]any{"nodes_a": a, "nodes_b": b, "persist": opts.Persist}
	if opts.Threshold != nil {
		payload["threshold"] = *opts.Threshold
	}
	return payload
}

// Match compares the subgraphs induced by a and b and waits for the result.
func (c *Client) Match(ctx context.Context, a, b []uint64, opts MatchOptions) (*MatchResult, error) {
	var res MatchResult
	if err := c.jsonRequest(ctx, http.MethodPost, "/match", matchPayload(a, b, opts), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// MatchAsync starts a match on the server and returns its task.
func (c *Client) MatchAsync(ctx context.Context, a, b []uint64, opts MatchOptions) (*Task, error) {
	return c.startTask(ctx, "/match?async=true", matchPayload(a, b, opts))
}

// Cluster groups the given nodes into at most k clusters.
func (c *Client) Cluster(ctx context.Context, ids []uint64, k int, persist bool) (*ClusterResult, error) {
	payload := map[string]any{"node_ids": ids, "k": k, "persist": persist}
	var res ClusterResult
	if err := c.jsonRequest(ctx, http.MethodPost, "/cluster", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ClusterLabel clusters every node carrying label.
func (c *Client) ClusterLabel(ctx context.Context, label string, k int, persist bool) (*ClusterResult, error) {
	payload := map[string]any{"label": label, "k": k, "persist": persist}
	var res ClusterResult
	if err := c.jsonRequest(ctx, http.MethodPost, "/cluster/label", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- System ---

// AOFRewrite compacts the server's append-only file.
func (c *Client) AOFRewrite(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodPost, "/system/aof-rewrite", nil, nil)
}

// --- Tasks ---

func (c *Client) startTask(ctx context.Context, endpoint string, payload any) (*Task, error) {
	var resp taskResponse
	if err := c.jsonRequest(ctx, http.MethodPost, endpoint, payload, &resp); err != nil {
		return nil, err
	}
	return &Task{ID: resp.TaskID, Status: "started", client: c}, nil
}

// GetTaskStatus retrieves the status of a long-running task.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	if err := c.jsonRequest(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &task); err != nil {
		return nil, err
	}
	task.client = c
	return &task, nil
}

// Refresh updates the task with its latest status from the server.
func (t *Task) Refresh(ctx context.Context) error {
	if t.client == nil {
		return fmt.Errorf("task %s has no associated client", t.ID)
	}
	updated, err := t.client.GetTaskStatus(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Kind = updated.Kind
	t.Status = updated.Status
	t.ProgressMessage = updated.ProgressMessage
	t.Error = updated.Error
	t.Result = updated.Result
	return nil
}

// Wait blocks until the task finishes, polling every interval.
func (t *Task) Wait(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for task %s: %w", t.ID, ctx.Err())
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				return err
			}
			switch t.Status {
			case "completed":
				return nil
			case "failed":
				return fmt.Errorf("task %s failed with error: %s", t.ID, t.Error)
			case "running", "started":
				// Continue waiting.
			default:
				return fmt.Errorf("unknown task status: %s", t.Status)
			}
		}
	}
}

// MatchResult decodes the result of a completed match task.
func (t *Task) MatchResult() (*MatchResult, error) {
	if t.Status != "completed" {
		return nil, fmt.Errorf("task %s is %s", t.ID, t.Status)
	}
	var res MatchResult
	if err := json.Unmarshal(t.Result, &res); err != nil {
		return nil, fmt.Errorf("decode match result: %w", err)
	}
	return &res, nil
}
