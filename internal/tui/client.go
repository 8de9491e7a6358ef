package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fentz26/pacer/internal/decay"
	"github.com/fentz26/pacer/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the pacer API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// Momentum fetches today's pace
func (c *Client) Momentum() (*MomentumView, error) {
	var m MomentumView
	if err := c.get("/momentum", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListTasks fetches tasks, optionally filtered by status
func (c *Client) ListTasks(status string) ([]models.Task, error) {
	path := "/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var tasks []models.Task
	if err := c.get(path, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Groups fetches the backlog grouped by client
func (c *Client) Groups() ([]decay.ClientGroup, error) {
	var groups []decay.ClientGroup
	if err := c.get("/backlog/groups", &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Aging fetches the backlog aging report
func (c *Client) Aging() (*decay.AgingReport, error) {
	var report decay.AgingReport
	if err := c.get("/backlog/aging", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// TaskEvents fetches a task's audit history
func (c *Client) TaskEvents(id string) ([]models.TaskEvent, error) {
	var events []models.TaskEvent
	if err := c.get("/tasks/"+id+"/events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CreateTask adds a backlog task and returns it
func (c *Client) CreateTask(title, client string, effort int) (*models.Task, error) {
	req := map[string]any{
		"title":           title,
		"client_name":     client,
		"effort_estimate": effort,
		"actor":           "tui",
	}
	var task models.Task
	if err := c.post("/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Promote moves a task one step forward
func (c *Client) Promote(id string) (*models.Task, error) {
	return c.step(id, "promote")
}

// Demote moves a task one step back
func (c *Client) Demote(id string) (*models.Task, error) {
	return c.step(id, "demote")
}

func (c *Client) step(id, action string) (*models.Task, error) {
	var task models.Task
	if err := c.post("/tasks/"+id+"/"+action, map[string]string{"actor": "tui"}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Archive sends a task to the graveyard
func (c *Client) Archive(id string) error {
	return c.post("/tasks/"+id+"/archive", map[string]string{"reason": string(models.ArchiveManual)}, nil)
}

// RunDecay triggers an auto-decay sweep
func (c *Client) RunDecay() (*decay.DecayResult, error) {
	var result decay.DecayResult
	if err := c.post("/backlog/decay", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *Client) post(path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API error: %s", apiErr.Error)
		}
		return fmt.Errorf("API error: %s", string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
