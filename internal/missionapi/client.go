package missionapi

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/dukerupert/questwalk/internal/model"
)

var (
	// ErrUnavailable marks a call that did not complete: transport errors,
	// non-2xx statuses and undecodable bodies.
	ErrUnavailable = errors.New("mission service unavailable")
	// ErrLocked is returned when the service refuses a change because the
	// mission is locked.
	ErrLocked = errors.New("mission locked")
	// ErrRejected is returned when the service answers but reports
	// success=false for a reason other than a lock.
	ErrRejected = errors.New("mission service rejected request")
	ErrNotFound = errors.New("not found")
)

// Config holds Mission Service connection settings.
type Config struct {
	BaseURL      string
	UserID       string
	Timeout      time.Duration
	LocationSize int
}

// Client talks to the Remote Mission Service. Location bodies are cached
// since they never change during a session; mission bodies carry
// per-task completion and are always fetched fresh, with concurrent
// fetches of the same id collapsed into one request.
type Client struct {
	cfg        Config
	httpClient *http.Client
	validate   *validator.Validate
	locations  *lru.Cache
	group      singleflight.Group
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:5000/api"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserID == "" {
		cfg.UserID = "1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LocationSize == 0 {
		cfg.LocationSize = 256
	}

	locations, err := lru.New(cfg.LocationSize)
	if err != nil {
		return nil, fmt.Errorf("create location cache: %w", err)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		locations:  locations,
		logger:     logger.With("component", "missionapi"),
	}, nil
}

// UserID returns the user the client acts for.
func (c *Client) UserID() string {
	return c.cfg.UserID
}

type missionsResponse struct {
	Missions []model.Mission `json:"missions"`
}

// Missions lists the missions offered to the user.
func (c *Client) Missions(ctx context.Context) ([]model.Mission, error) {
	var resp missionsResponse
	if err := c.do(ctx, http.MethodGet, "/missions/"+url.PathEscape(c.cfg.UserID), nil, &resp); err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	for i := range resp.Missions {
		if err := c.validate.Struct(&resp.Missions[i]); err != nil {
			return nil, fmt.Errorf("list missions: %w: %v", ErrUnavailable, err)
		}
		sortTasks(&resp.Missions[i])
	}
	return resp.Missions, nil
}

// Mission fetches one mission including the server's view of task
// completion.
func (c *Client) Mission(ctx context.Context, id string) (*model.Mission, error) {
	v, err := c.shared(ctx, "mission:"+id, func(ctx context.Context) (any, error) {
		var m model.Mission
		if err := c.do(ctx, http.MethodGet, "/missions/detail/"+url.PathEscape(id), nil, &m); err != nil {
			return nil, err
		}
		if err := c.validate.Struct(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		sortTasks(&m)
		return &m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get mission %s: %w", id, err)
	}
	// Callers get their own copy; the shared result may be handed to
	// several waiters.
	m := *v.(*model.Mission)
	m.Tasks = slices.Clone(m.Tasks)
	return &m, nil
}

type selectRequest struct {
	UserID    string `json:"userId"`
	MissionID string `json:"missionId"`
}

// SelectMission records missionID as the user's choice.
func (c *Client) SelectMission(ctx context.Context, missionID string) (model.SelectResult, error) {
	var res model.SelectResult
	err := c.do(ctx, http.MethodPost, "/missions/select", selectRequest{
		UserID:    c.cfg.UserID,
		MissionID: missionID,
	}, &res)
	if err != nil {
		return res, fmt.Errorf("select mission %s: %w", missionID, err)
	}
	if !res.Success {
		if res.Locked {
			return res, fmt.Errorf("select mission %s: %w", missionID, ErrLocked)
		}
		return res, fmt.Errorf("select mission %s: %w", missionID, ErrRejected)
	}
	return res, nil
}

type swapRequest struct {
	UserID           string `json:"userId"`
	CurrentMissionID string `json:"currentMissionId"`
	NewMissionID     string `json:"newMissionId"`
}

// SwapMission replaces fromID with toID. A locked mission is reported as
// ErrLocked whether the service signals it by status or by body.
func (c *Client) SwapMission(ctx context.Context, fromID, toID string) (model.SwapResult, error) {
	var res model.SwapResult
	err := c.do(ctx, http.MethodPost, "/missions/swap", swapRequest{
		UserID:           c.cfg.UserID,
		CurrentMissionID: fromID,
		NewMissionID:     toID,
	}, &res)
	if err != nil {
		return res, fmt.Errorf("swap mission %s to %s: %w", fromID, toID, err)
	}
	if !res.Success {
		if res.Locked {
			return res, fmt.Errorf("swap mission %s to %s: %w", fromID, toID, ErrLocked)
		}
		return res, fmt.Errorf("swap mission %s to %s: %w: %s", fromID, toID, ErrRejected, res.Message)
	}
	return res, nil
}

type completeRequest struct {
	UserID    string `json:"userId"`
	MissionID string `json:"missionId"`
	TaskID    string `json:"taskId"`
}

// CompleteTask asks the service to confirm taskID of missionID.
func (c *Client) CompleteTask(ctx context.Context, missionID, taskID string) (model.CompletionResult, error) {
	var res model.CompletionResult
	err := c.do(ctx, http.MethodPost, "/tasks/complete", completeRequest{
		UserID:    c.cfg.UserID,
		MissionID: missionID,
		TaskID:    taskID,
	}, &res)
	if err != nil {
		return res, fmt.Errorf("complete task %s: %w", taskID, err)
	}
	return res, nil
}

type resetRequest struct {
	UserID string `json:"userId"`
}

type resetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ResetMission clears the user's missions for a new check-in.
func (c *Client) ResetMission(ctx context.Context) error {
	var res resetResponse
	if err := c.do(ctx, http.MethodPost, "/missions/reset", resetRequest{UserID: c.cfg.UserID}, &res); err != nil {
		return fmt.Errorf("reset missions: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("reset missions: %w: %s", ErrRejected, res.Message)
	}
	return nil
}

// Location fetches a location, serving repeats from the cache.
func (c *Client) Location(ctx context.Context, id string) (*model.Location, error) {
	if v, ok := c.locations.Get(id); ok {
		loc := v.(model.Location)
		return &loc, nil
	}

	v, err := c.shared(ctx, "location:"+id, func(ctx context.Context) (any, error) {
		var loc model.Location
		if err := c.do(ctx, http.MethodGet, "/locations/"+url.PathEscape(id), nil, &loc); err != nil {
			return nil, err
		}
		if err := c.validate.Struct(&loc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.locations.Add(id, loc)
		return loc, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get location %s: %w", id, err)
	}
	loc := v.(model.Location)
	return &loc, nil
}

// Achievements fetches the shared achievement catalog with the user's
// progress.
func (c *Client) Achievements(ctx context.Context) ([]model.AchievementProgress, error) {
	var res []model.AchievementProgress
	if err := c.do(ctx, http.MethodGet, "/achievements", nil, &res); err != nil {
		return nil, fmt.Errorf("get achievements: %w", err)
	}
	return res, nil
}

// shared runs fn once for concurrent callers of key. The call is detached
// from any single caller's cancellation and bounded by the client timeout;
// a caller that gives up returns its own context error without aborting
// the fetch for the others.
func (c *Client) shared(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// do performs one request. A 409 whose body carries locked=true becomes
// ErrLocked, a 404 becomes ErrNotFound, and any other non-2xx status
// becomes ErrUnavailable.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("mission service call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		var probe struct {
			Locked bool `json:"locked"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if json.Unmarshal(raw, &probe) == nil && probe.Locked {
			return ErrLocked
		}
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func sortTasks(m *model.Mission) {
	slices.SortStableFunc(m.Tasks, func(a, b model.Task) int {
		return cmp.Compare(a.Order, b.Order)
	})
}
