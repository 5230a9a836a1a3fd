package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/questwalk/internal/achievement"
	"github.com/dukerupert/questwalk/internal/mission"
	"github.com/dukerupert/questwalk/internal/model"
	"github.com/dukerupert/questwalk/internal/navigation"
	"github.com/dukerupert/questwalk/internal/visit"
)

// MissionAPI is the read side of the Mission Service used by the handlers.
type MissionAPI interface {
	Missions(ctx context.Context) ([]model.Mission, error)
	Location(ctx context.Context, id string) (*model.Location, error)
	Achievements(ctx context.Context) ([]model.AchievementProgress, error)
}

type MissionHandler struct {
	controller *mission.Controller
	api        MissionAPI
	visits     *visit.Service
	mailbox    *navigation.Mailbox
	logger     *slog.Logger
	now        func() time.Time
}

func NewMissionHandler(controller *mission.Controller, api MissionAPI, visits *visit.Service, mailbox *navigation.Mailbox, logger *slog.Logger) *MissionHandler {
	return &MissionHandler{
		controller: controller,
		api:        api,
		visits:     visits,
		mailbox:    mailbox,
		logger:     logger.With("component", "handler"),
		now:        time.Now,
	}
}

// activate renders the mission view, consuming whatever the mailbox holds.
func (h *MissionHandler) activate(w http.ResponseWriter, r *http.Request) {
	v, err := h.controller.Activate(r.Context())
	if errors.Is(err, mission.ErrStateConflict) {
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), View: v})
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if v.Mission != nil && !v.Stale {
		h.prefetch(v.Mission)
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *MissionHandler) prefetch(m *model.Mission) {
	if h.visits == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h.visits.Prefetch(ctx, m)
	}()
}

type checkInRequest struct {
	CheckedInAt *time.Time `json:"checkedInAt"`
}

func (h *MissionHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	at := h.now()
	if req.CheckedInAt != nil {
		at = *req.CheckedInAt
	}
	h.mailbox.Post(navigation.CheckIn(at))
	h.activate(w, r)
}

func (h *MissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.activate(w, r)
}

type missionSummary struct {
	model.Mission
	Active     bool `json:"active"`
	Selectable bool `json:"selectable"`
}

type missionListResponse struct {
	Missions        []missionSummary `json:"missions"`
	ActiveMissionID string           `json:"activeMissionId,omitempty"`
	Locked          bool             `json:"locked"`
}

func (h *MissionHandler) List(w http.ResponseWriter, r *http.Request) {
	missions, err := h.api.Missions(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	e, err := h.controller.Progress()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := missionListResponse{
		Missions:        make([]missionSummary, 0, len(missions)),
		ActiveMissionID: e.ActiveMissionID,
		Locked:          e.MissionLocked,
	}
	for _, m := range missions {
		active := m.ID == e.ActiveMissionID
		resp.Missions = append(resp.Missions, missionSummary{
			Mission:    m,
			Active:     active,
			Selectable: active || e.ActiveMissionID == "" || !e.MissionLocked,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type selectRequest struct {
	MissionID string `json:"missionId" validate:"required"`
}

// Select hands the choice to the mission view as a navigation payload; the
// activation that renders the response applies it.
func (h *MissionHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	h.mailbox.Post(navigation.Selection(req.MissionID))
	h.activate(w, r)
}

type swapRequest struct {
	FromID string `json:"fromId" validate:"required"`
	ToID   string `json:"toId" validate:"required"`
}

func (h *MissionHandler) Swap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := h.controller.SwapMission(r.Context(), req.FromID, req.ToID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.activate(w, r)
}

type visitRequest struct {
	Code string `json:"code" validate:"max=128"`
}

// Visit completes a task on site. The confirmed completion travels through
// the mailbox and is merged by the activation that renders the response.
func (h *MissionHandler) Visit(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	var req visitRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	m, err := h.controller.ActiveMission(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	task := m.Task(taskID)
	if task == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "task not found in active mission"})
		return
	}

	e, err := h.controller.Progress()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if e.HasCompleted(taskID) {
		h.activate(w, r)
		return
	}

	_, err = h.visits.Visit(r.Context(), visit.Request{
		MissionID:  m.ID,
		TaskID:     task.ID,
		LocationID: task.LocationID,
		Code:       req.Code,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.activate(w, r)
}

func (h *MissionHandler) Location(w http.ResponseWriter, r *http.Request) {
	loc, err := h.api.Location(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	// The presentation layer never needs the code hash.
	loc.SpecialCodeHash = ""
	writeJSON(w, http.StatusOK, loc)
}

type achievementsResponse struct {
	Counters map[model.Category]int      `json:"counters"`
	Badges   []model.Badge               `json:"badges"`
	Remote   []model.AchievementProgress `json:"remote,omitempty"`
	Warnings []string                    `json:"warnings,omitempty"`
}

// Achievements combines local counters and badges with the service's
// catalog. The service part is optional.
func (h *MissionHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	e, err := h.controller.Progress()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := achievementsResponse{
		Counters: e.AchievementCounters,
		Badges:   achievement.Badges(e.AchievementCounters),
	}
	remote, err := h.api.Achievements(r.Context())
	if err != nil {
		h.logger.Warn("fetch achievements", "error", err)
		resp.Warnings = append(resp.Warnings, "Achievement details are unavailable right now")
	} else {
		resp.Remote = remote
	}
	writeJSON(w, http.StatusOK, resp)
}
