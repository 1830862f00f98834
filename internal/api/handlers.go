package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"crew-tracker/internal/api/code"
	"crew-tracker/internal/api/response"
	"crew-tracker/internal/connection"
	"crew-tracker/internal/dashboard"
	"crew-tracker/internal/poller"
	"crew-tracker/internal/tracker"
)

type Handler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

type StaffResponse struct {
	Role    string           `json:"role"`
	Filters []string         `json:"filters"`
	Total   int              `json:"total"`
	Active  int              `json:"active"`
	Staff   []dashboard.Card `json:"staff"`
	State   tracker.State    `json:"state"`
}

// Staff serves the directory list. An unknown ?role= falls back to "all".
func (h *Handler) Staff(c *gin.Context) {
	staff := h.tracker.Staff()
	role := dashboard.ResolveFilter(staff, c.Query("role"))
	filtered := dashboard.Filter(staff, role)

	response.Success(c, StaffResponse{
		Role:    role,
		Filters: dashboard.RoleFilters(staff),
		Total:   len(staff),
		Active:  dashboard.ActiveCount(staff),
		Staff:   dashboard.Cards(filtered),
		State:   h.tracker.State(),
	})
}

type MapResponse struct {
	Markers  []dashboard.Marker `json:"markers"`
	Viewport dashboard.Viewport `json:"viewport"`
	Tracked  int                `json:"tracked"`
	Total    int                `json:"total"`
	State    tracker.State      `json:"state"`
}

func (h *Handler) Map(c *gin.Context) {
	staff := h.tracker.Staff()
	markers := dashboard.Markers(staff)

	response.Success(c, MapResponse{
		Markers:  markers,
		Viewport: dashboard.ComputeViewport(staff),
		Tracked:  len(markers),
		Total:    len(staff),
		State:    h.tracker.State(),
	})
}

type RefreshResponse struct {
	Devices   int           `json:"devices"`
	Positions int           `json:"positions"`
	State     tracker.State `json:"state"`
}

// Refresh refetches both resources and answers once both have settled.
func (h *Handler) Refresh(c *gin.Context) {
	res, err := h.tracker.Refresh(c.Request.Context())
	st := h.tracker.State()
	data := RefreshResponse{
		Devices:   len(res.Devices.Data),
		Positions: len(res.Positions.Data),
		State:     st,
	}

	switch {
	case err == nil:
		response.Success(c, data)
	case errors.Is(err, poller.ErrDisabled):
		response.Fail(c, code.ErrNotConnected, data)
	default:
		msg := st.Error
		if msg == "" {
			msg = err.Error()
		}
		h.logger.Warn("manual refresh failed", "err", err)
		response.FailWithMessage(c, code.ErrTraccar, msg, data)
	}
}

type ConnectionResponse struct {
	Connected  bool                   `json:"connected"`
	Connection *connection.Connection `json:"connection,omitempty"`
	Persisted  *bool                  `json:"persisted,omitempty"`
}

func (h *Handler) GetConnection(c *gin.Context) {
	conn, ok := h.tracker.Holder().Get()
	if !ok {
		response.Success(c, ConnectionResponse{})
		return
	}
	masked := conn.Masked()
	response.Success(c, ConnectionResponse{Connected: true, Connection: &masked})
}

// PutConnection validates and applies new credentials. A store failure
// does not undo the change; it is reported through persisted=false.
func (h *Handler) PutConnection(c *gin.Context) {
	var req connection.Connection
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, code.ErrBind, nil)
		return
	}

	conn, err := h.tracker.Holder().Set(c.Request.Context(), req)
	if connection.IsValidation(err) {
		response.FailWithMessage(c, code.ErrValidation, err.Error(), nil)
		return
	}
	persisted := err == nil
	masked := conn.Masked()
	response.Success(c, ConnectionResponse{Connected: true, Connection: &masked, Persisted: &persisted})
}

func (h *Handler) DeleteConnection(c *gin.Context) {
	persisted := h.tracker.Holder().Clear(c.Request.Context()) == nil
	response.Success(c, ConnectionResponse{Persisted: &persisted})
}

func (h *Handler) Debug(c *gin.Context) {
	conn, ok := h.tracker.Holder().Get()
	response.Success(c, dashboard.Debug(conn, ok, h.tracker.Devices(), h.tracker.Positions(), h.tracker.Staff()))
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"connected": h.tracker.State().Connected,
	})
}
