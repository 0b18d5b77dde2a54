package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sejf-plikow/internal/database"
	"sejf-plikow/internal/models"
	"sejf-plikow/internal/service"
)

// @Summary      Query the audit trail
// @Description  Lists audit events newest-first, filterable by time range, action, outcome, and actor substring.
// @Tags         admin
// @Produce      json
// @Param        from     query  string  false  "RFC 3339 lower bound"
// @Param        to       query  string  false  "RFC 3339 upper bound"
// @Param        action   query  string  false  "Audit action"
// @Param        outcome  query  string  false  "SUCCESS, FAILED, DENIED or ERROR"
// @Param        actor    query  string  false  "Actor username substring"
// @Success      200  {array}  models.AuditEvent
// @Router       /admin/audit [get]
func (s *Server) ListAuditHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := database.AuditFilter{
		Action:        models.AuditAction(query.Get("action")),
		Outcome:       models.AuditOutcome(query.Get("outcome")),
		ActorContains: query.Get("actor"),
	}

	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid 'from' timestamp")
			return
		}
		filter.From = from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid 'to' timestamp")
			return
		}
		filter.To = to
	}

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if pageSize < 1 || pageSize > 500 {
		pageSize = 100
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	events, err := s.store.ListAuditEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("audit query failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to query audit trail")
		return
	}

	respondJSON(w, http.StatusOK, events)
}

type UpdateRoleRequest struct {
	Role string `json:"role" example:"premium"`
}

// @Summary      Change a user's role
// @Description  Admin-only role mutation. Promoting a second user to admin is rejected; the admin role is a singleton.
// @Tags         admin
// @Accept       json
// @Param        userID             path  int                true  "Target user ID"
// @Param        updateRoleRequest  body  UpdateRoleRequest  true  "New role"
// @Success      200  {string}  string "Role updated"
// @Failure      409  {string}  string "An admin already exists"
// @Router       /admin/users/{userID}/role [patch]
func (s *Server) UpdateUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := s.auths.ChangeRole(r.Context(), claims, userID, role, requestMeta(r)); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, database.ErrAdminExists):
			respondError(w, http.StatusConflict, "an admin already exists")
		default:
			s.logger.Error("role change failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "role change failed")
		}
		return
	}

	respondMessage(w, http.StatusOK, "role updated")
}
