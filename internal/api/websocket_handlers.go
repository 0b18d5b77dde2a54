package api

import (
	"net/http"

	"go.uber.org/zap"

	"sejf-plikow/internal/access"
	"sejf-plikow/internal/auth"
	"sejf-plikow/internal/models"
	"sejf-plikow/internal/websocket"
)

// ServeWsHandler upgrades an admin connection onto the live audit feed.
// The access cookie is verified here directly because the upgrade happens
// outside the normal middleware chain.
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(accessCookieName)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	claims, err := auth.VerifyAccessToken(cookie.Value, s.config.JWT.Secret)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if err := access.RequireRole(claims.Role, models.RoleAdmin); err != nil {
		s.recordAccessDenied(r, claims, "role", nil)
		respondError(w, http.StatusForbidden, "not permitted")
		return
	}

	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := websocket.NewClient(s.wsHub, conn, claims.UserID)
	s.wsHub.Register <- client

	go client.ReadPump()
	go client.WritePump()
}
