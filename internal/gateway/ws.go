package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// handlePresenceStream upgrades to WebSocket and pushes the viewer's scoped
// presence snapshot once per poll interval. The stream is one-way: client
// frames other than close are ignored.
func (s *Server) handlePresenceStream(w http.ResponseWriter, r *http.Request) {
	viewer := r.URL.Query().Get("viewer")
	if viewer == "" {
		writeError(w, http.StatusBadRequest, "invalid_query", "viewer is required")
		return
	}

	// Resolve once before upgrading so an unknown viewer gets a proper
	// HTTP error instead of an immediate close frame.
	if _, err := s.coord.Presence(r.Context(), viewer); err != nil {
		writeDomainError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.log.Debug().
		Str("viewer", viewer).
		Str("remote", r.RemoteAddr).
		Msg("presence stream opened")

	// Drain client frames so close handshakes and pings are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		view, err := s.coord.Presence(ctx, viewer)
		if err != nil {
			s.log.Warn().Err(err).Str("viewer", viewer).Msg("presence stream read failed")
			return
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(view); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Str("viewer", viewer).Msg("presence stream write failed")
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-done:
			s.log.Debug().Str("viewer", viewer).Msg("presence stream closed by client")
			return
		case <-ticker.C:
		}
	}
}
