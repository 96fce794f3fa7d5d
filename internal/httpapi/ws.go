package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

func (s *server) upgrader() websocket.Upgrader {
	u := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if s.opts.CORS.Enabled {
		origins := s.opts.CORS.Origins
		u.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			for _, allowed := range origins {
				if allowed == "*" || strings.EqualFold(allowed, o) {
					return true
				}
			}
			return o == ""
		}
	}
	return u
}

// handleStatusWS streams LoadingProgress updates as JSON text frames: the
// current value first, then every change. The server closes the socket after
// the terminal update.
//
//	@Summary	Model loading progress stream (WebSocket)
//	@Tags		status
//	@Success	101	{object}	types.LoadingProgress
//	@Router		/api/status/ws [get]
func (s *server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.svc.Subscribe()
	defer unsubscribe()

	// Reader: only used to notice the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case p, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "load finished"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		case <-gone:
			return
		case <-s.opts.BaseContext.Done():
			return
		}
	}
}
