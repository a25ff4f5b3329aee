package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// streamView sends the current view on connect and again whenever it
// changes. Client messages are ignored.
func (s *Server) streamView(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.cfg.AllowedOrigins),
	})
	if err != nil {
		s.logger.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(s.cfg.PushInterval)
	defer ticker.Stop()

	var last []byte
	for {
		view := s.controls.View()
		encoded, err := json.Marshal(view)
		if err != nil {
			s.logger.Error(ctx, "encode view", "error", err)
			conn.Close(websocket.StatusInternalError, "encode failed")
			return
		}

		if !bytes.Equal(encoded, last) {
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = wsjson.Write(wctx, conn, view)
			cancel()
			if err != nil {
				if !errors.Is(err, ctx.Err()) && websocket.CloseStatus(err) == -1 {
					s.logger.Debug(r.Context(), "websocket write failed", "error", err)
				}
				return
			}
			last = encoded
		}

		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

// originPatterns converts allowed origins to host patterns. A wildcard
// accepts any origin.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
