package main

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const liveWriteTimeout = 5 * time.Second

// handleLive streams a snapshot of the caller's game after every change,
// which includes each countdown tick. The stream ends with the game.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	quiz, ok := s.quiz(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// Nothing is read from the client; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	updates, unsubscribe := quiz.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "game replaced")
				return
			}
			if err := s.writeSnapshot(ctx, conn, newGameView(snap)); err != nil {
				s.logger.Debug("live write failed", zap.Error(err))
				return
			}
			if snap.State.Terminal() {
				conn.Close(websocket.StatusNormalClosure, "game over")
				return
			}
		}
	}
}

func (s *Server) writeSnapshot(ctx context.Context, conn *websocket.Conn, view gameView) error {
	ctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, view)
}
