package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/spell-duel-backend/internal/session"
	"github.com/DoyleJ11/spell-duel-backend/internal/types"
)

// Handler upgrades /ws requests. An optional ?name= sets the display name up
// front; otherwise the first create or join names the connection.
func Handler(sm *session.Manager, opts Options, log *zap.Logger) http.HandlerFunc {
	opts = opts.withDefaults()
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer wsConn.Close(websocket.StatusNormalClosure, "bye")

		c := &conn{
			id:   uuid.NewString(),
			ws:   wsConn,
			out:  make(chan types.Outbound, opts.OutboxSize),
			opts: opts,
		}
		c.log = log.With(zap.String("conn", c.id))

		if err := sm.Connect(c.id, r.URL.Query().Get("name"), c.out); err != nil {
			c.log.Error("register", zap.Error(err))
			wsConn.Close(websocket.StatusInternalError, "register failed")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			c.writeLoop(ctx)
			// a dead writer means a dead socket; unblock the reader
			cancel()
		}()

		defer func() {
			// no sends reach the outbox once Disconnect returns
			sm.Disconnect(c.id)
			close(c.out)
			<-writerDone
			cancel()
		}()

		for {
			data, err := c.read(ctx)
			if err != nil {
				if !normalClose(err) {
					c.log.Debug("read ended", zap.Error(err))
				}
				return
			}

			in, err := types.ParseInbound(data)
			if err != nil {
				sm.Malformed(c.id, err)
				continue
			}
			sm.Handle(ctx, c.id, in)
		}
	}
}
