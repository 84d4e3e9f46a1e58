package ws

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/spell-duel-backend/internal/types"
)

type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	OutboxSize   int
	// OriginPatterns are passed to websocket.Accept; empty means same-origin only.
	OriginPatterns []string
}

func (o Options) withDefaults() Options {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 20 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 16
	}
	return o
}

// conn pairs a socket with the outbox its writer goroutine drains.
type conn struct {
	id   string
	ws   *websocket.Conn
	out  chan types.Outbound
	opts Options
	log  *zap.Logger
}

// read blocks for the next text frame.
func (c *conn) read(ctx context.Context) ([]byte, error) {
	for {
		rctx, cancel := context.WithTimeout(ctx, c.opts.ReadTimeout)
		typ, data, err := c.ws.Read(rctx)
		cancel()
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageText {
			return data, nil
		}
	}
}

// writeLoop sends queued messages and periodic pings until the outbox is
// closed or ctx ends.
func (c *conn) writeLoop(ctx context.Context) {
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()

	for {
		select {
		case msg, ok := <-c.out:
			if !ok {
				return
			}
			payload, err := types.Encode(msg)
			if err != nil {
				c.log.Error("encode", zap.String("type", msg.Type()), zap.Error(err))
				continue
			}
			if err := c.write(ctx, payload); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
			err := c.ws.Ping(pctx)
			cancel()
			if err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *conn) write(ctx context.Context, payload []byte) error {
	wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	return c.ws.Write(wctx, websocket.MessageText, payload)
}

// normalClose reports whether err is an orderly close from the client.
func normalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}
