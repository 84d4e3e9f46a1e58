package broadcast

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/spell-duel-backend/internal/registry"
	"github.com/DoyleJ11/spell-duel-backend/internal/types"
	"github.com/DoyleJ11/spell-duel-backend/pkg/metrics"
)

// Broadcaster fans events out to connections through the registry. It never
// blocks: a message for a departed or saturated connection is dropped.
type Broadcaster struct {
	reg *registry.Registry
	log *zap.Logger
}

func New(reg *registry.Registry, log *zap.Logger) *Broadcaster {
	return &Broadcaster{reg: reg, log: log}
}

// Broadcast delivers msg to every connection attached to room and returns how
// many accepted it.
func (b *Broadcaster) Broadcast(room string, msg types.Outbound) int {
	delivered := 0
	for _, id := range b.reg.Attached(room) {
		if b.Send(id, msg) {
			delivered++
		}
	}
	return delivered
}

func (b *Broadcaster) Send(id string, msg types.Outbound) bool {
	if b.reg.Send(id, msg) {
		return true
	}
	metrics.DroppedMessages.Inc()
	b.log.Debug("message dropped", zap.String("conn", id), zap.String("type", msg.Type()))
	return false
}
