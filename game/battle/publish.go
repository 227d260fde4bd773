package battle

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Publisher is the publish half of a pub/sub backend.
type Publisher interface {
	Publish(ctx context.Context, channel, message string) error
}

// Channel returns the pub/sub channel carrying a battle's events.
func Channel(battleID string) string { return "battle:" + battleID }

// PublishSink publishes every event as a JSON Envelope on one channel.
// Publish failures are logged and never interrupt the battle.
type PublishSink struct {
	pub     Publisher
	channel string
	timeout time.Duration
	logger  *zap.Logger
}

func NewPublishSink(pub Publisher, battleID string, logger *zap.Logger) *PublishSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishSink{pub: pub, channel: Channel(battleID), timeout: 2 * time.Second, logger: logger}
}

func (s *PublishSink) Emit(evt BattleEvent) {
	data, err := json.Marshal(Wrap(evt))
	if err != nil {
		s.logger.Warn("encode battle event", zap.String("type", evt.EventType()), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.pub.Publish(ctx, s.channel, string(data)); err != nil {
		s.logger.Warn("publish battle event",
			zap.String("channel", s.channel),
			zap.String("type", evt.EventType()),
			zap.Error(err))
	}
}
