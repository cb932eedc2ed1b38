package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"cryptocore/internal/model"
)

// SubscribeCandles feeds normalized candles published on "pub:candle:<instrument>"
// channels into sink. sink returning false means the bar was dropped downstream;
// the subscription keeps going either way. Blocks until ctx is cancelled.
func (s *Store) SubscribeCandles(ctx context.Context, instruments []string, sink func(model.Candle) bool) error {
	channels := make([]string, len(instruments))
	for i, in := range instruments {
		channels[i] = "pub:candle:" + in
	}

	pubsub := s.client.Subscribe(ctx, channels...)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	slog.Info("candle subscription active", "channels", channels)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var c model.Candle
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				slog.Warn("bad candle payload", "channel", msg.Channel, "err", err)
				continue
			}
			sink(c)
		}
	}
}
