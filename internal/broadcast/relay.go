package broadcast

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"absensi/internal/logging"
)

const defaultChannel = "absensi:events"

// envelope tags a relayed payload with the instance that published it so
// the origin does not deliver it twice.
type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay shares hub events between instances over redis pub/sub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	log     logging.Logger
}

var _ Forwarder = (*RedisRelay)(nil)

// NewRedisRelay builds a relay on channel.
func NewRedisRelay(client *redis.Client, channel string, log logging.Logger) *RedisRelay {
	if channel == "" {
		channel = defaultChannel
	}
	if log == nil {
		log = logging.Discard()
	}
	return &RedisRelay{client: client, channel: channel, origin: uuid.NewString(), log: log}
}

// Forward publishes payload for the other instances.
func (r *RedisRelay) Forward(ctx context.Context, payload []byte) error {
	data, err := json.Marshal(envelope{Origin: r.origin, Payload: payload})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run hands payloads relayed by other instances to hub.Receive until ctx
// is cancelled.
func (r *RedisRelay) Run(ctx context.Context, hub *Hub) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.log.Info("broadcast relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			payload, ok := r.decode(msg.Payload)
			if ok {
				hub.Receive(payload)
			}
		}
	}
}

func (r *RedisRelay) decode(s string) ([]byte, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		r.log.Warn("relay message dropped", "err", err)
		return nil, false
	}
	if env.Origin == r.origin || len(env.Payload) == 0 {
		return nil, false
	}
	return env.Payload, true
}
