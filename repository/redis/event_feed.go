// Package redis publishes committed account events to per-account Redis
// streams for downstream consumers.
package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/ledger/domain"
)

// FeedName identifies the stream feed projection.
const FeedName = "event_feed"

// appendScript adds one event to the stream unless it was already published,
// keeping the stream in sequence order. Returns 1 when appended, 0 for a
// duplicate and -1 when an earlier sequence is missing.
var appendScript = redislib.NewScript(`
local offset = tonumber(redis.call('GET', KEYS[1]) or '0')
local seq = tonumber(ARGV[1])
if seq <= offset then
	return 0
end
if seq ~= offset + 1 then
	return -1
end
redis.call('XADD', KEYS[2], '*',
	'sequence', ARGV[1],
	'event_id', ARGV[2],
	'event_type', ARGV[3],
	'payload', ARGV[4],
	'metadata', ARGV[5],
	'created_at', ARGV[6])
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

// EventFeed is a projection that mirrors every account stream into a Redis
// stream named <prefix><account id>.
type EventFeed struct {
	client *redislib.Client
	prefix string
}

func NewEventFeed(client *redislib.Client, prefix string) *EventFeed {
	if prefix == "" {
		prefix = "ledger:events:"
	}
	return &EventFeed{client: client, prefix: prefix}
}

func (f *EventFeed) Name() string { return FeedName }

func (f *EventFeed) Project(ctx context.Context, env domain.Envelope) error {
	payload, err := domain.EncodeEvent(env.Event)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "encode event", err)
	}
	metadata := []byte("{}")
	if len(env.Metadata) > 0 {
		if metadata, err = json.Marshal(env.Metadata); err != nil {
			return domain.WrapError(domain.ErrCodeInternal, "encode metadata", err)
		}
	}

	res, err := appendScript.Run(ctx, f.client,
		[]string{f.OffsetKey(env.AggregateID), f.StreamKey(env.AggregateID)},
		strconv.FormatInt(env.Sequence, 10),
		env.ID,
		string(env.Type),
		string(payload),
		string(metadata),
		env.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return domain.StoreError("publish event", err)
	}
	if res < 0 {
		return domain.ErrProjectionGap
	}
	return nil
}

// Offset returns the last sequence published for the account.
func (f *EventFeed) Offset(ctx context.Context, accountID string) (int64, error) {
	offset, err := f.client.Get(ctx, f.OffsetKey(accountID)).Int64()
	if err == redislib.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, domain.StoreError("read feed offset", err)
	}
	return offset, nil
}

func (f *EventFeed) StreamKey(accountID string) string {
	return f.prefix + accountID
}

func (f *EventFeed) OffsetKey(accountID string) string {
	return f.prefix + "offset:" + accountID
}
