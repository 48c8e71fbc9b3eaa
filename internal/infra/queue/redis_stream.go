package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxStreamLen caps each stream so a stalled consumer group cannot grow Redis
// without bound. Trimming is approximate (XADD MAXLEN ~).
const maxStreamLen = 10000

// readBatchSize bounds one XREADGROUP call.
const readBatchSize = 64

const payloadField = "payload"

// RedisStreamBroker implements Broker on Redis Streams. Each topic is a
// stream; each consumer group tracks its own delivery cursor, so the fetcher
// and embedder progress independently.
type RedisStreamBroker struct {
	client *redis.Client

	mu     sync.Mutex
	groups map[string]struct{}
}

// NewRedisStreamBroker wraps an existing Redis client.
func NewRedisStreamBroker(client *redis.Client) *RedisStreamBroker {
	return &RedisStreamBroker{
		client: client,
		groups: make(map[string]struct{}),
	}
}

func (b *RedisStreamBroker) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{payloadField: string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Consume reads entries not yet delivered to the group. Entries delivered to
// a consumer that died before acking stay in the group's pending list and are
// never reclaimed here; the database poll re-discovers that work, so a
// stranded wake-up costs latency, not loss.
func (b *RedisStreamBroker) Consume(ctx context.Context, topic, group, consumer string, block time.Duration) ([]Message, error) {
	if err := b.ensureGroup(ctx, topic, group); err != nil {
		return nil, err
	}

	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{topic, ">"},
		Count:    readBatchSize,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s as %s: %w", topic, group, err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			raw, ok := entry.Values[payloadField].(string)
			if !ok {
				// Malformed entry; ack it away so it cannot wedge the group.
				_ = b.client.XAck(ctx, topic, group, entry.ID).Err()
				continue
			}
			messages = append(messages, Message{ID: entry.ID, Payload: []byte(raw)})
		}
	}
	return messages, nil
}

func (b *RedisStreamBroker) Ack(ctx context.Context, topic, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := b.client.XAck(ctx, topic, group, ids...).Err(); err != nil {
		return fmt.Errorf("ack on %s: %w", topic, err)
	}
	return nil
}

func (b *RedisStreamBroker) Close() error {
	return b.client.Close()
}

// ensureGroup creates the consumer group once per process. MKSTREAM creates
// the stream too, so consumers can start before the first publish.
func (b *RedisStreamBroker) ensureGroup(ctx context.Context, topic, group string) error {
	key := topic + "/" + group

	b.mu.Lock()
	_, done := b.groups[key]
	b.mu.Unlock()
	if done {
		return nil
	}

	err := b.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", group, topic, err)
	}

	b.mu.Lock()
	b.groups[key] = struct{}{}
	b.mu.Unlock()
	return nil
}
