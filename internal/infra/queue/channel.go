package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// channelBufferSize bounds each topic's in-memory buffer. A full buffer
// drops the publish; consumers recover the work from the database poll.
const channelBufferSize = 256

// ChannelBroker implements Broker on in-process channels, used when no Redis
// host is configured. Consumer groups collapse to a single subscriber per
// topic, which matches the single-process deployment this mode serves.
type ChannelBroker struct {
	mu     sync.Mutex
	topics map[string]chan Message
	nextID int64
	closed bool
}

func NewChannelBroker() *ChannelBroker {
	return &ChannelBroker{topics: make(map[string]chan Message)}
}

func (b *ChannelBroker) Publish(_ context.Context, topic string, payload interface{}) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("publish to %s: broker closed", topic)
	}
	ch := b.topic(topic)
	b.nextID++
	msg := Message{ID: strconv.FormatInt(b.nextID, 10), Payload: data}
	b.mu.Unlock()

	select {
	case ch <- msg:
	default:
		// Buffer full. The poll loop picks the work up anyway.
	}
	return nil
}

func (b *ChannelBroker) Consume(ctx context.Context, topic, _, _ string, block time.Duration) ([]Message, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("consume %s: broker closed", topic)
	}
	ch := b.topic(topic)
	b.mu.Unlock()

	timer := time.NewTimer(block)
	defer timer.Stop()

	select {
	case msg := <-ch:
		messages := []Message{msg}
		// Drain whatever else is already buffered.
		for {
			select {
			case more := <-ch:
				messages = append(messages, more)
			default:
				return messages, nil
			}
		}
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack is a no-op: channel delivery is consume-once.
func (b *ChannelBroker) Ack(context.Context, string, string, ...string) error {
	return nil
}

// Close marks the broker closed. Topic channels stay open so a Publish
// racing Close never sends on a closed channel; blocked consumers return on
// their timer or context.
func (b *ChannelBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// topic returns the channel for a topic, creating it on first use.
// Callers must hold b.mu.
func (b *ChannelBroker) topic(name string) chan Message {
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan Message, channelBufferSize)
		b.topics[name] = ch
	}
	return ch
}
