// Package queue carries records between pipeline stages with at-least-once
// delivery per consumer group. The relational store stays the source of
// truth: a consumer treats messages as a wake-up and claims its work from the
// store, acking only after the claimed batch is durably committed. A stage
// that misses a message still picks the work up on its next poll.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"newsingest/internal/domain/entity"
)

// Topics connecting the pipeline stages.
const (
	// TopicLinks carries link records persisted by the collectors.
	TopicLinks = "news_links"

	// TopicArticles carries article records persisted by the dispatcher.
	TopicArticles = "news_content"
)

// Consumer groups reading the topics.
const (
	GroupFetcher  = "fetcher"
	GroupEmbedder = "embedder"
)

// LinkMessage mirrors entity.LinkRecord on the wire. Datetimes travel as
// ISO-8601 strings.
type LinkMessage struct {
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	Status      string `json:"status"`
	TriedCount  int    `json:"tried_count"`
}

// NewLinkMessage converts a link record to its wire form.
func NewLinkMessage(r entity.LinkRecord) LinkMessage {
	return LinkMessage{
		Source:      r.Source,
		URL:         r.URL,
		PublishedAt: r.PublishedAt.UTC().Format(time.RFC3339),
		Status:      string(r.Status),
		TriedCount:  r.TriedCount,
	}
}

// ArticleMessage mirrors entity.ArticleRecord on the wire, minus the bulky
// content body. Consumers treat messages as wake-ups and read full records
// from the store.
type ArticleMessage struct {
	Source      string   `json:"source"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Keywords    []string `json:"keywords"`
	PublishedAt string   `json:"published_at"`
	Status      string   `json:"status"`
}

// NewArticleMessage converts an article record to its wire form.
func NewArticleMessage(r entity.ArticleRecord) ArticleMessage {
	return ArticleMessage{
		Source:      r.Source,
		URL:         r.URL,
		Title:       r.Title,
		Summary:     r.Summary,
		Keywords:    r.Keywords,
		PublishedAt: r.PublishedAt.UTC().Format(time.RFC3339),
		Status:      string(r.Status),
	}
}

// Message is one delivered queue entry. Payload is the JSON form of a
// LinkMessage or ArticleMessage depending on the topic.
type Message struct {
	ID      string
	Payload []byte
}

// DecodeLink parses the payload as a LinkMessage.
func (m Message) DecodeLink() (LinkMessage, error) {
	var lm LinkMessage
	if err := json.Unmarshal(m.Payload, &lm); err != nil {
		return LinkMessage{}, fmt.Errorf("decode link message %s: %w", m.ID, err)
	}
	return lm, nil
}

// DecodeArticle parses the payload as an ArticleMessage.
func (m Message) DecodeArticle() (ArticleMessage, error) {
	var am ArticleMessage
	if err := json.Unmarshal(m.Payload, &am); err != nil {
		return ArticleMessage{}, fmt.Errorf("decode article message %s: %w", m.ID, err)
	}
	return am, nil
}

// Broker publishes and consumes stage messages.
type Broker interface {
	// Publish appends a payload to a topic. The payload is JSON-marshaled.
	Publish(ctx context.Context, topic string, payload interface{}) error

	// Consume blocks up to block for messages on a topic, reading as the
	// given group member. A nil slice with nil error means the wait timed
	// out with nothing to read. Messages delivered but never acked may be
	// stranded with the dead consumer; the store poll is the recovery path.
	Consume(ctx context.Context, topic, group, consumer string, block time.Duration) ([]Message, error)

	// Ack marks messages as processed for the group. Call only after the
	// corresponding work is durable downstream.
	Ack(ctx context.Context, topic, group string, ids ...string) error

	// Close releases broker resources.
	Close() error
}

func marshalPayload(payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
