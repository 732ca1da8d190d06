package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Type string

const (
	PackSaved   Type = "pack.saved"
	PackDeleted Type = "pack.deleted"
)

type PackEvent struct {
	Type       Type
	PackID     string
	Bucket     string
	ImageNames []string
	At         time.Time
}

// Values flattens the event into stream entry fields.
func (e PackEvent) Values() map[string]any {
	return map[string]any{
		"type":   string(e.Type),
		"packId": e.PackID,
		"bucket": e.Bucket,
		"images": strings.Join(e.ImageNames, ","),
		"count":  len(e.ImageNames),
		"at":     e.At.UTC().Format(time.RFC3339Nano),
	}
}

// StreamPublisher appends pack events to a Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: 100000,
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, event PackEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: event.Values(),
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
