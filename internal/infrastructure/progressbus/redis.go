// Package progressbus publishes migration progress events to Redis so a
// second terminal or a dashboard can follow a long run.
package progressbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobtrack/migrator/internal/config"
	"github.com/jobtrack/migrator/internal/domain/progress"
)

const publishTimeout = 2 * time.Second

// Client is the subset of *redis.Client the publisher uses.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Message is the published payload.
type Message struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Item       string    `json:"item"`
	Index      int       `json:"index"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	SentAt     time.Time `json:"sent_at"`
}

// Publisher is a progress.Observer. The first failed Redis call disables
// it for the rest of the run so an unreachable server cannot stall stages.
type Publisher struct {
	disabled atomic.Bool

	client  Client
	closer  func() error
	channel string
	runID   string
	log     *slog.Logger
	now     func() time.Time
}

var _ progress.Observer = (*Publisher)(nil)

// Connect opens a Redis client from cfg and checks it.
func Connect(ctx context.Context, cfg config.Progress, runID string, log *slog.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	p := New(client, cfg.RedisChannel, runID, log)
	p.closer = client.Close
	return p, nil
}

// New wraps an existing client.
func New(client Client, channel, runID string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		client:  client,
		closer:  func() error { return nil },
		channel: channel,
		runID:   runID,
		log:     log,
		now:     time.Now,
	}
}

// Close closes the client if the publisher opened it.
func (p *Publisher) Close() error {
	return p.closer()
}

// OnProgress publishes e on the channel and records it as the latest event
// of its stage under "<channel>:<run id>".
func (p *Publisher) OnProgress(e progress.Event) {
	if p.disabled.Load() {
		return
	}
	payload, err := json.Marshal(p.message(e))
	if err != nil {
		p.log.Warn("failed to encode progress event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.disable("failed to publish progress", "channel", p.channel, "error", err)
		return
	}
	if err := p.client.HSet(ctx, p.latestKey(), e.Stage, payload).Err(); err != nil {
		p.disable("failed to store latest progress", "key", p.latestKey(), "error", err)
	}
}

func (p *Publisher) disable(msg string, args ...any) {
	if p.disabled.Swap(true) {
		return
	}
	p.log.Warn(msg+", publishing disabled for this run", args...)
}

func (p *Publisher) message(e progress.Event) Message {
	return Message{
		RunID:      p.runID,
		Stage:      e.Stage,
		Item:       e.Item,
		Index:      e.Index,
		Total:      e.Total,
		Percentage: e.Percentage(),
		SentAt:     p.now().UTC(),
	}
}

func (p *Publisher) latestKey() string {
	return p.channel + ":" + p.runID
}
