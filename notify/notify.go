// Package notify publishes transfer completion events to Redis pub/sub.
//
// Events are encoded as JSON or msgpack and published to a configurable
// channel. Publishing retries with exponential backoff on failures.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/drunlade/go-ymodem/ymodem"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "ymodem:transfer_finished"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Encodings
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// TransferEvent is the payload published when a transfer ends.
type TransferEvent struct {
	EventType  string `json:"event_type" msgpack:"event_type"` // always "transfer_finished"
	Source     string `json:"source" msgpack:"source"`         // port or host the file came from
	FileName   string `json:"file_name" msgpack:"file_name"`
	FileSize   uint64 `json:"file_size" msgpack:"file_size"`
	Bytes      int64  `json:"bytes" msgpack:"bytes"`
	Packets    uint32 `json:"packets" msgpack:"packets"`
	Status     string `json:"status" msgpack:"status"` // COMPLETE, ABORTED, ...
	Error      string `json:"error,omitempty" msgpack:"error,omitempty"`
	Location   string `json:"location,omitempty" msgpack:"location,omitempty"`
	Timestamp  string `json:"timestamp" msgpack:"timestamp"` // RFC 3339
	DurationMs int64  `json:"duration_ms" msgpack:"duration_ms"`
}

// NewTransferEvent builds the event for a finished session.
func NewTransferEvent(source string, result *ymodem.Result, location string, err error) *TransferEvent {
	ev := &TransferEvent{
		EventType: "transfer_finished",
		Source:    source,
		Location:  location,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if result != nil {
		ev.FileName = result.FileName
		ev.FileSize = result.FileSize
		ev.Bytes = result.BytesReceived
		ev.Packets = result.Packets
		ev.Status = result.Status.String()
		ev.DurationMs = result.Duration.Milliseconds()
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Config configures the Redis publisher.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: ymodem:transfer_finished).
	Channel string
	// Encoding is "json" (default) or "msgpack".
	Encoding string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 0).
	Retries int
	// Backoff is the delay before the first retry, doubled for each
	// following one (default 500ms).
	Backoff time.Duration
}

// Redis publishes transfer events via Redis PUBLISH.
type Redis struct {
	config Config
	client *goredis.Client
}

// New creates a Redis publisher from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Redis, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis notifier requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis notifier: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	switch cfg.Encoding {
	case "":
		cfg.Encoding = EncodingJSON
	case EncodingJSON, EncodingMsgpack:
	default:
		return nil, fmt.Errorf("redis notifier: unknown encoding %q", cfg.Encoding)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Redis{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Encode serializes the event with the given encoding.
func Encode(encoding string, event *TransferEvent) ([]byte, error) {
	if encoding == EncodingMsgpack {
		return msgpack.Marshal(event)
	}
	return json.Marshal(event)
}

// Decode parses a payload produced by Encode.
func Decode(encoding string, data []byte) (*TransferEvent, error) {
	var ev TransferEvent
	var err error
	if encoding == EncodingMsgpack {
		err = msgpack.Unmarshal(data, &ev)
	} else {
		err = json.Unmarshal(data, &ev)
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Publish sends the event to the configured channel.
// Retries with exponential backoff on failures.
func (r *Redis) Publish(ctx context.Context, event *TransferEvent) error {
	body, err := Encode(r.config.Encoding, event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + r.config.Retries

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * r.config.Backoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		lastErr = r.client.Publish(publishCtx, r.config.Channel, body).Err()
		cancel()

		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
