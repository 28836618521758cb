// Package delivery sends replies through the messaging transport in
// sentence-aligned chunks and confirms each chunk before sending the next.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mentor-relay/internal/domain"
)

const (
	DefaultChunkSize       = 1500
	DefaultMaxPollAttempts = 15
	DefaultPollInterval    = time.Second
)

// Transport is the outbound messaging API.
type Transport interface {
	Send(ctx context.Context, to, body string) (domain.SentMessage, error)
	Fetch(ctx context.Context, sid string) (domain.MessageStatus, error)
}

// Config bounds chunk size and status polling.
type Config struct {
	ChunkSize       int
	MaxPollAttempts int
	// PollInterval is the backoff unit: the n-th poll waits n*PollInterval.
	PollInterval time.Duration
}

// DeliveryFailure reports the first chunk that did not reach a successful
// status. Chunks after it were not sent.
type DeliveryFailure struct {
	Chunk       int
	SID         string
	Status      domain.MessageStatus
	Destination string
	Timestamp   time.Time
	Err         error
}

func (f *DeliveryFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("delivery: chunk %d sid=%q to %s failed: %v", f.Chunk, f.SID, f.Destination, f.Err)
	}
	return fmt.Sprintf("delivery: chunk %d sid=%q to %s ended with status %q", f.Chunk, f.SID, f.Destination, f.Status)
}

func (f *DeliveryFailure) Unwrap() error {
	return f.Err
}

// MessageSID is the transport identifier of the failed chunk, empty when the
// send itself failed.
func (f *DeliveryFailure) MessageSID() string {
	return f.SID
}

func (f *DeliveryFailure) FailedAt() time.Time {
	return f.Timestamp
}

// Deliverer sends chunked messages with per-chunk delivery confirmation.
type Deliverer struct {
	transport Transport
	cfg       Config
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// New creates a Deliverer. Zero config fields take their defaults.
func New(t Transport, cfg Config) (*Deliverer, error) {
	if t == nil {
		return nil, errors.New("delivery: transport must not be nil")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxPollAttempts < 0 {
		return nil, errors.New("delivery: max poll attempts must not be negative")
	}
	if cfg.MaxPollAttempts == 0 {
		cfg.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Deliverer{
		transport: t,
		cfg:       cfg,
		sleep:     sleepContext,
		now:       time.Now,
	}, nil
}

// Deliver sends text to the destination. It returns *DeliveryFailure as soon
// as one chunk fails, without sending the remaining chunks. Failed chunks are
// not resent.
func (d *Deliverer) Deliver(ctx context.Context, text, to string) error {
	chunks := Chunk(text, d.cfg.ChunkSize)
	for idx, chunk := range chunks {
		sent, err := d.transport.Send(ctx, to, chunk)
		if err != nil {
			return d.failure(idx, "", "", to, err)
		}

		status, err := d.awaitStatus(ctx, sent)
		if err != nil {
			return d.failure(idx, sent.SID, status, to, err)
		}
		if !status.Successful() {
			return d.failure(idx, sent.SID, status, to, nil)
		}
		slog.Debug("chunk delivered", "sid", sent.SID, "chunk", idx+1, "of", len(chunks), "status", status)
	}
	return nil
}

// awaitStatus polls until the status is terminal or attempts run out,
// waiting attempt*PollInterval before each fetch.
func (d *Deliverer) awaitStatus(ctx context.Context, sent domain.SentMessage) (domain.MessageStatus, error) {
	status := sent.Status
	for attempt := 0; attempt < d.cfg.MaxPollAttempts && !status.Terminal(); attempt++ {
		if err := d.sleep(ctx, time.Duration(attempt)*d.cfg.PollInterval); err != nil {
			return status, err
		}
		next, err := d.transport.Fetch(ctx, sent.SID)
		if err != nil {
			return status, err
		}
		status = next
	}
	return status, nil
}

func (d *Deliverer) failure(idx int, sid string, status domain.MessageStatus, to string, err error) *DeliveryFailure {
	f := &DeliveryFailure{
		Chunk:       idx,
		SID:         sid,
		Status:      status,
		Destination: to,
		Timestamp:   d.now().UTC(),
		Err:         err,
	}
	slog.Warn("chunk delivery failed", "sid", sid, "chunk", idx+1, "status", status, "to", to, "err", err)
	return f
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

