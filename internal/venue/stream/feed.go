// Package stream is a reference live quote feed built on
// github.com/gorilla/websocket, grounded on the teacher's
// exchanges/binance/book.go dial-and-retry loop and
// internal/providers/kraken/websocket.go subscription/reconnect shape.
//
// It is deliberately not on the pipeline's critical path: §1's Non-goals
// rule out a <100ms real-time guarantee, so price_monitor and the rest of
// the orchestrator's jobs keep polling venue.Adapter.Ticker/OrderBook on a
// fixed interval. Feed exists as the optional low-latency companion a
// venue package may offer — a warmed Latest() cache a future job could
// consult before falling back to a REST round trip.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/arbiq/scanner/internal/domain"
)

// Decoder turns one raw websocket message into a Quote. ok is false for
// messages the feed should silently ignore (heartbeats, subscription acks).
type Decoder func(raw []byte) (quote domain.Quote, ok bool, err error)

const (
	dialRetryMin = time.Second
	dialRetryMax = 30 * time.Second
	readTimeout  = 30 * time.Second
)

// Feed maintains one reconnecting websocket connection and the latest
// decoded Quote per symbol observed on it.
type Feed struct {
	venueID string
	url     string
	decode  Decoder

	mu     sync.RWMutex
	latest map[string]domain.Quote

	closeCh chan struct{}
	once    sync.Once
}

// NewFeed builds a Feed against url, decoding each inbound message with
// decode. Run must be called (typically in its own goroutine) before
// Latest returns anything.
func NewFeed(venueID, url string, decode Decoder) *Feed {
	return &Feed{
		venueID: venueID,
		url:     url,
		decode:  decode,
		latest:  make(map[string]domain.Quote),
		closeCh: make(chan struct{}),
	}
}

// Latest returns the most recently decoded quote for symbol, if any has
// arrived since Run started.
func (f *Feed) Latest(symbol string) (domain.Quote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.latest[symbol]
	return q, ok
}

// Close stops Run's reconnect loop. Safe to call more than once.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.closeCh) })
}

// Run dials f.url and reads messages until ctx is canceled or Close is
// called. After a disconnect it redials at once; failed dials are retried
// with exponential backoff (1s doubling up to 30s), reset by each successful
// dial — the teacher's book.run "sleep and redial forever" shape with a
// capped backoff instead of a fixed one-second sleep.
func (f *Feed) Run(ctx context.Context) {
	backoff := dialRetryMin
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.closeCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			log.Warn().Str("venue_id", f.venueID).Err(err).Dur("retry_in", backoff).Msg("stream dial failed")
			if !sleepOrDone(ctx, f.closeCh, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = dialRetryMin

		f.readLoop(ctx, conn)
		_ = conn.Close()
	}
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.closeCh:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		quote, ok, err := f.decode(msg)
		if err != nil {
			log.Debug().Str("venue_id", f.venueID).Err(err).Msg("stream decode failed")
			continue
		}
		if !ok {
			continue
		}
		quote.VenueID = f.venueID
		quote.ReceivedAtMs = time.Now().UnixMilli()

		f.mu.Lock()
		f.latest[quote.Symbol] = quote
		f.mu.Unlock()
	}
}

func sleepOrDone(ctx context.Context, closeCh <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-closeCh:
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > dialRetryMax {
		return dialRetryMax
	}
	return d
}
