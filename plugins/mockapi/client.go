// Package mockapi is an in-process stand-in for a remote bulk-insert API. It
// assigns identifiers to every item and can be told to fail or drop results on
// a schedule, which makes the run command usable without a real endpoint.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rshade/bulkload/pkg/uploader"
)

// ErrSimulatedFailure is returned by every FailEvery-th call.
var ErrSimulatedFailure = errors.New("mockapi: simulated upload failure")

// Client is a stateful fake upload target. The zero value accepts everything.
type Client struct {
	// FailEvery makes every n-th call return ErrSimulatedFailure. Zero disables.
	FailEvery int
	// DropEvery makes every n-th call return one identifier too few. Zero disables.
	DropEvery int
	// Latency is slept before answering, or until ctx ends.
	Latency time.Duration

	Logger zerolog.Logger

	calls atomic.Int64
	items atomic.Int64
}

// Upload implements uploader.UploadFunc over raw JSON items.
func (c *Client) Upload(ctx context.Context, batch []json.RawMessage) (uploader.UploadResult, error) {
	n := int(c.calls.Add(1))
	log := c.Logger.With().Str("component", "mockapi").Int("call", n).Int("items", len(batch)).Logger()

	if c.Latency > 0 {
		timer := time.NewTimer(c.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return uploader.UploadResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	if c.FailEvery > 0 && n%c.FailEvery == 0 {
		log.Debug().Msg("simulating failure")
		return uploader.UploadResult{}, ErrSimulatedFailure
	}

	ids := make([]string, len(batch))
	for i := range ids {
		ids[i] = ulid.Make().String()
	}
	if c.DropEvery > 0 && n%c.DropEvery == 0 && len(ids) > 0 {
		log.Debug().Msg("dropping one identifier")
		ids = ids[:len(ids)-1]
	}

	c.items.Add(int64(len(ids)))
	return uploader.UploadResult{IDs: ids}, nil
}

// Calls returns how many times Upload was invoked.
func (c *Client) Calls() int {
	return int(c.calls.Load())
}

// Accepted returns how many identifiers have been issued.
func (c *Client) Accepted() int {
	return int(c.items.Load())
}

var _ uploader.UploadFunc[json.RawMessage] = (*Client)(nil).Upload
