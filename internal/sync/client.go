package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tempo/internal/cache"
)

// Remote is the sync endpoint as seen by the engine.
type Remote interface {
	Push(ctx context.Context, req PushRequest) error
	Pull(ctx context.Context, req PullRequest) (PullResponse, error)
	Health(ctx context.Context) error
}

// HTTPRemote talks JSON over HTTP to the sync service. Pull responses go
// through the offline cache so a pull still returns the last known state
// when the network is down.
type HTTPRemote struct {
	base    string
	client  *http.Client
	cache   *cache.Cache
	timeout time.Duration
}

// NewHTTPRemote builds a remote client. c may be nil to bypass caching.
func NewHTTPRemote(base string, timeout time.Duration, c *cache.Cache) *HTTPRemote {
	return &HTTPRemote{
		base:    strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: timeout},
		cache:   c,
		timeout: timeout,
	}
}

func (r *HTTPRemote) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("post %s: status %d", path, resp.StatusCode)
	}
	return data, nil
}

// Push uploads state. Responses are not cached; a push either lands or the
// engine resends the state later.
func (r *HTTPRemote) Push(ctx context.Context, req PushRequest) error {
	_, err := r.post(ctx, "/api/sync/push", req)
	return err
}

// Pull fetches the merged remote state, network first with cache fallback.
func (r *HTTPRemote) Pull(ctx context.Context, req PullRequest) (PullResponse, error) {
	call := func(ctx context.Context) ([]byte, error) {
		return r.post(ctx, "/api/sync/pull", req)
	}

	var data []byte
	var err error
	if r.cache != nil {
		data, err = r.cache.Do(ctx, cache.NetworkFirst, "pull/"+req.ActorID, call)
	} else {
		data, err = call(ctx)
	}
	if err != nil {
		return PullResponse{}, err
	}

	var out PullResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return PullResponse{}, fmt.Errorf("decode pull response: %w", err)
	}
	out.Sessions = normalizeSessions(out.Sessions)
	out.Messages = normalizeMessages(out.Messages)
	return out, nil
}

// Health probes the remote with a short deadline regardless of the client
// timeout.
func (r *HTTPRemote) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe: status %d", resp.StatusCode)
	}
	return nil
}
