package fpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/pkg/apperr"
	cfgpkg "github.com/fatflowers/fplcoach/pkg/config"
	"github.com/fatflowers/fplcoach/pkg/logctx"
)

// Source returns the current game snapshot.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Client reads the public FPL feed.
type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

func NewClient(cfg *cfgpkg.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.FPL.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.FPL.Timeout},
		now:     time.Now,
	}
}

type bootstrapStatic struct {
	Teams    []Team   `json:"teams"`
	Elements []Player `json:"elements"`
}

func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	var bs bootstrapStatic
	if err := c.getJSON(ctx, "/bootstrap-static/", &bs); err != nil {
		return nil, err
	}
	var fixtures []Fixture
	if err := c.getJSON(ctx, "/fixtures/?future=1", &fixtures); err != nil {
		return nil, err
	}
	return &Snapshot{
		Teams:     bs.Teams,
		Players:   bs.Elements,
		Fixtures:  fixtures,
		FetchedAt: c.now(),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: fpl: %v", apperr.ErrExternalService, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("%w: fpl %s: %v", apperr.ErrExternalServiceTimeout, path, err)
		}
		return fmt.Errorf("%w: fpl %s: %v", apperr.ErrExternalService, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: fpl %s: status %d", apperr.ErrExternalService, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: fpl %s: decode: %v", apperr.ErrExternalService, path, err)
	}
	return nil
}

// Store persists snapshots between requests.
type Store interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

const snapshotCacheKey = "fpl:snapshot:v1"

// CachedSource serves snapshots from the store and refreshes them from the
// feed on a miss. Store failures fall through to the feed.
type CachedSource struct {
	origin Source
	store  Store
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewCachedSource(origin Source, store Store, ttl time.Duration, log *zap.SugaredLogger) *CachedSource {
	return &CachedSource{origin: origin, store: store, ttl: ttl, log: log}
}

func (s *CachedSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	lg := logctx.FromCtx(ctx, s.log)
	var cached Snapshot
	hit, err := s.store.GetJSON(ctx, snapshotCacheKey, &cached)
	if err != nil {
		lg.Warnw("fpl snapshot cache read failed", "err", err)
	} else if hit {
		return &cached, nil
	}

	snap, err := s.origin.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetJSON(ctx, snapshotCacheKey, snap, s.ttl); err != nil {
		lg.Warnw("fpl snapshot cache write failed", "err", err)
	}
	return snap, nil
}
