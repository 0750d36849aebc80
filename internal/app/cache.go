package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/wcs/internal/adapters/repository"
	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/pkg/metrics"
)

// leaderboardCache keeps per-employee histories and the ranked entries built
// from them. A write to (employee, period) drops only that employee's
// history; the next read reloads it and re-ranks.
type leaderboardCache struct {
	mu        sync.Mutex
	store     repository.Store
	opts      []leaderboard.Option
	histories map[string]model.History
	dirty     map[string]struct{}
	loaded    bool
	entries   []leaderboard.Entry
	stale     bool
}

func newLeaderboardCache(store repository.Store, opts ...leaderboard.Option) *leaderboardCache {
	return &leaderboardCache{
		store:     store,
		opts:      opts,
		histories: make(map[string]model.History),
		dirty:     make(map[string]struct{}),
		stale:     true,
	}
}

// invalidate marks the employee's history stale after a write to periodID.
// The period is not needed to reload; it is accepted so callers name the
// exact key they wrote.
func (c *leaderboardCache) invalidate(employeeID, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty[employeeID] = struct{}{}
	c.stale = true
}

// ranked returns a private copy of the current ranking.
func (c *leaderboardCache) ranked(ctx context.Context) ([]leaderboard.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stale {
		metrics.RecordLeaderboardCache(true)
		return c.copyEntries(), nil
	}
	metrics.RecordLeaderboardCache(false)

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	ids := make([]string, 0, len(c.histories))
	for id := range c.histories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	hs := make([]model.History, len(ids))
	for i, id := range ids {
		hs[i] = c.histories[id]
	}
	c.entries = leaderboard.Build(hs, c.opts...)
	c.stale = false
	metrics.RecordLeaderboardBuild(float64(time.Since(start).Microseconds())/1000, len(c.entries))
	return c.copyEntries(), nil
}

func (c *leaderboardCache) refresh(ctx context.Context) error {
	if !c.loaded {
		snap, err := c.store.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("load leaderboard snapshot: %w", err)
		}
		for _, h := range snap {
			c.histories[h.Employee.ID] = h
		}
		c.loaded = true
		clear(c.dirty)
		return nil
	}
	for id := range c.dirty {
		records, err := c.store.History(ctx, id)
		if err != nil {
			return fmt.Errorf("reload history %s: %w", id, err)
		}
		emp, err := c.store.Employee(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			emp = model.Employee{ID: id}
		} else if err != nil {
			return fmt.Errorf("reload employee %s: %w", id, err)
		}
		c.histories[id] = model.History{Employee: emp, Records: records}
		delete(c.dirty, id)
	}
	return nil
}

func (c *leaderboardCache) copyEntries() []leaderboard.Entry {
	out := make([]leaderboard.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}
