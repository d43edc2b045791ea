// Package teamcache holds the immutable per-team configuration loaded once at
// startup. Every routing decision reads from this cache; a change to a team
// document takes effect only through an explicit refresh.
package teamcache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/store"
)

// Cache is the read-mostly team configuration cache. Safe for concurrent use.
type Cache struct {
	mu          sync.RWMutex
	teams       map[string]domain.Team
	initialized bool
	missLogged  map[string]struct{}

	store  store.Store
	logger *slog.Logger
}

// New creates an uninitialized cache over the given store.
func New(st store.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		teams:      make(map[string]domain.Team),
		missLogged: make(map[string]struct{}),
		store:      st,
		logger:     logger,
	}
}

// Initialize loads every team document. Idempotent: a second call reloads the
// snapshot wholesale rather than merging.
func (c *Cache) Initialize(ctx context.Context) error {
	docs, err := c.store.Query(ctx, store.TeamsCollection, nil)
	if err != nil {
		return fmt.Errorf("load teams: %w", err)
	}

	teams := make(map[string]domain.Team, len(docs))
	for _, doc := range docs {
		t := domain.TeamFromDoc(doc.ID, doc.Data)
		if t.ID == "" {
			c.logger.Warn("team document without id skipped", "doc", doc.ID)
			continue
		}
		teams[t.ID] = t
	}

	c.mu.Lock()
	c.teams = teams
	c.initialized = true
	c.missLogged = make(map[string]struct{})
	c.mu.Unlock()

	c.logger.Info("team cache initialized", "teams", len(teams))
	return nil
}

// IsInitialized reports whether Initialize has completed.
func (c *Cache) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Team returns the cached team configuration.
func (c *Cache) Team(teamID string) (domain.Team, bool) {
	c.mu.RLock()
	t, ok := c.teams[teamID]
	c.mu.RUnlock()
	if !ok {
		c.logMiss(teamID)
	}
	return t, ok
}

// logMiss warns once per unknown team id so a misconfigured caller does not
// flood the log.
func (c *Cache) logMiss(teamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.missLogged[teamID]; seen {
		return
	}
	c.missLogged[teamID] = struct{}{}
	c.logger.Warn("team not in cache", "team_id", teamID)
}

// BotToken returns the team's bot token, or "" when unknown.
func (c *Cache) BotToken(teamID string) string {
	t, _ := c.Team(teamID)
	return t.BotToken
}

// MainChatID returns the team's main chat id, or "" when unknown.
func (c *Cache) MainChatID(teamID string) string {
	t, _ := c.Team(teamID)
	return t.MainChatID
}

// LeadershipChatID returns the team's leadership chat id, or "" when unknown.
func (c *Cache) LeadershipChatID(teamID string) string {
	t, _ := c.Team(teamID)
	return t.LeadershipChatID
}

// TeamName returns the display name, falling back to the id itself so callers
// always have something printable.
func (c *Cache) TeamName(teamID string) string {
	t, ok := c.Team(teamID)
	if !ok {
		return teamID
	}
	return t.DisplayName()
}

// AllTeamIDs returns every cached team id, sorted.
func (c *Cache) AllTeamIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.teams))
	for id := range c.teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Teams returns a snapshot of every cached team, sorted by id.
func (c *Cache) Teams() []domain.Team {
	c.mu.RLock()
	defer c.mu.RUnlock()
	teams := make([]domain.Team, 0, len(c.teams))
	for _, t := range c.teams {
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams
}

// RefreshTeam re-reads one team document and swaps it into the cache
// atomically. Readers see either the old or the new configuration, never a
// partial one.
func (c *Cache) RefreshTeam(ctx context.Context, teamID string) error {
	doc, err := c.store.Get(ctx, store.TeamsCollection, teamID)
	if err != nil {
		return fmt.Errorf("refresh team %s: %w", teamID, err)
	}
	t := domain.TeamFromDoc(teamID, doc)

	c.mu.Lock()
	c.teams[t.ID] = t
	delete(c.missLogged, t.ID)
	c.mu.Unlock()

	c.logger.Info("team configuration refreshed", "team_id", t.ID)
	return nil
}
