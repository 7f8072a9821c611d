package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/cache"

	"swipestats/internal/analytics"
)

const (
	peerBaselineTTL        = 5 * time.Minute
	peerBaselineMaxEntries = 10000
)

// Comparison is a profile's all-time meta measured against its peers.
type Comparison struct {
	ProfileID string                       `json:"profile_id"`
	Baseline  *analytics.PeerBaseline      `json:"baseline"`
	Changes   *analytics.ComparisonMetrics `json:"changes"`
}

// Comparer compares profiles with the average of all other profiles. Baselines
// are cached per profile.
type Comparer struct {
	logger      *slog.Logger
	store       *Store
	minProfiles int
	baselines   cache.Store
}

// NewComparer creates a Comparer requiring at least minProfiles peers.
func NewComparer(logger *slog.Logger, store *Store, minProfiles int) *Comparer {
	return &Comparer{
		logger:      logger,
		store:       store,
		minProfiles: minProfiles,
		baselines:   cache.NewMemoryStore(
			cache.WithTTL(peerBaselineTTL),
			cache.WithMaxEntries(peerBaselineMaxEntries),
			cache.WithCleanupInterval(0),
		),
	}
}

// Compare returns the comparison for one profile. It returns ErrProfileNotFound for
// unknown profiles and ErrNotEnoughPeers when no baseline can be formed.
func (c *Comparer) Compare(ctx context.Context, profileID string) (*Comparison, error) {
	metas, err := c.store.Metas(ctx, profileID, analytics.PeriodAll)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, fmt.Errorf("profile %s has no all-time meta", profileID)
	}

	baseline, err := c.baseline(ctx, profileID)
	if err != nil {
		return nil, err
	}

	return &Comparison{
		ProfileID: profileID,
		Baseline:  baseline,
		Changes:   analytics.CompareMeta(metas[0], *baseline),
	}, nil
}

func (c *Comparer) baseline(ctx context.Context, profileID string) (*analytics.PeerBaseline, error) {
	if data, ok := c.baselines.Read(ctx, profileID); ok {
		var cached analytics.PeerBaseline
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		c.logger.Warn("Discarding unreadable peer baseline", slog.String("profile_id", profileID))
	}

	baseline, err := c.store.PeerBaseline(ctx, profileID, c.minProfiles)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to encode peer baseline: %w", err)
	}
	if err := c.baselines.Write(ctx, profileID, data); err != nil {
		c.logger.Warn("Failed to cache peer baseline", slog.String("profile_id", profileID), slog.Any("error", err))
	}
	return baseline, nil
}

// Invalidate drops every cached baseline. Call it after profiles change.
func (c *Comparer) Invalidate() {
	if err := c.baselines.Clear(context.Background()); err != nil {
		c.logger.Warn("Failed to clear peer baselines", slog.Any("error", err))
	}
}
