package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"tenderwatch/internal/ports"
)

// Detector answers whether a candidate is already known for a source. A
// tender is a duplicate when the store holds the same URL for the source, or
// independently the same exact title for the source — either alone suffices,
// biased toward over-rejection so teams are never re-notified.
type Detector struct {
	store  ports.TenderStore
	seen   ports.SeenCache
	logger *slog.Logger
}

// NewDetector wires the authoritative store and an optional seen-cache
// fast-path. seen may be nil.
func NewDetector(store ports.TenderStore, seen ports.SeenCache, logger *slog.Logger) *Detector {
	return &Detector{store: store, seen: seen, logger: logger}
}

// IsDuplicate checks the fast-path cache first, then the store. Cache errors
// are logged and ignored; only the store decides a negative.
func (d *Detector) IsDuplicate(ctx context.Context, title, url string, sourceID int64) (bool, error) {
	if d.seen != nil {
		hit, err := d.seen.Seen(ctx, seenKey(sourceID, title, url))
		if err != nil {
			d.warn("seen-cache lookup failed", "error", err)
		} else if hit {
			return true, nil
		}
	}

	return d.store.Exists(ctx, title, url, sourceID)
}

// Remember records a freshly saved tender in the fast-path cache.
func (d *Detector) Remember(ctx context.Context, title, url string, sourceID int64) {
	if d.seen == nil {
		return
	}
	if err := d.seen.MarkSeen(ctx, seenKey(sourceID, title, url)); err != nil {
		d.warn("seen-cache write failed", "error", err)
	}
}

// seenKey hashes the normalized identity of a tender within its source.
func seenKey(sourceID int64, title, url string) string {
	norm := fmt.Sprintf("%d|%s|%s",
		sourceID,
		strings.ToLower(strings.TrimSpace(title)),
		strings.TrimSpace(url))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

func (d *Detector) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
