// Package engage tracks listener engagement signals: play-time reports and
// personal-list membership. Play reports are rate limited per client so a
// looping player cannot inflate a station's popularity.
package engage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/radiodex/radiodex/internal/store"
)

// PlayCooldown is the minimum interval between counted play reports from the
// same client for the same station.
const PlayCooldown = 5 * time.Minute

// Outcome describes how a play report was handled.
type Outcome string

const (
	// OutcomeCounted means the report incremented the station's play time.
	OutcomeCounted Outcome = "counted"
	// OutcomeThrottled means the report arrived within the cooldown window
	// and was dropped. Throttling is not an error condition.
	OutcomeThrottled Outcome = "throttled"
)

// FingerprintCache remembers which client/station pairs reported recently.
// Seen marks the pair and reports whether it was already marked; the mark
// expires after ttl. Forget removes a mark early so a report that failed to
// persist does not burn the client's cooldown window.
type FingerprintCache interface {
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Tracker applies engagement signals to the catalog.
type Tracker struct {
	store store.Store
	seen  FingerprintCache
}

// NewTracker creates a Tracker backed by the given store and fingerprint
// cache.
func NewTracker(s store.Store, seen FingerprintCache) *Tracker {
	return &Tracker{store: s, seen: seen}
}

// ReportPlay records one minute of listening for a station. The reporting
// client is identified by a fingerprint of its address and user agent; a
// second report from the same client within PlayCooldown is throttled rather
// than counted. Throttled reports return OutcomeThrottled with a nil error.
func (t *Tracker) ReportPlay(ctx context.Context, stationID int64, clientAddr, userAgent string) (Outcome, error) {
	key := fmt.Sprintf("play:%d:%s", stationID, Fingerprint(clientAddr, userAgent))
	already, err := t.seen.Seen(ctx, key, PlayCooldown)
	if err != nil {
		return "", fmt.Errorf("fingerprint check: %w", err)
	}
	if already {
		return OutcomeThrottled, nil
	}
	if err := t.store.IncrementPlayMinutes(ctx, stationID); err != nil {
		// The increment never happened, so release the cooldown mark and let
		// the client retry immediately.
		if ferr := t.seen.Forget(ctx, key); ferr != nil {
			log.Printf("engage: release fingerprint %s: %v", key, ferr)
		}
		return "", err
	}
	return OutcomeCounted, nil
}

// SetInList adds or removes a station on a user's personal list. The
// station's list counter follows the membership change.
func (t *Tracker) SetInList(ctx context.Context, stationID int64, userID string, inList bool) error {
	if inList {
		return t.store.AddToList(ctx, stationID, userID)
	}
	return t.store.RemoveFromList(ctx, stationID, userID)
}

// Fingerprint derives an anonymous client identifier from the client address
// and user agent. Only the hash is ever stored.
func Fingerprint(clientAddr, userAgent string) string {
	h := sha256.Sum256([]byte(clientAddr + "|" + userAgent))
	return hex.EncodeToString(h[:16])
}
