package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/radiodex/radiodex/internal/metrics"
	"github.com/radiodex/radiodex/internal/models"
	"github.com/radiodex/radiodex/internal/prober"
	"github.com/radiodex/radiodex/internal/store"
	"github.com/radiodex/radiodex/internal/textfix"
)

// Revalidate re-probes every cataloged station and refreshes its health and
// metadata. It runs sequentially: the catalog is bounded and the probe
// client's rate limiter sets the pace anyway. A per-station failure marks the
// station offline with the reason; it never aborts the pass. On completion a
// statistics snapshot is persisted and returned.
func Revalidate(ctx context.Context, s store.Store, pc Prober) (models.RevalidationStats, error) {
	start := time.Now()

	stations, err := s.ListStations(ctx)
	if err != nil {
		return models.RevalidationStats{}, fmt.Errorf("list stations: %w", err)
	}

	for i := range stations {
		if err := ctx.Err(); err != nil {
			return models.RevalidationStats{}, fmt.Errorf("revalidation cancelled: %w", err)
		}
		st := &stations[i]
		if st.Duplicate {
			continue
		}
		if err := revalidateStation(ctx, s, pc, st); err != nil {
			log.Printf("revalidate: station %d (%s): %v", st.ID, st.URL, err)
		}
	}

	online, total, err := s.DBStats(ctx)
	if err != nil {
		return models.RevalidationStats{}, fmt.Errorf("stats: %w", err)
	}
	stats := models.RevalidationStats{Online: online, Total: total}
	if err := s.SaveRevalidationStats(ctx, stats); err != nil {
		return stats, fmt.Errorf("save stats: %w", err)
	}

	log.Printf("revalidate: %d/%d online after %s", online, total, time.Since(start).Round(time.Second))
	return stats, nil
}

// revalidateStation probes one station and writes the outcome back.
func revalidateStation(ctx context.Context, s store.Store, pc Prober, st *models.Station) error {
	// Stored URLs from older catalog versions may predate normalization, so
	// normalize again before probing.
	res := pc.Probe(ctx, prober.NormalizeURL(st.URL))
	metrics.Probes.WithLabelValues(probeOutcome(res.OK)).Inc()

	if !res.OK {
		offline := false
		return s.UpdateStation(ctx, st.ID, store.StationUpdate{
			Online: &offline,
			Error:  &res.Error,
		})
	}

	// A live probe refreshes the descriptive fields too: probed values win,
	// the stored values fill gaps, Unknown covers the rest.
	online := true
	noError := ""
	name := repaired(res.Name.Or(models.KnownField(st.Name)))
	genre := repaired(res.Genre.Or(models.KnownField(st.Genre)))
	fields := store.StationUpdate{
		Online:      &online,
		Error:       &noError,
		Name:        &name,
		Genre:       &genre,
		ContentType: &res.ContentType,
	}

	if res.Bitrate != nil {
		fields.Bitrate = &res.Bitrate
	}
	if res.Homepage.IsKnown() {
		if hp, ok := textfix.RebuildHomepage(res.Homepage.Value); ok {
			p := &hp
			fields.Homepage = &p
		}
	}

	return s.UpdateStation(ctx, st.ID, fields)
}
