// Package service holds the catalog jobs: directory ingestion, health
// revalidation, and the duplicate sweep.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/radiodex/radiodex/internal/fetcher"
	"github.com/radiodex/radiodex/internal/metrics"
	"github.com/radiodex/radiodex/internal/models"
	"github.com/radiodex/radiodex/internal/prober"
	"github.com/radiodex/radiodex/internal/store"
	"github.com/radiodex/radiodex/internal/textfix"
)

// DefaultIngestConcurrency bounds how many candidate streams are probed at
// once during ingestion.
const DefaultIngestConcurrency = 5

// Prober checks a stream URL and classifies the outcome. *prober.Client is
// the production implementation.
type Prober interface {
	Probe(ctx context.Context, streamURL string) prober.Result
}

// IngestResult summarizes one ingestion pass.
type IngestResult struct {
	Added   int           `json:"added"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Elapsed time.Duration `json:"-"`
}

// Ingest fetches the directory listing, validates every candidate stream, and
// adds the healthy ones to the catalog. Already-cataloged URLs are skipped
// without a probe. A candidate that fails validation is logged and dropped;
// only fetching the directory itself can fail the pass.
func Ingest(ctx context.Context, s store.Store, pc Prober, directoryURL, userAgent string, timeout time.Duration, concurrency int) (IngestResult, error) {
	if directoryURL == "" {
		return IngestResult{}, fmt.Errorf("directory URL is required")
	}
	if concurrency <= 0 {
		concurrency = DefaultIngestConcurrency
	}

	start := time.Now()

	entries, err := fetcher.FetchDirectory(ctx, directoryURL, userAgent, timeout)
	if err != nil {
		return IngestResult{}, fmt.Errorf("fetch directory: %w", err)
	}
	log.Printf("ingest: %d candidate entries from %s", len(entries), directoryURL)

	var added, skipped, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range entries {
		entry := entries[i]
		g.Go(func() error {
			switch err := ingestEntry(ctx, s, pc, entry); {
			case err == nil:
				added.Add(1)
			case err == errSkipped:
				skipped.Add(1)
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				failed.Add(1)
				log.Printf("ingest: %s: %v", entry.ListenURL, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IngestResult{}, fmt.Errorf("ingest cancelled: %w", err)
	}

	res := IngestResult{
		Added:   int(added.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
		Elapsed: time.Since(start),
	}
	log.Printf("ingest: added %d, skipped %d, failed %d in %s",
		res.Added, res.Skipped, res.Failed, res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// errSkipped marks an entry that was already cataloged or is not an audio
// stream. Not a failure.
var errSkipped = errors.New("skipped")

// ingestEntry validates a single directory entry and adds it to the catalog.
func ingestEntry(ctx context.Context, s store.Store, pc Prober, entry fetcher.Entry) error {
	streamURL := prober.NormalizeURL(entry.ListenURL)

	exists, err := s.Exists(ctx, streamURL)
	if err != nil {
		return fmt.Errorf("exists check: %w", err)
	}
	if exists {
		return errSkipped
	}

	res := pc.Probe(ctx, streamURL)
	metrics.Probes.WithLabelValues(probeOutcome(res.OK)).Inc()
	if !res.OK {
		return fmt.Errorf("probe: %s", res.Error)
	}
	if !models.IsAudioContentType(res.ContentType) {
		return errSkipped
	}

	st := buildStation(streamURL, res, entry)
	if _, err := s.AddStation(ctx, st); err != nil {
		// A concurrent worker may have inserted the same URL after the
		// exists check.
		if errors.Is(err, store.ErrExists) {
			return errSkipped
		}
		return fmt.Errorf("add station: %w", err)
	}
	return nil
}

// buildStation merges probed metadata with the directory's declared values.
// Probed values win; declared values fill gaps; what remains is Unknown.
func buildStation(streamURL string, res prober.Result, entry fetcher.Entry) *models.Station {
	st := &models.Station{
		URL:         streamURL,
		Name:        repaired(res.Name.Or(models.KnownField(entry.Name))),
		Genre:       repaired(res.Genre.Or(models.KnownField(entry.Genre))),
		ContentType: res.ContentType,
		Online:      true,
		Bitrate:     res.Bitrate,
	}

	if st.Bitrate == nil {
		if n, err := strconv.Atoi(entry.Bitrate); err == nil && n >= 0 {
			st.Bitrate = &n
		}
	}

	if res.Homepage.IsKnown() {
		if hp, ok := textfix.RebuildHomepage(res.Homepage.Value); ok {
			st.Homepage = &hp
		}
	}
	return st
}

func probeOutcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// repaired runs the text repair pass, leaving the Unknown sentinel untouched.
func repaired(s string) string {
	if s == models.Unknown {
		return s
	}
	return textfix.RepairEncoding(s)
}
