package service

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/radiodex/radiodex/internal/models"
	"github.com/radiodex/radiodex/internal/store"
)

// nameDistanceThreshold is the maximum edit distance at which two station
// names on the same host are considered the same station.
const nameDistanceThreshold = 2

// SweepDuplicates scans the catalog for stations that are the same stream
// registered more than once: same host with near-identical names, or same
// host and path. The earliest-cataloged station survives; the rest are
// flagged as duplicates and drop out of search. Returns the number of newly
// flagged stations.
func SweepDuplicates(ctx context.Context, s store.Store) (int, error) {
	stations, err := s.ListStations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stations: %w", err)
	}

	byHost := make(map[string][]models.Station)
	for _, st := range stations {
		if st.Duplicate {
			continue
		}
		u, err := url.Parse(st.URL)
		if err != nil || u.Host == "" {
			continue
		}
		byHost[u.Host] = append(byHost[u.Host], st)
	}

	flagged := 0
	for _, group := range byHost {
		if len(group) < 2 {
			continue
		}
		// Oldest id first so the original registration survives.
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })

		dropped := make(map[int64]bool)
		for i := 0; i < len(group); i++ {
			if dropped[group[i].ID] {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				if dropped[group[j].ID] {
					continue
				}
				if !sameStation(&group[i], &group[j]) {
					continue
				}
				if err := s.MarkDuplicate(ctx, group[j].ID); err != nil {
					return flagged, fmt.Errorf("mark duplicate %d: %w", group[j].ID, err)
				}
				dropped[group[j].ID] = true
				flagged++
				log.Printf("dedup: station %d (%s) duplicates %d (%s)",
					group[j].ID, group[j].Name, group[i].ID, group[i].Name)
			}
		}
	}
	return flagged, nil
}

// sameStation decides whether two same-host stations are one stream. Either
// the names are within the edit-distance threshold after normalization, or
// the URLs share their path.
func sameStation(a, b *models.Station) bool {
	if pathOf(a.URL) == pathOf(b.URL) {
		return true
	}
	na, nb := normalizeName(a.Name), normalizeName(b.Name)
	if na == "" || nb == "" {
		return false
	}
	return levenshtein.ComputeDistance(na, nb) <= nameDistanceThreshold
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}

// normalizeName lowercases a name and strips everything but letters and
// digits, so "Radio X!" and "radiox" compare equal.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
