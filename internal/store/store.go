// Package store owns all persistence for the station catalog: the stations
// table, the genre query log, the user saved-list join table, and the
// revalidation statistics snapshots. No other package touches the database.
package store

import (
	"context"
	"errors"

	"github.com/radiodex/radiodex/internal/models"
)

// ErrNotFound is returned when a station id does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned by AddStation when the URL is already cataloged.
var ErrExists = errors.New("station already exists")

// Store defines persistence for stations, the genre query log, and user
// saved lists.
type Store interface {
	// Exists reports whether a station with exactly this URL is cataloged.
	Exists(ctx context.Context, url string) (bool, error)
	// AddStation inserts a new station and returns its id. ErrExists when the
	// URL is already present.
	AddStation(ctx context.Context, st *models.Station) (int64, error)
	// UpdateStation applies the non-nil fields. ErrNotFound when id is unknown.
	UpdateStation(ctx context.Context, id int64, fields StationUpdate) error
	// MarkDuplicate flags a station as a duplicate. Duplicates are retained
	// for audit but excluded from all search results.
	MarkDuplicate(ctx context.Context, id int64) error
	// GetStationByID returns a single station.
	GetStationByID(ctx context.Context, id int64) (*models.Station, error)
	// ListStations returns every station in the catalog, duplicates included.
	// Input for the revalidation and duplicate-sweep jobs.
	ListStations(ctx context.Context) ([]models.Station, error)

	// GetStationsByGenre returns stations matching any of the genre/text
	// terms, ranked by popularity. Empty terms return the full online
	// catalog under the same ranking.
	GetStationsByGenre(ctx context.Context, terms []string) ([]models.Station, error)
	// GetOnlineStations is GetStationsByGenre with no genre constraint.
	GetOnlineStations(ctx context.Context) ([]models.Station, error)

	// IncrementPlayMinutes adds one played minute to a station.
	IncrementPlayMinutes(ctx context.Context, id int64) error
	// AddToList records that a user holds the station in their list. The
	// insert is idempotent; the in_list counter moves only on a real insert.
	AddToList(ctx context.Context, stationID int64, userID string) error
	// RemoveFromList is the inverse of AddToList; the counter floors at zero.
	RemoveFromList(ctx context.Context, stationID int64, userID string) error

	// LogGenres appends a served search's genre string to the query log.
	LogGenres(ctx context.Context, genres string) error
	// TopGenres returns the most frequent distinct genre query strings of the
	// trailing window, at most ten, sorted alphabetically.
	TopGenres(ctx context.Context) ([]string, error)

	// DBStats reports the online and total station counts.
	DBStats(ctx context.Context) (online, total int, err error)
	// SaveRevalidationStats persists a snapshot after a revalidation pass.
	SaveRevalidationStats(ctx context.Context, stats models.RevalidationStats) error

	Close() error
}

// StationUpdate holds the mutable station fields for UpdateStation.
// Pointer fields: nil = don't change, non-nil = set. Homepage uses a double
// pointer so "set to NULL" stays distinct from "leave alone".
type StationUpdate struct {
	Name        *string
	Genre       *string
	Icon        *string
	Homepage    **string
	ContentType *string
	Online      *bool
	Bitrate     **int
	Error       *string
}
