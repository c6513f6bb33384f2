package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/radiodex/radiodex/internal/models"
)

// genreLogWindow is the trailing window TopGenres aggregates over.
const genreLogWindow = 15 * 24 * time.Hour

// topGenresLimit caps the TopGenres result.
const topGenresLimit = 10

// SQLite implements Store on an embedded database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// Open connects to (or creates) the catalog database at path, applies the
// WAL/busy-timeout pragmas, and runs migrations. No query executes before
// initialization has completed.
func Open(path string) (*SQLite, error) {
	if err := runMigrations(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	return &SQLite{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const stationColumns = `id, url, name, genre, icon, homepage, content_type,
	online, bitrate, error, duplicate, play_minutes, in_list, created_at, updated_at`

func scanStation(row interface{ Scan(...any) error }) (*models.Station, error) {
	var st models.Station
	var createdAt, updatedAt string
	err := row.Scan(
		&st.ID, &st.URL, &st.Name, &st.Genre, &st.Icon, &st.Homepage,
		&st.ContentType, &st.Online, &st.Bitrate, &st.Error, &st.Duplicate,
		&st.PlayMinutes, &st.InList, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		st.CreatedAt = &t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		st.UpdatedAt = &t
	}
	return &st, nil
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Exists reports whether a station with exactly this URL is cataloged.
func (s *SQLite) Exists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM stations WHERE url = ?`, url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return true, nil
}

// AddStation inserts a new station; ErrExists when the URL is taken.
func (s *SQLite) AddStation(ctx context.Context, st *models.Station) (int64, error) {
	now := nowStamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stations (
			url, name, genre, icon, homepage, content_type,
			online, bitrate, error, duplicate, play_minutes, in_list,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING`,
		st.URL, st.Name, st.Genre, st.Icon, st.Homepage, st.ContentType,
		st.Online, st.Bitrate, st.Error, st.Duplicate, st.PlayMinutes, st.InList,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("AddStation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("AddStation rows: %w", err)
	}
	if n == 0 {
		return 0, ErrExists
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("AddStation id: %w", err)
	}
	return id, nil
}

// UpdateStation applies the non-nil fields of the update.
func (s *SQLite) UpdateStation(ctx context.Context, id int64, fields StationUpdate) error {
	set := make([]string, 0, 9)
	args := make([]any, 0, 10)
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if fields.Name != nil {
		add("name", *fields.Name)
	}
	if fields.Genre != nil {
		add("genre", *fields.Genre)
	}
	if fields.Icon != nil {
		add("icon", *fields.Icon)
	}
	if fields.Homepage != nil {
		add("homepage", *fields.Homepage)
	}
	if fields.ContentType != nil {
		add("content_type", *fields.ContentType)
	}
	if fields.Online != nil {
		add("online", *fields.Online)
	}
	if fields.Bitrate != nil {
		add("bitrate", *fields.Bitrate)
	}
	if fields.Error != nil {
		add("error", *fields.Error)
	}
	if len(set) == 0 {
		return nil
	}
	add("updated_at", nowStamp())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE stations SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("UpdateStation: %w", err)
	}
	return affectedOrNotFound(res, "UpdateStation")
}

// MarkDuplicate flags a station as a repeat of another. The row is retained.
func (s *SQLite) MarkDuplicate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stations SET duplicate = 1, updated_at = ? WHERE id = ?`, nowStamp(), id)
	if err != nil {
		return fmt.Errorf("MarkDuplicate: %w", err)
	}
	return affectedOrNotFound(res, "MarkDuplicate")
}

// GetStationByID returns a single station by id.
func (s *SQLite) GetStationByID(ctx context.Context, id int64) (*models.Station, error) {
	st, err := scanStation(s.db.QueryRowContext(ctx,
		`SELECT `+stationColumns+` FROM stations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetStationByID: %w", err)
	}
	return st, nil
}

// ListStations returns the whole catalog ordered by id.
func (s *SQLite) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stationColumns+` FROM stations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ListStations: %w", err)
	}
	defer rows.Close()
	return collectStations(rows, "ListStations")
}

// GetStationsByGenre returns online, non-duplicate stations with a known
// bitrate and an allow-listed content type, optionally filtered by terms,
// ranked by popularity score descending with name as the tiebreaker. Terms
// are OR'ed; a station matches if any term is a substring of its lower-cased
// name or its normalized genre.
func (s *SQLite) GetStationsByGenre(ctx context.Context, terms []string) ([]models.Station, error) {
	var sb strings.Builder
	args := make([]any, 0, len(models.AudioContentTypes)+2*len(terms)+1)

	sb.WriteString(`SELECT ` + stationColumns + ` FROM stations
		WHERE online = 1 AND duplicate = 0 AND bitrate IS NOT NULL
		AND content_type IN (`)
	for i, ct := range models.AudioContentTypes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, ct)
	}
	sb.WriteString(")")

	cleaned := cleanTerms(terms)
	if len(cleaned) > 0 {
		sb.WriteString(" AND (")
		for i, term := range cleaned {
			if i > 0 {
				sb.WriteString(" OR ")
			}
			// Ampersands and hyphens in the stored genre fold to plain words.
			sb.WriteString(`(instr(lower(name), ?) > 0
				OR instr(replace(replace(lower(genre), '&', ' '), '-', ' '), ?) > 0)`)
			args = append(args, term, term)
		}
		sb.WriteString(")")
	}

	sb.WriteString(" ORDER BY (in_list * ? + play_minutes) DESC, lower(name) ASC")
	args = append(args, models.PopularityListWeight)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("GetStationsByGenre: %w", err)
	}
	defer rows.Close()
	return collectStations(rows, "GetStationsByGenre")
}

// GetOnlineStations is the unfiltered variant of GetStationsByGenre.
func (s *SQLite) GetOnlineStations(ctx context.Context) ([]models.Station, error) {
	return s.GetStationsByGenre(ctx, nil)
}

// IncrementPlayMinutes adds one played minute. A single atomic statement:
// concurrent increments never read-modify-write from application code.
func (s *SQLite) IncrementPlayMinutes(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stations SET play_minutes = play_minutes + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("IncrementPlayMinutes: %w", err)
	}
	return affectedOrNotFound(res, "IncrementPlayMinutes")
}

// AddToList inserts the user/station pair and bumps the in_list counter. A
// pair that already exists leaves the counter alone, making the call
// idempotent.
func (s *SQLite) AddToList(ctx context.Context, stationID int64, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("AddToList begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_stations (user_id, station_id, added_at) VALUES (?, ?, ?)`,
		userID, stationID, nowStamp())
	if err != nil {
		return fmt.Errorf("AddToList insert: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("AddToList rows: %w", err)
	}
	if inserted > 0 {
		res, err = tx.ExecContext(ctx,
			`UPDATE stations SET in_list = in_list + 1 WHERE id = ?`, stationID)
		if err != nil {
			return fmt.Errorf("AddToList counter: %w", err)
		}
		if err := affectedOrNotFound(res, "AddToList counter"); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("AddToList commit: %w", err)
	}
	return nil
}

// RemoveFromList deletes the user/station pair and decrements the counter,
// floored at zero. A missing pair is a no-op.
func (s *SQLite) RemoveFromList(ctx context.Context, stationID int64, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("RemoveFromList begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM user_stations WHERE user_id = ? AND station_id = ?`, userID, stationID)
	if err != nil {
		return fmt.Errorf("RemoveFromList delete: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RemoveFromList rows: %w", err)
	}
	if deleted > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE stations SET in_list = MAX(in_list - 1, 0) WHERE id = ?`, stationID); err != nil {
			return fmt.Errorf("RemoveFromList counter: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("RemoveFromList commit: %w", err)
	}
	return nil
}

// LogGenres appends one genre query string to the log.
func (s *SQLite) LogGenres(ctx context.Context, genres string) error {
	if strings.TrimSpace(genres) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO genres (genres, created_at) VALUES (?, ?)`,
		genres, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("LogGenres: %w", err)
	}
	return nil
}

// TopGenres returns the ten most frequent distinct genre query strings of
// the trailing fifteen days, sorted alphabetically.
func (s *SQLite) TopGenres(ctx context.Context) ([]string, error) {
	cutoff := time.Now().Add(-genreLogWindow).Unix()
	rows, err := s.db.QueryContext(ctx,
		`SELECT genres FROM genres WHERE created_at >= ?
		 GROUP BY genres ORDER BY COUNT(*) DESC, genres ASC LIMIT ?`,
		cutoff, topGenresLimit)
	if err != nil {
		return nil, fmt.Errorf("TopGenres: %w", err)
	}
	defer rows.Close()

	var top []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("TopGenres scan: %w", err)
		}
		top = append(top, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("TopGenres rows: %w", err)
	}
	sort.Strings(top)
	return top, nil
}

// DBStats reports the online and total station counts.
func (s *SQLite) DBStats(ctx context.Context) (online, total int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(online), 0), COUNT(*) FROM stations`).Scan(&online, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("DBStats: %w", err)
	}
	return online, total, nil
}

// SaveRevalidationStats persists a snapshot after a revalidation pass.
func (s *SQLite) SaveRevalidationStats(ctx context.Context, stats models.RevalidationStats) error {
	created := stats.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revalidation_stats (online_count, total_count, created_at) VALUES (?, ?, ?)`,
		stats.Online, stats.Total, created.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("SaveRevalidationStats: %w", err)
	}
	return nil
}

// --- helpers ---

func collectStations(rows *sql.Rows, op string) ([]models.Station, error) {
	var stations []models.Station
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		stations = append(stations, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return stations, nil
}

func affectedOrNotFound(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
