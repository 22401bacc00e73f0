package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed episode ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite (%s): %w", pragma, err)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the database handle. Safe to call on a nil Store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the ledger database file location.
func (s *Store) Path() string {
	return s.path
}

// Upsert records an episode discovered during a scan. New keys are inserted
// as queued with added_at set, carrying a media URL when the source already
// knows it. Existing rows only ever gain identity fields; status, media URL,
// filename, error, and timestamps are never touched, so re-scanning a page
// cannot regress download progress. The returned bool reports whether a new
// row was created.
func (s *Store) Upsert(ctx context.Context, e *Episode) (bool, error) {
	if e == nil {
		return false, errors.New("episode is nil")
	}
	key := strings.TrimSpace(e.Key)
	if key == "" {
		return false, errors.New("episode key is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM episodes WHERE episode_key = ?`, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("probe episode: %w", err)
	}

	if exists == 0 {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO episodes (
	            episode_key, episode_url, producer_url, title, producer,
	            pub_date, source, subdir, media_url, status, added_at
	        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key,
			nullIfEmpty(e.EpisodeURL),
			nullIfEmpty(e.ProducerURL),
			nullIfEmpty(e.Title),
			nullIfEmpty(e.Producer),
			nullIfEmpty(e.PubDate),
			nullIfEmpty(e.Source),
			nullIfEmpty(e.Subdir),
			nullIfEmpty(e.MediaURL),
			StatusQueued,
			now,
		)
		if err != nil {
			return false, fmt.Errorf("insert episode: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit upsert: %w", err)
		}
		return true, nil
	}

	_, err = tx.ExecContext(
		ctx,
		`UPDATE episodes SET
	        episode_url  = COALESCE(?, episode_url),
	        producer_url = COALESCE(?, producer_url),
	        title        = COALESCE(?, title),
	        producer     = COALESCE(?, producer),
	        pub_date     = COALESCE(?, pub_date),
	        source       = COALESCE(?, source),
	        subdir       = COALESCE(?, subdir)
	     WHERE episode_key = ?`,
		nullIfEmpty(e.EpisodeURL),
		nullIfEmpty(e.ProducerURL),
		nullIfEmpty(e.Title),
		nullIfEmpty(e.Producer),
		nullIfEmpty(e.PubDate),
		nullIfEmpty(e.Source),
		nullIfEmpty(e.Subdir),
		key,
	)
	if err != nil {
		return false, fmt.Errorf("merge episode: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upsert: %w", err)
	}
	return false, nil
}

// MarkOption customizes a Mark call.
type MarkOption func(*markUpdate)

type markUpdate struct {
	mediaURL *string
	filename *string
	errMsg   *string
}

// WithMediaURL records the resolved direct media URL alongside the status.
func WithMediaURL(url string) MarkOption {
	return func(m *markUpdate) { m.mediaURL = &url }
}

// WithFilename records the final on-disk name alongside the status.
func WithFilename(name string) MarkOption {
	return func(m *markUpdate) { m.filename = &name }
}

// WithError records the failure detail alongside the status.
func WithError(message string) MarkOption {
	return func(m *markUpdate) { m.errMsg = &message }
}

// Mark transitions an episode's status, updating only the fields provided.
// Marking downloaded stamps completed_at and clears any stale error; marking
// queued clears the error as well. An unknown key is a no-op and the bool
// result reports whether a row actually changed.
func (s *Store) Mark(ctx context.Context, key string, status Status, opts ...MarkOption) (bool, error) {
	if !status.Known() {
		return false, fmt.Errorf("unknown status %q", status)
	}

	var update markUpdate
	for _, opt := range opts {
		opt(&update)
	}

	assignments := []string{"status = ?"}
	args := []any{status}

	if update.mediaURL != nil {
		assignments = append(assignments, "media_url = ?")
		args = append(args, nullIfEmpty(*update.mediaURL))
	}
	if update.filename != nil {
		assignments = append(assignments, "filename = ?")
		args = append(args, nullIfEmpty(*update.filename))
	}
	if update.errMsg != nil {
		assignments = append(assignments, "error = ?")
		args = append(args, nullIfEmpty(*update.errMsg))
	}

	switch status {
	case StatusDownloaded:
		assignments = append(assignments, "completed_at = ?")
		args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
		if update.errMsg == nil {
			assignments = append(assignments, "error = NULL")
		}
	case StatusQueued:
		if update.errMsg == nil {
			assignments = append(assignments, "error = NULL")
		}
	}

	args = append(args, strings.TrimSpace(key))
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes SET `+strings.Join(assignments, ", ")+` WHERE episode_key = ?`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("mark episode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// IsTerminal reports whether the episode needs no further processing.
// Unknown keys are not terminal.
func (s *Store) IsTerminal(ctx context.Context, key string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM episodes WHERE episode_key = ?`, strings.TrimSpace(key)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("episode status: %w", err)
	}
	return Status(status) == StatusDownloaded, nil
}

// Get fetches an episode by key. A missing key returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE episode_key = ?`, strings.TrimSpace(key))
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return episode, nil
}

// Pending returns the non-terminal episodes oldest first. A limit <= 0
// returns all of them.
func (s *Store) Pending(ctx context.Context, limit int) ([]*Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE status != ? ORDER BY added_at, episode_key`
	args := []any{StatusDownloaded}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// List returns episodes filtered by status set (or all episodes when no
// status is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY added_at, episode_key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

// RetryErrored moves errored episodes back to queued for reprocessing and
// clears their failure detail. When includeNoMedia is set, no_media episodes
// are requeued as well.
func (s *Store) RetryErrored(ctx context.Context, includeNoMedia bool) (int64, error) {
	statuses := []Status{StatusError}
	if includeNoMedia {
		statuses = append(statuses, StatusNoMedia)
	}
	args := make([]any, 0, len(statuses)+1)
	args = append(args, StatusQueued)
	for _, status := range statuses {
		args = append(args, status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes SET status = ?, error = NULL WHERE status IN (`+placeholders(len(statuses))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry episodes: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of episodes grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM episodes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// PageScanned reports whether a listing page already has a cursor row.
func (s *Store) PageScanned(ctx context.Context, source string, page int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM pages WHERE source = ? AND page = ?`, source, page).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("probe page cursor: %w", err)
	}
	return count > 0, nil
}

// MarkPageScanned records the page cursor after every episode stub on the
// page has been upserted, and advances the per-source high-water mark in
// meta. Rescans of earlier pages never move the mark backwards.
func (s *Store) MarkPageScanned(ctx context.Context, source string, page int, listingURL string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin page cursor: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO pages (source, page, listing_url, scanned_at) VALUES (?, ?, ?, ?)
	     ON CONFLICT(source, page) DO UPDATE SET listing_url = excluded.listing_url, scanned_at = excluded.scanned_at`,
		source, page, nullIfEmpty(listingURL), now,
	)
	if err != nil {
		return fmt.Errorf("record page cursor: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO meta (k, v) VALUES (?, ?)
	     ON CONFLICT(k) DO UPDATE SET v = excluded.v
	     WHERE CAST(excluded.v AS INTEGER) > CAST(meta.v AS INTEGER)`,
		lastPageKey(source), strconv.Itoa(page),
	)
	if err != nil {
		return fmt.Errorf("advance page mark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit page cursor: %w", err)
	}
	return nil
}

// LastScannedPage returns the per-source high-water page mark, or 0 when the
// source has never been scanned.
func (s *Store) LastScannedPage(ctx context.Context, source string) (int, error) {
	value, ok, err := s.GetMeta(ctx, lastPageKey(source))
	if err != nil || !ok {
		return 0, err
	}
	page, err := strconv.Atoi(value)
	if err != nil {
		return 0, nil
	}
	return page, nil
}

// PagesScanned returns the count of cursor rows per source.
func (s *Store) PagesScanned(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(1) FROM pages GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("page stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

// FeedForProducer fetches the cached RSS lookup for a producer page.
// A missing producer returns (nil, nil).
func (s *Store) FeedForProducer(ctx context.Context, producerURL string) (*FeedRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT producer_url, rss_url, status, error, updated_at FROM feeds WHERE producer_url = ?`,
		strings.TrimSpace(producerURL),
	)

	var (
		rec        FeedRecord
		rssURL     sql.NullString
		status     string
		errMsg     sql.NullString
		updatedRaw sql.NullString
	)
	err := row.Scan(&rec.ProducerURL, &rssURL, &status, &errMsg, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feed record: %w", err)
	}
	rec.RSSURL = rssURL.String
	rec.Status = FeedStatus(status)
	rec.Error = errMsg.String
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = updated
	}
	return &rec, nil
}

// SaveFeed records the outcome of an RSS lookup for a producer page.
func (s *Store) SaveFeed(ctx context.Context, rec *FeedRecord) error {
	if rec == nil {
		return errors.New("feed record is nil")
	}
	producerURL := strings.TrimSpace(rec.ProducerURL)
	if producerURL == "" {
		return errors.New("producer url is empty")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO feeds (producer_url, rss_url, status, error, updated_at) VALUES (?, ?, ?, ?, ?)
	     ON CONFLICT(producer_url) DO UPDATE SET
	        rss_url = excluded.rss_url, status = excluded.status,
	        error = excluded.error, updated_at = excluded.updated_at`,
		producerURL,
		nullIfEmpty(rec.RSSURL),
		string(rec.Status),
		nullIfEmpty(rec.Error),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save feed record: %w", err)
	}
	return nil
}

// GetMeta fetches an arbitrary metadata value.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT v FROM meta WHERE k = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %q: %w", key, err)
	}
	return value.String, true, nil
}

// SetMeta stores an arbitrary metadata value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO meta (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

func lastPageKey(source string) string {
	return "last_page." + source
}

const episodeColumns = "episode_key, episode_url, producer_url, title, producer, pub_date, source, subdir, media_url, status, filename, error, added_at, completed_at"

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		key          string
		episodeURL   sql.NullString
		producerURL  sql.NullString
		title        sql.NullString
		producer     sql.NullString
		pubDate      sql.NullString
		source       sql.NullString
		subdir       sql.NullString
		mediaURL     sql.NullString
		statusStr    string
		filename     sql.NullString
		errorMessage sql.NullString
		addedRaw     sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&key,
		&episodeURL,
		&producerURL,
		&title,
		&producer,
		&pubDate,
		&source,
		&subdir,
		&mediaURL,
		&statusStr,
		&filename,
		&errorMessage,
		&addedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	episode := &Episode{
		Key:         key,
		EpisodeURL:  episodeURL.String,
		ProducerURL: producerURL.String,
		Title:       title.String,
		Producer:    producer.String,
		PubDate:     pubDate.String,
		Source:      source.String,
		Subdir:      subdir.String,
		MediaURL:    mediaURL.String,
		Status:      Status(statusStr),
		Filename:    filename.String,
		Error:       errorMessage.String,
	}

	if added, err := parseTimeString(addedRaw.String); err == nil {
		episode.AddedAt = added
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			episode.CompletedAt = &completed
		}
	}
	return episode, nil
}

func collectEpisodes(rows *sql.Rows) ([]*Episode, error) {
	var episodes []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, episode)
	}
	return episodes, rows.Err()
}

// nullIfEmpty maps "" to SQL NULL so optional text columns stay NULL instead
// of collecting empty strings.
func nullIfEmpty(s string) any {
	if s != "" {
		return s
	}
	return nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// placeholders renders n comma-separated "?" marks for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
