// Package postgres provides the Postgres-backed capture record store.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// Schema creates the captures table.
//
//go:embed schema.sql
var Schema string

const columns = `id, source_url, source_type, status, error_message, title, description, body_text,
	author_name, author_handle, published_at, images, videos, screenshot, summary, topics,
	disciplines, use_cases, content_type, platform_data, notes, channel, captured_at,
	processed_at, created_at, updated_at`

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RecordStore persists capture records in Postgres.
type RecordStore struct {
	pool pool
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: p}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool) (*RecordStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RecordStore{pool: p}, nil
}

// Migrate applies Schema.
func (s *RecordStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *RecordStore) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Get returns the record with id.
func (s *RecordStore) Get(ctx context.Context, id string) (capture.Record, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+columns+" FROM captures WHERE id = $1", id)
	rec, err := scanRecord(row)
	if err != nil {
		return capture.Record{}, fmt.Errorf("get capture: %w", err)
	}
	return rec, nil
}

// GetByURL returns the record for a normalized source URL.
func (s *RecordStore) GetByURL(ctx context.Context, sourceURL string) (capture.Record, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+columns+" FROM captures WHERE source_url = $1", sourceURL)
	rec, err := scanRecord(row)
	if err != nil {
		return capture.Record{}, fmt.Errorf("get capture by url: %w", err)
	}
	return rec, nil
}

// Insert adds a new record. A record whose source URL already exists yields a
// *capture.DuplicateError.
func (s *RecordStore) Insert(ctx context.Context, record capture.Record) error {
	args, err := recordArgs(record)
	if err != nil {
		return err
	}
	query := `INSERT INTO captures (` + columns + `) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26
) ON CONFLICT (source_url) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	existing, err := s.GetByURL(ctx, record.SourceURL)
	if err != nil {
		return fmt.Errorf("resolve duplicate: %w", err)
	}
	return &capture.DuplicateError{URL: record.SourceURL, ExistingID: existing.ID}
}

// Update replaces every mutable column of the record keyed by ID.
func (s *RecordStore) Update(ctx context.Context, record capture.Record) error {
	args, err := recordArgs(record)
	if err != nil {
		return err
	}
	query := `UPDATE captures SET
	source_url = $2, source_type = $3, status = $4, error_message = $5, title = $6,
	description = $7, body_text = $8, author_name = $9, author_handle = $10, published_at = $11,
	images = $12, videos = $13, screenshot = $14, summary = $15, topics = $16, disciplines = $17,
	use_cases = $18, content_type = $19, platform_data = $20, notes = $21, channel = $22,
	captured_at = $23, processed_at = $24, created_at = $25, updated_at = $26
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update capture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update capture %s: %w", record.ID, capture.ErrNotFound)
	}
	return nil
}

// List returns matching records, newest first, with the full matched count.
func (s *RecordStore) List(ctx context.Context, filter capture.ListFilter) (capture.ListResult, error) {
	where, args := buildWhere(filter)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM captures"+where, args...).Scan(&total); err != nil {
		return capture.ListResult{}, fmt.Errorf("count captures: %w", err)
	}

	query := "SELECT " + columns + " FROM captures" + where + " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return capture.ListResult{}, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	records := []capture.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return capture.ListResult{}, fmt.Errorf("list captures: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return capture.ListResult{}, fmt.Errorf("list captures: %w", err)
	}
	return capture.ListResult{Records: records, Total: total}, nil
}

func buildWhere(filter capture.ListFilter) (string, []any) {
	var clauses []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		clauses = append(clauses, "status = "+next(string(filter.Status)))
	}
	if len(filter.SourceTypes) > 0 {
		values := make([]string, len(filter.SourceTypes))
		for i, st := range filter.SourceTypes {
			values[i] = string(st)
		}
		clauses = append(clauses, "source_type = ANY("+next(values)+")")
	}
	if len(filter.ContentTypes) > 0 {
		values := make([]string, len(filter.ContentTypes))
		for i, ct := range filter.ContentTypes {
			values[i] = string(ct)
		}
		clauses = append(clauses, "content_type = ANY("+next(values)+")")
	}
	var keywordClauses []string
	for _, kw := range filter.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		p := next("%" + escapeLike(kw) + "%")
		keywordClauses = append(keywordClauses, fmt.Sprintf(
			"title ILIKE %[1]s OR description ILIKE %[1]s OR summary ILIKE %[1]s OR body_text ILIKE %[1]s", p))
	}
	if len(keywordClauses) > 0 {
		clauses = append(clauses, "("+strings.Join(keywordClauses, " OR ")+")")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func recordArgs(r capture.Record) ([]any, error) {
	images, err := marshalJSON(nonNil(r.Images))
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	videos, err := marshalJSON(nonNil(r.Videos))
	if err != nil {
		return nil, fmt.Errorf("marshal videos: %w", err)
	}
	platformData := r.PlatformData
	if platformData == nil {
		platformData = map[string]any{}
	}
	platform, err := marshalJSON(platformData)
	if err != nil {
		return nil, fmt.Errorf("marshal platform data: %w", err)
	}
	var screenshot, channel []byte
	if r.Screenshot != nil {
		if screenshot, err = marshalJSON(r.Screenshot); err != nil {
			return nil, fmt.Errorf("marshal screenshot: %w", err)
		}
	}
	if r.Channel != nil {
		if channel, err = marshalJSON(r.Channel); err != nil {
			return nil, fmt.Errorf("marshal channel: %w", err)
		}
	}
	return []any{
		r.ID,
		r.SourceURL,
		string(r.SourceType),
		string(r.Status),
		r.ErrorMessage,
		r.Title,
		r.Description,
		r.BodyText,
		r.AuthorName,
		r.AuthorHandle,
		r.PublishedAt,
		images,
		videos,
		screenshot,
		r.Summary,
		nonNil(r.Topics),
		nonNil(r.Disciplines),
		nonNil(r.UseCases),
		string(r.ContentType),
		platform,
		r.Notes,
		channel,
		r.CapturedAt,
		r.ProcessedAt,
		r.CreatedAt,
		r.UpdatedAt,
	}, nil
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanRecord(row pgx.Row) (capture.Record, error) {
	var (
		rec                        capture.Record
		sourceType, status, ctype  string
		images, videos, screenshot []byte
		platform, channel          []byte
		topics, disciplines, uses  []string
		publishedAt, processedAt   *time.Time
	)
	err := row.Scan(
		&rec.ID,
		&rec.SourceURL,
		&sourceType,
		&status,
		&rec.ErrorMessage,
		&rec.Title,
		&rec.Description,
		&rec.BodyText,
		&rec.AuthorName,
		&rec.AuthorHandle,
		&publishedAt,
		&images,
		&videos,
		&screenshot,
		&rec.Summary,
		&topics,
		&disciplines,
		&uses,
		&ctype,
		&platform,
		&rec.Notes,
		&channel,
		&rec.CapturedAt,
		&processedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return capture.Record{}, capture.ErrNotFound
	}
	if err != nil {
		return capture.Record{}, fmt.Errorf("scan capture: %w", err)
	}

	rec.SourceType = capture.SourceType(sourceType)
	rec.Status = capture.Status(status)
	rec.ContentType = capture.ContentType(ctype)
	rec.PublishedAt = publishedAt
	rec.ProcessedAt = processedAt
	rec.Topics = nonNil(topics)
	rec.Disciplines = nonNil(disciplines)
	rec.UseCases = nonNil(uses)

	rec.Images = []capture.MediaAsset{}
	rec.Videos = []capture.VideoAsset{}
	if err := unmarshalOptional(images, &rec.Images); err != nil {
		return capture.Record{}, fmt.Errorf("decode images: %w", err)
	}
	if err := unmarshalOptional(videos, &rec.Videos); err != nil {
		return capture.Record{}, fmt.Errorf("decode videos: %w", err)
	}
	if err := unmarshalOptional(platform, &rec.PlatformData); err != nil {
		return capture.Record{}, fmt.Errorf("decode platform data: %w", err)
	}
	if len(screenshot) > 0 {
		rec.Screenshot = &capture.MediaAsset{}
		if err := json.Unmarshal(screenshot, rec.Screenshot); err != nil {
			return capture.Record{}, fmt.Errorf("decode screenshot: %w", err)
		}
	}
	if len(channel) > 0 {
		rec.Channel = &capture.ChannelContext{}
		if err := json.Unmarshal(channel, rec.Channel); err != nil {
			return capture.Record{}, fmt.Errorf("decode channel: %w", err)
		}
	}
	return rec, nil
}

func unmarshalOptional(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
