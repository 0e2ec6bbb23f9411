// Package storage persists posts, segments, and view counts in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/relnotes/widget-tracker/internal/domain"
	"github.com/relnotes/widget-tracker/internal/logger"
	"github.com/relnotes/widget-tracker/internal/retry"
)

// ErrPostNotFound is returned when an increment targets an unknown post.
var ErrPostNotFound = errors.New("post not found")

// Store manages widget reads and view-count writes against PostgreSQL.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// NewStore creates a Store backed by db.
func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:  db,
		log: log,
	}
}

// Ping verifies database connectivity for health checks.
func (s *Store) Ping() error {
	return s.db.Ping()
}

const listPublishedQuery = `
	SELECT id, team_id, title, body, category, status, views,
	       segment_ids, media_urls, translations, created_at, updated_at
	FROM posts
	WHERE team_id = $1 AND status = $2
	ORDER BY created_at DESC
`

// ListPublishedPosts returns all published posts for a team, newest first.
func (s *Store) ListPublishedPosts(ctx context.Context, teamID string) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, listPublishedQuery, teamID, domain.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", classify(err))
	}
	defer rows.Close()

	posts := make([]domain.Post, 0)
	for rows.Next() {
		post, scanErr := scanPost(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		posts = append(posts, *post)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate posts: %w", classify(rowsErr))
	}
	return posts, nil
}

func scanPost(rows *sql.Rows) (*domain.Post, error) {
	var post domain.Post
	var segmentIDs, mediaURLs, translations []byte

	if err := rows.Scan(
		&post.ID,
		&post.TeamID,
		&post.Title,
		&post.Body,
		&post.Category,
		&post.Status,
		&post.Views,
		&segmentIDs,
		&mediaURLs,
		&translations,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan post: %w", classify(err))
	}

	if err := unmarshalColumn(segmentIDs, &post.SegmentIDs); err != nil {
		return nil, fmt.Errorf("unmarshal segment_ids: %w", err)
	}
	if err := unmarshalColumn(mediaURLs, &post.MediaURLs); err != nil {
		return nil, fmt.Errorf("unmarshal media_urls: %w", err)
	}
	if err := unmarshalColumn(translations, &post.Translations); err != nil {
		return nil, fmt.Errorf("unmarshal translations: %w", err)
	}

	return &post, nil
}

// unmarshalColumn decodes a nullable JSONB column into dst.
func unmarshalColumn(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

const listSegmentsQuery = `
	SELECT id, team_id, name, domain, COALESCE(description, ''), created_at, updated_at
	FROM segments
	WHERE team_id = $1
	ORDER BY created_at
`

// ListSegments returns all audience segments configured for a team.
func (s *Store) ListSegments(ctx context.Context, teamID string) ([]domain.Segment, error) {
	rows, err := s.db.QueryContext(ctx, listSegmentsQuery, teamID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", classify(err))
	}
	defer rows.Close()

	segments := make([]domain.Segment, 0)
	for rows.Next() {
		var seg domain.Segment
		if scanErr := rows.Scan(
			&seg.ID,
			&seg.TeamID,
			&seg.Name,
			&seg.Domain,
			&seg.Description,
			&seg.CreatedAt,
			&seg.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan segment: %w", classify(scanErr))
		}
		segments = append(segments, seg)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate segments: %w", classify(rowsErr))
	}
	return segments, nil
}

// IncrementViews adds by to a post's view counter and appends the audit event
// in one transaction. An unknown post is a terminal failure so the retry layer
// does not waste attempts on it.
func (s *Store) IncrementViews(ctx context.Context, postID string, by int) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Error("Failed to rollback increment transaction",
					logger.Error(rbErr),
				)
			}
		}
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE posts SET views = views + $2, updated_at = $3 WHERE id = $1`,
		postID, by, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update views: %w", classify(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", classify(err))
	}
	if affected == 0 {
		err = retry.Terminal(ErrPostNotFound)
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO view_events (id, post_id, increment_by, recorded_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), postID, by, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert view event: %w", classify(err))
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("commit increment: %w", classify(commitErr))
		return err
	}

	return nil
}

// PostgreSQL SQLSTATE classes mapped to retry kinds.
const (
	classConnectionException   = "08"
	classTransactionRollback   = "40"
	classInsufficientResources = "53"
	classOperatorIntervention  = "57"
	classInternalError         = "XX"
)

// classify tags a database failure with its retry kind. Structured SQLSTATE
// classes are authoritative; anything unrecognized stays untagged and falls
// through to the retry package's substring heuristic.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return retry.Terminal(err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return retry.Unavailable(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Timeout(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case classInsufficientResources:
			return retry.RateLimited(err)
		case classConnectionException, classOperatorIntervention:
			return retry.Unavailable(err)
		case classTransactionRollback, classInternalError:
			return retry.Internal(err)
		default:
			return retry.Terminal(err)
		}
	}

	return err
}
