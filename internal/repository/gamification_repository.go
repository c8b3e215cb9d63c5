package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tila/pkg/models"
	"tila/pkg/utils"
)

// GamificationRepository persists per-user counters, awards, items and the daily rollup
type GamificationRepository interface {
	// CreateStats inserts the all-zero row; created is false when the user already existed
	CreateStats(ctx context.Context, userID string) (stats *models.UserStats, created bool, err error)
	GetStats(ctx context.Context, userID string) (*models.UserStats, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	EarnedBadges(ctx context.Context, userID string) ([]models.UserBadge, error)
	ListDailyActivity(ctx context.Context, userID string, since time.Time) ([]models.DailyActivity, error)

	// WithUserTx runs fn in one transaction scoped to userID.
	// The transaction rolls back when fn returns an error or panics.
	WithUserTx(ctx context.Context, userID string, fn func(tx StatsTx) error) error

	HealthCheck(ctx context.Context) error
	Close()
}

// StatsTx is the unit of work handed to WithUserTx
type StatsTx interface {
	// LockStats reads the user's row and holds it until commit
	LockStats(ctx context.Context) (*models.UserStats, error)
	SaveStats(ctx context.Context, stats *models.UserStats) error
	InsertItem(ctx context.Context, item *models.Item) error
	// CategoryCounts groups the user's items by category id
	CategoryCounts(ctx context.Context) (map[string]int, error)
	// InsertUserBadge returns models.ErrAlreadyAwarded when the pair already exists
	InsertUserBadge(ctx context.Context, badgeID string, earnedAt time.Time) (*models.UserBadge, error)
	AddDailyActivity(ctx context.Context, day time.Time, points, items int) error
}

type gamificationRepository struct {
	pool *pgxpool.Pool
}

// NewGamificationRepository creates a new PostgreSQL gamification repository
func NewGamificationRepository(pool *pgxpool.Pool) GamificationRepository {
	return &gamificationRepository{pool: pool}
}

const statsColumns = `user_id, total_points, current_streak, longest_streak, last_activity_date,
	learnings, unique_categories, beginner_count, intermediate_count, advanced_count, updated_at`

func scanStats(row pgx.Row) (*models.UserStats, error) {
	s := &models.UserStats{}
	err := row.Scan(
		&s.UserID,
		&s.TotalPoints,
		&s.CurrentStreak,
		&s.LongestStreak,
		&s.LastActivityDate,
		&s.Learnings,
		&s.UniqueCategories,
		&s.BeginnerCount,
		&s.IntermediateCount,
		&s.AdvancedCount,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *gamificationRepository) CreateStats(ctx context.Context, userID string) (*models.UserStats, bool, error) {
	query := `
		INSERT INTO user_stats (user_id, updated_at)
		VALUES ($1, NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + statsColumns

	stats, err := scanStats(r.pool.QueryRow(ctx, query, userID))
	if err == nil {
		return stats, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, mapDBError(err, "create_user_stats", userID)
	}

	// Row already there
	stats, err = r.GetStats(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return stats, false, nil
}

func (r *gamificationRepository) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	query := `SELECT ` + statsColumns + ` FROM user_stats WHERE user_id = $1`

	stats, err := scanStats(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, mapDBError(err, "get_user_stats", userID)
	}
	return stats, nil
}

func (r *gamificationRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM user_stats ORDER BY user_id`)
	if err != nil {
		return nil, mapDBError(err, "list_user_ids", "")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapDBError(err, "list_user_ids", "")
	}
	return ids, nil
}

func (r *gamificationRepository) EarnedBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	query := `
		SELECT id::text, user_id, badge_id, earned_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY earned_at, badge_id
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, mapDBError(err, "get_user_badges", userID)
	}
	badges, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.UserBadge])
	if err != nil {
		return nil, mapDBError(err, "get_user_badges", userID)
	}
	return badges, nil
}

func (r *gamificationRepository) ListDailyActivity(ctx context.Context, userID string, since time.Time) ([]models.DailyActivity, error) {
	query := `
		SELECT id::text, user_id, date, points, items_count
		FROM daily_activity
		WHERE user_id = $1 AND date >= $2
		ORDER BY date
	`
	rows, err := r.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, mapDBError(err, "list_daily_activity", userID)
	}
	days, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.DailyActivity])
	if err != nil {
		return nil, mapDBError(err, "list_daily_activity", userID)
	}
	return days, nil
}

// WithUserTx executes a function within a transaction
func (r *gamificationRepository) WithUserTx(ctx context.Context, userID string, fn func(tx StatsTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapDBError(err, "begin_transaction", userID)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&pgStatsTx{tx: tx, userID: userID}); err != nil {
		tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapDBError(err, "commit_transaction", userID)
	}
	return nil
}

func (r *gamificationRepository) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.pool.Ping(ctx); err != nil {
		return models.NewStoreError("health_check", err)
	}
	return nil
}

func (r *gamificationRepository) Close() {
	r.pool.Close()
}

type pgStatsTx struct {
	tx     pgx.Tx
	userID string
}

// LockStats gets stats with row locking for updates
func (t *pgStatsTx) LockStats(ctx context.Context) (*models.UserStats, error) {
	query := `SELECT ` + statsColumns + ` FROM user_stats WHERE user_id = $1 FOR UPDATE`

	stats, err := scanStats(t.tx.QueryRow(ctx, query, t.userID))
	if err != nil {
		return nil, mapDBError(err, "lock_user_stats", t.userID)
	}
	return stats, nil
}

func (t *pgStatsTx) SaveStats(ctx context.Context, s *models.UserStats) error {
	query := `
		UPDATE user_stats
		SET total_points = $2,
		    current_streak = $3,
		    longest_streak = $4,
		    last_activity_date = $5,
		    learnings = $6,
		    unique_categories = $7,
		    beginner_count = $8,
		    intermediate_count = $9,
		    advanced_count = $10,
		    updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
	`
	result, err := t.tx.Exec(ctx, query,
		t.userID,
		s.TotalPoints,
		s.CurrentStreak,
		s.LongestStreak,
		s.LastActivityDate,
		s.Learnings,
		s.UniqueCategories,
		s.BeginnerCount,
		s.IntermediateCount,
		s.AdvancedCount,
	)
	if err != nil {
		return mapDBError(err, "save_user_stats", t.userID)
	}
	if result.RowsAffected() == 0 {
		return mapDBError(pgx.ErrNoRows, "save_user_stats", t.userID)
	}
	return nil
}

func (t *pgStatsTx) InsertItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.UserID = t.userID

	query := `
		INSERT INTO items (id, user_id, category_id, title, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.tx.Exec(ctx, query,
		item.ID,
		item.UserID,
		item.CategoryID,
		item.Title,
		string(item.Difficulty),
		item.CreatedAt,
	)
	if err != nil {
		return mapDBError(err, "insert_item", t.userID)
	}
	return nil
}

func (t *pgStatsTx) CategoryCounts(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT category_id, COUNT(*)
		FROM items
		WHERE user_id = $1
		GROUP BY category_id
	`
	rows, err := t.tx.Query(ctx, query, t.userID)
	if err != nil {
		return nil, mapDBError(err, "count_categories", t.userID)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			categoryID string
			n          int
		)
		if err := rows.Scan(&categoryID, &n); err != nil {
			return nil, mapDBError(err, "count_categories", t.userID)
		}
		counts[categoryID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err, "count_categories", t.userID)
	}
	return counts, nil
}

func (t *pgStatsTx) InsertUserBadge(ctx context.Context, badgeID string, earnedAt time.Time) (*models.UserBadge, error) {
	ub := &models.UserBadge{
		ID:       uuid.NewString(),
		UserID:   t.userID,
		BadgeID:  badgeID,
		EarnedAt: earnedAt,
	}
	query := `
		INSERT INTO user_badges (id, user_id, badge_id, earned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`
	result, err := t.tx.Exec(ctx, query, ub.ID, ub.UserID, ub.BadgeID, ub.EarnedAt)
	if err != nil {
		return nil, mapDBError(err, "insert_user_badge", t.userID)
	}
	if result.RowsAffected() == 0 {
		return nil, models.ErrAlreadyAwarded
	}
	return ub, nil
}

func (t *pgStatsTx) AddDailyActivity(ctx context.Context, day time.Time, points, items int) error {
	query := `
		INSERT INTO daily_activity (id, user_id, date, points, items_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, date) DO UPDATE
		SET points = daily_activity.points + EXCLUDED.points,
		    items_count = daily_activity.items_count + EXCLUDED.items_count
	`
	_, err := t.tx.Exec(ctx, query, uuid.NewString(), t.userID, day, points, items)
	if err != nil {
		return mapDBError(err, "add_daily_activity", t.userID)
	}
	return nil
}

// mapDBError converts PostgreSQL errors to engine errors
func mapDBError(err error, operation, userID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewNotFoundError(userID)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return models.NewNotFoundError(userID)
		case "23505": // unique_violation
			return conflictError(operation, err)
		case "22P02": // invalid_text_representation
			return models.NewValidationError("invalid identifier format")
		}
	}

	if utils.IsContextError(err) {
		return err
	}

	return models.NewStoreError(operation, err)
}

func conflictError(operation string, err error) error {
	return &models.AppError{
		Code:       models.ErrCodeConflict,
		Message:    fmt.Sprintf("duplicate record during %s", operation),
		StatusCode: http.StatusConflict,
		Err:        errors.Join(models.ErrInvalidInput, err),
	}
}
