package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tila/migrations"
	"tila/pkg/models"
	"tila/pkg/utils"
)

const (
	sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00" // fixed width so TEXT sorts chronologically
	sqliteDateLayout = "2006-01-02"
)

type sqliteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens (or creates) a SQLite store and applies the schema.
// path may be ":memory:". One connection serializes every transaction.
func NewSQLiteRepository(path string) (GamificationRepository, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", migrations.SQLiteSchema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
		}
	}
	return &sqliteRepository{db: db}, nil
}

// statsRow mirrors user_stats with SQLite TEXT timestamps
type statsRow struct {
	UserID            string         `db:"user_id"`
	TotalPoints       int            `db:"total_points"`
	CurrentStreak     int            `db:"current_streak"`
	LongestStreak     int            `db:"longest_streak"`
	LastActivityDate  sql.NullString `db:"last_activity_date"`
	Learnings         int            `db:"learnings"`
	UniqueCategories  int            `db:"unique_categories"`
	BeginnerCount     int            `db:"beginner_count"`
	IntermediateCount int            `db:"intermediate_count"`
	AdvancedCount     int            `db:"advanced_count"`
	UpdatedAt         string         `db:"updated_at"`
}

func (r statsRow) toModel() (*models.UserStats, error) {
	s := &models.UserStats{
		UserID:            r.UserID,
		TotalPoints:       r.TotalPoints,
		CurrentStreak:     r.CurrentStreak,
		LongestStreak:     r.LongestStreak,
		Learnings:         r.Learnings,
		UniqueCategories:  r.UniqueCategories,
		BeginnerCount:     r.BeginnerCount,
		IntermediateCount: r.IntermediateCount,
		AdvancedCount:     r.AdvancedCount,
	}
	var err error
	if s.UpdatedAt, err = time.Parse(sqliteTimeLayout, r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("bad updated_at %q: %w", r.UpdatedAt, err)
	}
	if r.LastActivityDate.Valid {
		t, err := time.Parse(sqliteTimeLayout, r.LastActivityDate.String)
		if err != nil {
			return nil, fmt.Errorf("bad last_activity_date %q: %w", r.LastActivityDate.String, err)
		}
		s.LastActivityDate = &t
	}
	return s, nil
}

type badgeRow struct {
	ID       string `db:"id"`
	UserID   string `db:"user_id"`
	BadgeID  string `db:"badge_id"`
	EarnedAt string `db:"earned_at"`
}

type activityRow struct {
	ID         string `db:"id"`
	UserID     string `db:"user_id"`
	Date       string `db:"date"`
	Points     int    `db:"points"`
	ItemsCount int    `db:"items_count"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

const sqliteStatsQuery = `SELECT ` + statsColumns + ` FROM user_stats WHERE user_id = ?`

func getSQLiteStats(ctx context.Context, q sqlx.QueryerContext, op, userID string) (*models.UserStats, error) {
	var row statsRow
	if err := sqlx.GetContext(ctx, q, &row, sqliteStatsQuery, userID); err != nil {
		return nil, mapSQLiteError(err, op, userID)
	}
	s, err := row.toModel()
	if err != nil {
		return nil, models.NewStoreError(op, err)
	}
	return s, nil
}

func (r *sqliteRepository) CreateStats(ctx context.Context, userID string) (*models.UserStats, bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO user_stats (user_id, updated_at) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING`,
		userID, formatTime(time.Now()))
	if err != nil {
		return nil, false, mapSQLiteError(err, "create_user_stats", userID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, mapSQLiteError(err, "create_user_stats", userID)
	}
	stats, err := r.GetStats(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return stats, n > 0, nil
}

func (r *sqliteRepository) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	return getSQLiteStats(ctx, r.db, "get_user_stats", userID)
}

func (r *sqliteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM user_stats ORDER BY user_id`); err != nil {
		return nil, mapSQLiteError(err, "list_user_ids", "")
	}
	return ids, nil
}

func (r *sqliteRepository) EarnedBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	var rows []badgeRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, badge_id, earned_at FROM user_badges WHERE user_id = ? ORDER BY earned_at, badge_id`,
		userID)
	if err != nil {
		return nil, mapSQLiteError(err, "get_user_badges", userID)
	}

	badges := make([]models.UserBadge, 0, len(rows))
	for _, row := range rows {
		earnedAt, err := time.Parse(sqliteTimeLayout, row.EarnedAt)
		if err != nil {
			return nil, models.NewStoreError("get_user_badges", err)
		}
		badges = append(badges, models.UserBadge{
			ID:       row.ID,
			UserID:   row.UserID,
			BadgeID:  row.BadgeID,
			EarnedAt: earnedAt,
		})
	}
	return badges, nil
}

func (r *sqliteRepository) ListDailyActivity(ctx context.Context, userID string, since time.Time) ([]models.DailyActivity, error) {
	var rows []activityRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, date, points, items_count FROM daily_activity WHERE user_id = ? AND date >= ? ORDER BY date`,
		userID, since.Format(sqliteDateLayout))
	if err != nil {
		return nil, mapSQLiteError(err, "list_daily_activity", userID)
	}

	days := make([]models.DailyActivity, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(sqliteDateLayout, row.Date)
		if err != nil {
			return nil, models.NewStoreError("list_daily_activity", err)
		}
		days = append(days, models.DailyActivity{
			ID:         row.ID,
			UserID:     row.UserID,
			Date:       date,
			Points:     row.Points,
			ItemsCount: row.ItemsCount,
		})
	}
	return days, nil
}

func (r *sqliteRepository) WithUserTx(ctx context.Context, userID string, fn func(tx StatsTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapSQLiteError(err, "begin_transaction", userID)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqliteStatsTx{tx: tx, userID: userID}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapSQLiteError(err, "commit_transaction", userID)
	}
	return nil
}

func (r *sqliteRepository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return models.NewStoreError("health_check", err)
	}
	return nil
}

func (r *sqliteRepository) Close() {
	r.db.Close()
}

type sqliteStatsTx struct {
	tx     *sqlx.Tx
	userID string
}

// LockStats relies on the single connection: no other transaction runs until commit
func (t *sqliteStatsTx) LockStats(ctx context.Context) (*models.UserStats, error) {
	return getSQLiteStats(ctx, t.tx, "lock_user_stats", t.userID)
}

func (t *sqliteStatsTx) SaveStats(ctx context.Context, s *models.UserStats) error {
	var last interface{}
	if s.LastActivityDate != nil {
		last = formatTime(*s.LastActivityDate)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE user_stats
		SET total_points = ?, current_streak = ?, longest_streak = ?, last_activity_date = ?,
		    learnings = ?, unique_categories = ?, beginner_count = ?, intermediate_count = ?,
		    advanced_count = ?, updated_at = ?
		WHERE user_id = ?`,
		s.TotalPoints, s.CurrentStreak, s.LongestStreak, last,
		s.Learnings, s.UniqueCategories, s.BeginnerCount, s.IntermediateCount,
		s.AdvancedCount, formatTime(time.Now()), t.userID)
	if err != nil {
		return mapSQLiteError(err, "save_user_stats", t.userID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError(t.userID)
	}
	return nil
}

func (t *sqliteStatsTx) InsertItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.UserID = t.userID

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO items (id, user_id, category_id, title, difficulty, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.CategoryID, item.Title, string(item.Difficulty), formatTime(item.CreatedAt))
	if err != nil {
		return mapSQLiteError(err, "insert_item", t.userID)
	}
	return nil
}

type categoryCountRow struct {
	CategoryID string `db:"category_id"`
	Count      int    `db:"item_count"`
}

func (t *sqliteStatsTx) CategoryCounts(ctx context.Context) (map[string]int, error) {
	var rows []categoryCountRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT category_id, COUNT(*) AS item_count
		FROM items
		WHERE user_id = ?
		GROUP BY category_id`, t.userID)
	if err != nil {
		return nil, mapSQLiteError(err, "count_categories", t.userID)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.CategoryID] = r.Count
	}
	return counts, nil
}

func (t *sqliteStatsTx) InsertUserBadge(ctx context.Context, badgeID string, earnedAt time.Time) (*models.UserBadge, error) {
	ub := &models.UserBadge{
		ID:       uuid.NewString(),
		UserID:   t.userID,
		BadgeID:  badgeID,
		EarnedAt: earnedAt,
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO user_badges (id, user_id, badge_id, earned_at) VALUES (?, ?, ?, ?) ON CONFLICT (user_id, badge_id) DO NOTHING`,
		ub.ID, ub.UserID, ub.BadgeID, formatTime(earnedAt))
	if err != nil {
		return nil, mapSQLiteError(err, "insert_user_badge", t.userID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, mapSQLiteError(err, "insert_user_badge", t.userID)
	}
	if n == 0 {
		return nil, models.ErrAlreadyAwarded
	}
	return ub, nil
}

func (t *sqliteStatsTx) AddDailyActivity(ctx context.Context, day time.Time, points, items int) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO daily_activity (id, user_id, date, points, items_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE
		SET points = daily_activity.points + excluded.points,
		    items_count = daily_activity.items_count + excluded.items_count`,
		uuid.NewString(), t.userID, day.Format(sqliteDateLayout), points, items)
	if err != nil {
		return mapSQLiteError(err, "add_daily_activity", t.userID)
	}
	return nil
}

// mapSQLiteError mirrors mapDBError for the SQLite driver, which reports constraints by message
func mapSQLiteError(err error, operation, userID string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewNotFoundError(userID)
	}
	if utils.IsContextError(err) {
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return models.NewNotFoundError(userID)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return conflictError(operation, err)
	}
	return models.NewStoreError(operation, err)
}
