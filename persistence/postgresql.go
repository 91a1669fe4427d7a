// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/duelhub/models"
)

// PostgreSQL 数据库实现 (database/sql)
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS profiles (
            id SERIAL PRIMARY KEY,
            user_id TEXT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            rating INT NOT NULL DEFAULT 1200,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_key TEXT NOT NULL,
            game TEXT NOT NULL,
            player1 TEXT NOT NULL,
            player2 TEXT NOT NULL,
            winner TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	return err
}

func (p *PostgreSQL) GetRating(ctx context.Context, userID string) (int, error) {
	if err := p.ensureProfile(ctx, userID); err != nil {
		return 0, err
	}

	var rating int
	err := p.db.QueryRowContext(ctx,
		`SELECT rating FROM profiles WHERE user_id = $1`, userID).Scan(&rating)
	return rating, err
}

func (p *PostgreSQL) ApplyResult(ctx context.Context, winnerID, loserID string, delta int) (int, int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	for _, id := range []string{winnerID, loserID} {
		if err := ensureProfileTx(ctx, tx, id); err != nil {
			return 0, 0, err
		}
	}

	var winner, loser int
	err = tx.QueryRowContext(ctx,
		`UPDATE profiles SET rating = rating + $1, updated_at = CURRENT_TIMESTAMP
         WHERE user_id = $2 RETURNING rating`, delta, winnerID).Scan(&winner)
	if err != nil {
		return 0, 0, err
	}
	err = tx.QueryRowContext(ctx,
		`UPDATE profiles SET rating = GREATEST(rating - $1, 0), updated_at = CURRENT_TIMESTAMP
         WHERE user_id = $2 RETURNING rating`, delta, loserID).Scan(&loser)
	if err != nil {
		return 0, 0, err
	}

	return winner, loser, tx.Commit()
}

func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record *models.GormGameRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO game_records (room_key, game, player1, player2, winner)
         VALUES ($1, $2, $3, $4, $5)`,
		record.RoomKey, record.Game, record.Player1, record.Player2, record.Winner)
	return err
}

func (p *PostgreSQL) GetProfileStats(ctx context.Context, userID string) (*models.ProfileStats, error) {
	var stats models.ProfileStats
	err := p.db.QueryRowContext(ctx,
		`SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN winner = $1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN winner <> '' AND winner <> $1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN winner = '' THEN 1 ELSE 0 END), 0)
         FROM game_records
         WHERE player1 = $1 OR player2 = $1`, userID,
	).Scan(&stats.TotalGames, &stats.Wins, &stats.Losses, &stats.Draws)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

func (p *PostgreSQL) ensureProfile(ctx context.Context, userID string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, name, rating) VALUES ($1, $1, $2)
         ON CONFLICT (user_id) DO NOTHING`, userID, DefaultRating)
	return err
}

func ensureProfileTx(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO profiles (user_id, name, rating) VALUES ($1, $1, $2)
         ON CONFLICT (user_id) DO NOTHING`, userID, DefaultRating)
	return err
}
