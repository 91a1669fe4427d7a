// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/duelhub/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormProfile{}, &models.GormGameRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) GetRating(ctx context.Context, userID string) (int, error) {
	profile, err := p.loadOrCreate(p.db.WithContext(ctx), userID)
	if err != nil {
		return 0, err
	}
	return profile.Rating, nil
}

func (p *GormPostgreSQL) ApplyResult(ctx context.Context, winnerID, loserID string, delta int) (int, int, error) {
	var winner, loser int

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := p.loadOrCreate(tx, winnerID)
		if err != nil {
			return err
		}
		l, err := p.loadOrCreate(tx, loserID)
		if err != nil {
			return err
		}

		w.Rating += delta
		l.Rating -= delta
		if l.Rating < 0 {
			l.Rating = 0
		}

		if err := tx.Save(w).Error; err != nil {
			return err
		}
		if err := tx.Save(l).Error; err != nil {
			return err
		}

		winner, loser = w.Rating, l.Rating
		return nil
	})
	return winner, loser, err
}

func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record *models.GormGameRecord) error {
	return p.db.WithContext(ctx).Create(record).Error
}

func (p *GormPostgreSQL) GetProfileStats(ctx context.Context, userID string) (*models.ProfileStats, error) {
	var stats models.ProfileStats

	err := p.db.WithContext(ctx).Raw(
		`
        SELECT
            COUNT(*) as total_games,
            SUM(CASE WHEN winner = ? THEN 1 ELSE 0 END) as wins,
            SUM(CASE WHEN winner <> '' AND winner <> ? THEN 1 ELSE 0 END) as losses,
            SUM(CASE WHEN winner = '' THEN 1 ELSE 0 END) as draws
        FROM gorm_game_records
        WHERE player1 = ? OR player2 = ?`,
		userID, userID, userID, userID,
	).Scan(&stats).Error

	return &stats, err
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *GormPostgreSQL) loadOrCreate(tx *gorm.DB, userID string) (*models.GormProfile, error) {
	var profile models.GormProfile
	result := tx.Where("user_id = ?", userID).First(&profile)

	if result.Error == gorm.ErrRecordNotFound {
		profile = models.GormProfile{
			UserID: userID,
			Name:   userID,
			Rating: DefaultRating,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	} else if result.Error != nil {
		return nil, result.Error
	}

	return &profile, nil
}
