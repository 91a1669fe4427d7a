// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/duelhub/models"
)

// Database 数据库接口
type Database interface {
	// GetRating returns the player's rating, creating the profile with
	// the default rating on first sight.
	GetRating(ctx context.Context, userID string) (int, error)
	// ApplyResult moves delta points from loser to winner. The loser
	// is clamped at a floor of zero. Returns the new ratings.
	ApplyResult(ctx context.Context, winnerID, loserID string, delta int) (winner int, loser int, err error)
	SaveGameRecord(ctx context.Context, record *models.GormGameRecord) error
	GetProfileStats(ctx context.Context, userID string) (*models.ProfileStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)

const DefaultRating = 1200
