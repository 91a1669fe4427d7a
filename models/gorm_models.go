// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormProfile 玩家档案模型
type GormProfile struct {
	gorm.Model
	UserID string `gorm:"uniqueIndex;not null"`
	Name   string `gorm:"not null"`
	Rating int    `gorm:"default:1200"`
}

// GormGameRecord 对战记录模型
type GormGameRecord struct {
	gorm.Model
	RoomKey string `gorm:"index;not null"`
	Game    string `gorm:"not null"`
	Player1 string `gorm:"not null"`
	Player2 string `gorm:"not null"`
	Winner  string // empty on a draw
}

// ProfileStats 玩家统计信息
type ProfileStats struct {
	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	Draws      int `json:"draws"`
}
