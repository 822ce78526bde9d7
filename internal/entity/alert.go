package entity

import (
	"time"
)

// Alert 已触发的阈值告警
type Alert struct {
	Id        int64  `gorm:"primaryKey;autoIncrement"`
	EventId   string `gorm:"uniqueIndex"`
	Asset     string `gorm:"index"`
	Direction string `gorm:"index"`
	Price     float64
	Threshold float64
	Message   string
	// DigestedAt 为空表示尚未进入日报
	DigestedAt *time.Time `gorm:"index"`
	CreatedAt  time.Time  `gorm:"index"`
}
