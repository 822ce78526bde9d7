package repo

import (
	"context"
	"time"

	"github.com/KNICEX/crypto-alert/internal/entity"
	"gorm.io/gorm"
)

type AlertRepo interface {
	Create(ctx context.Context, alert entity.Alert) (int64, error)
	FindPending(ctx context.Context) ([]entity.Alert, error)
	CountPending(ctx context.Context) (int64, error)
	MarkDigested(ctx context.Context, at time.Time) (int64, error)
	FindByAsset(ctx context.Context, asset string, limit int) ([]entity.Alert, error)
}

type alertRepo struct {
	db *gorm.DB
}

func NewAlertRepo(db *gorm.DB) AlertRepo {
	return &alertRepo{
		db: db,
	}
}

func (r *alertRepo) Create(ctx context.Context, alert entity.Alert) (int64, error) {
	err := r.db.WithContext(ctx).Create(&alert).Error
	if err != nil {
		return 0, err
	}
	return alert.Id, nil
}

func (r *alertRepo) FindPending(ctx context.Context) ([]entity.Alert, error) {
	var alerts []entity.Alert
	err := r.db.WithContext(ctx).Where("digested_at IS NULL").Order("id").Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *alertRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Alert{}).Where("digested_at IS NULL").Count(&n).Error
	return n, err
}

func (r *alertRepo) MarkDigested(ctx context.Context, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entity.Alert{}).
		Where("digested_at IS NULL").
		Update("digested_at", at)
	return res.RowsAffected, res.Error
}

func (r *alertRepo) FindByAsset(ctx context.Context, asset string, limit int) ([]entity.Alert, error) {
	var alerts []entity.Alert
	query := r.db.WithContext(ctx)
	if asset != "" {
		query = query.Where("asset = ?", asset)
	}
	err := query.Order("id DESC").Limit(limit).Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}
