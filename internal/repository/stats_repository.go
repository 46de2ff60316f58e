package repository

import (
	"context"

	"gorm.io/gorm"
)

type TableStat struct {
	Name        string `json:"name"`
	Exists      bool   `json:"exists"`
	RecordCount int64  `json:"recordCount"`
}

type StatsRepository interface {
	TableStats(ctx context.Context, tables []string) ([]TableStat, error)
	Ping(ctx context.Context) error
}

type statsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) TableStats(ctx context.Context, tables []string) ([]TableStat, error) {
	db := r.db.WithContext(ctx)
	out := make([]TableStat, 0, len(tables))
	for _, name := range tables {
		st := TableStat{Name: name}
		if db.Migrator().HasTable(name) {
			st.Exists = true
			if err := db.Table(name).Count(&st.RecordCount).Error; err != nil {
				return nil, err
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *statsRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
