package repository

import (
	"context"

	"github.com/shinyyama/ecograd-backend/internal/model"
	"gorm.io/gorm"
)

// Sort orders accepted by PostFilter.
const (
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
)

// PostFilter narrows a browse query. Zero values mean "no constraint".
type PostFilter struct {
	MinPrice  *float64
	MaxPrice  *float64
	ItemTypes []string
	Sizes     []string
	Condition string
	Statuses  []model.PostStatus
	Sort      string
	Limit     int
	Offset    int
}

type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	FindByID(ctx context.Context, id uint64) (*model.Post, error)
	FindWithSeller(ctx context.Context, id uint64) (*model.PostWithSeller, error)
	FindOwned(ctx context.Context, id, ownerID uint64) (*model.Post, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Post, error)
	Search(ctx context.Context, f PostFilter) ([]model.PostWithSeller, int64, error)
	Update(ctx context.Context, p *model.Post) error
	UpdateStatus(ctx context.Context, id, ownerID uint64, status model.PostStatus) (int64, error)
	Delete(ctx context.Context, id, ownerID uint64) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	return r.db.WithContext(ctx).Omit("Owner").Create(p).Error
}

func (r *postRepository) FindByID(ctx context.Context, id uint64) (*model.Post, error) {
	var p model.Post
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) withSeller(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("posts AS p").
		Select("p.*, u.username AS seller_username").
		Joins("JOIN users u ON u.id = p.user_id")
}

func (r *postRepository) FindWithSeller(ctx context.Context, id uint64) (*model.PostWithSeller, error) {
	var rows []model.PostWithSeller
	if err := r.withSeller(ctx).Where("p.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

func (r *postRepository) FindOwned(ctx context.Context, id, ownerID uint64) (*model.Post, error) {
	var p model.Post
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Post, error) {
	var list []model.Post
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func applyPostFilter(q *gorm.DB, f PostFilter) *gorm.DB {
	if f.MinPrice != nil {
		q = q.Where("p.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("p.price <= ?", *f.MaxPrice)
	}
	if len(f.ItemTypes) > 0 {
		q = q.Where("p.item_type IN ?", f.ItemTypes)
	}
	if len(f.Sizes) > 0 {
		q = q.Where("p.size IN ?", f.Sizes)
	}
	if f.Condition != "" {
		q = q.Where("p.condition_status = ?", f.Condition)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("p.status IN ?", f.Statuses)
	}
	return q
}

func (r *postRepository) Search(ctx context.Context, f PostFilter) ([]model.PostWithSeller, int64, error) {
	var (
		rows  []model.PostWithSeller
		total int64
	)
	countQ := applyPostFilter(r.db.WithContext(ctx).Table("posts AS p"), f)
	if err := countQ.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := applyPostFilter(r.withSeller(ctx), f)
	switch f.Sort {
	case SortPriceLow:
		q = q.Order("p.price ASC").Order("p.id DESC")
	case SortPriceHigh:
		q = q.Order("p.price DESC").Order("p.id DESC")
	default:
		q = q.Order("p.status ASC").Order("p.created_at DESC").Order("p.id DESC")
	}
	if err := q.Limit(f.Limit).Offset(f.Offset).Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *postRepository) Update(ctx context.Context, p *model.Post) error {
	return r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ? AND user_id = ?", p.ID, p.UserID).
		Updates(map[string]interface{}{
			"title":            p.Title,
			"item_type":        p.ItemType,
			"size":             p.Size,
			"condition_status": p.ConditionStatus,
			"price":            p.Price,
			"contact_info":     p.ContactInfo,
			"image_url":        p.ImageURL,
		}).Error
}

func (r *postRepository) UpdateStatus(ctx context.Context, id, ownerID uint64, status model.PostStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Update("status", status)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *postRepository) Delete(ctx context.Context, id, ownerID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&model.Post{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
