package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"linkgate-go/internal/model"
)

var (
	// ErrNotFound slug 不存在
	ErrNotFound = errors.New("link not found")
	// ErrDuplicateSlug slug 唯一索引冲突
	ErrDuplicateSlug = errors.New("slug already exists")
)

// LinkStore slug 到链接记录的持久化映射。
// Create 对唯一性约束必须原子：同一 slug 的并发创建只允许一个成功。
type LinkStore interface {
	Create(ctx context.Context, link *model.Link) error
	GetBySlug(ctx context.Context, slug string) (*model.Link, error)
	GetByID(ctx context.Context, id uint) (*model.Link, error)
	Delete(ctx context.Context, id uint) error
	IncrementVisits(ctx context.Context, slug string, delta int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// GormLinkStore 基于 MySQL 唯一索引的 LinkStore 实现
type GormLinkStore struct {
	db *gorm.DB
}

func NewGormLinkStore(db *gorm.DB) *GormLinkStore {
	return &GormLinkStore{db: db}
}

func (s *GormLinkStore) Create(ctx context.Context, link *model.Link) error {
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		// 并发创建同一 slug 时由唯一索引裁决
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSlug
		}
		return err
	}
	return nil
}

func (s *GormLinkStore) GetBySlug(ctx context.Context, slug string) (*model.Link, error) {
	var link model.Link
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (s *GormLinkStore) GetByID(ctx context.Context, id uint) (*model.Link, error) {
	var link model.Link
	if err := s.db.WithContext(ctx).First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (s *GormLinkStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&model.Link{}, id).Error
}

// IncrementVisits 存储层原子自增，避免读改写竞争
func (s *GormLinkStore) IncrementVisits(ctx context.Context, slug string, delta int64) error {
	return s.db.WithContext(ctx).Model(&model.Link{}).
		Where("slug = ?", slug).
		UpdateColumn("visit_count", gorm.Expr("visit_count + ?", delta)).Error
}

// DeleteExpired 定时清理用；读路径的惰性删除不依赖它
func (s *GormLinkStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&model.Link{})
	return result.RowsAffected, result.Error
}
