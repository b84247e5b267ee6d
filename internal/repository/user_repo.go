package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"ebay_dev_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// UserRepository 用户仓储接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdateToken(ctx context.Context, username, accessToken string, expiresAt time.Time) error
	ListAll(ctx context.Context) ([]model.User, error)

	// 查找访问令牌即将过期的用户（供保活任务使用）
	FindExpiring(ctx context.Context, before time.Time) ([]model.User, error)
}

// ==================== 仓储实现 ====================

type userRepo struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = model.UserID(user.Username)
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepo) UpdateToken(ctx context.Context, username, accessToken string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"ebay_access_token":     accessToken,
			"ebay_token_expires_at": expiresAt,
		}).Error
}

func (r *userRepo) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Find(&users).Error
	return users, err
}

func (r *userRepo) FindExpiring(ctx context.Context, before time.Time) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("ebay_refresh_token <> ''").
		Where("ebay_token_expires_at < ?", before).
		Find(&users).Error
	return users, err
}
