// Package repository 数据访问层
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sxedu-cn/perm-backend/internal/model"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrDelegationNotFound = errors.New("委托不存在")
)

// Pagination 分页参数
type Pagination struct {
	Page     int // 页码，从 1 开始
	PageSize int // 每页数量
}

// UserPermissionRepository 用户直接授权仓库接口
type UserPermissionRepository interface {
	Create(ctx context.Context, grant *model.UserPermission) error
	ListByUser(ctx context.Context, userID string) ([]*model.UserPermission, error)
	Revoke(ctx context.Context, id string) error
	ExistsGrant(ctx context.Context, userID, permissionID, sourceType string) (bool, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// DelegationRepository 委托仓库接口
type DelegationRepository interface {
	Create(ctx context.Context, d *model.Delegation) error
	GetByID(ctx context.Context, id string) (*model.Delegation, error)
	Update(ctx context.Context, d *model.Delegation) error
	ListActiveByType(ctx context.Context, delegType string) ([]*model.Delegation, error)
	ListExpired(ctx context.Context, now time.Time) ([]*model.Delegation, error)
}

// UserDirectory 用户影子目录接口
// 解析器用它判定用户标识是否存在；不存在即 NotFound，不做重试
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Ensure(ctx context.Context, userID, displayName string) error
}

// userPermissionRepository 用户直接授权仓库实现
type userPermissionRepository struct {
	db *gorm.DB
}

// NewUserPermissionRepository 创建用户直接授权仓库
func NewUserPermissionRepository(db *gorm.DB) UserPermissionRepository {
	return &userPermissionRepository{db: db}
}

func (r *userPermissionRepository) Create(ctx context.Context, grant *model.UserPermission) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

func (r *userPermissionRepository) ListByUser(ctx context.Context, userID string) ([]*model.UserPermission, error) {
	var grants []*model.UserPermission
	if err := r.db.WithContext(ctx).Preload("Permission").
		Where("user_id = ?", userID).Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

// Revoke 撤销直接授权，软删除保留审计痕迹
func (r *userPermissionRepository) Revoke(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.UserPermission{}, "id = ?", id).Error
}

func (r *userPermissionRepository) ExistsGrant(ctx context.Context, userID, permissionID, sourceType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserPermission{}).
		Where("user_id = ? AND permission_id = ? AND source_type = ?", userID, permissionID, sourceType).
		Count(&count).Error
	return count > 0, err
}

// DeactivateExpired 软删除有效期已过的授权
func (r *userPermissionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("valid_until IS NOT NULL AND valid_until < ?", now).
		Delete(&model.UserPermission{})
	return result.RowsAffected, result.Error
}

// delegationRepository 委托仓库实现
type delegationRepository struct {
	db *gorm.DB
}

// NewDelegationRepository 创建委托仓库
func NewDelegationRepository(db *gorm.DB) DelegationRepository {
	return &delegationRepository{db: db}
}

func (r *delegationRepository) Create(ctx context.Context, d *model.Delegation) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *delegationRepository) GetByID(ctx context.Context, id string) (*model.Delegation, error) {
	var d model.Delegation
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDelegationNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *delegationRepository) Update(ctx context.Context, d *model.Delegation) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *delegationRepository) ListActiveByType(ctx context.Context, delegType string) ([]*model.Delegation, error) {
	var ds []*model.Delegation
	if err := r.db.WithContext(ctx).
		Where("type = ? AND is_active = ?", delegType, true).
		Find(&ds).Error; err != nil {
		return nil, err
	}
	return ds, nil
}

func (r *delegationRepository) ListExpired(ctx context.Context, now time.Time) ([]*model.Delegation, error) {
	var ds []*model.Delegation
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND effective_until < ?", true, now).
		Find(&ds).Error; err != nil {
		return nil, err
	}
	return ds, nil
}

// userDirectory 用户影子目录实现
type userDirectory struct {
	db *gorm.DB
}

// NewUserDirectory 创建用户影子目录
func NewUserDirectory(db *gorm.DB) UserDirectory {
	return &userDirectory{db: db}
}

func (r *userDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserRef{}).
		Where("id = ? AND status = ?", userID, model.StatusActive).
		Count(&count).Error
	return count > 0, err
}

// Ensure 写入影子记录，已存在则忽略
func (r *userDirectory) Ensure(ctx context.Context, userID, displayName string) error {
	existing := &model.UserRef{}
	err := r.db.WithContext(ctx).First(existing, "id = ?", userID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	ref := &model.UserRef{
		BaseModel:   model.BaseModel{ID: userID},
		DisplayName: displayName,
		Status:      model.StatusActive,
	}
	return r.db.WithContext(ctx).Create(ref).Error
}
