// Package repository 数据访问层
package repository

import (
	"context"
	"errors"

	"github.com/sxedu-cn/perm-backend/internal/model"
	"gorm.io/gorm"
)

var ErrModuleNotFound = errors.New("模块不存在")

// ModuleRepository 模块仓库接口
type ModuleRepository interface {
	Create(ctx context.Context, m *model.Module) error
	GetByID(ctx context.Context, id string) (*model.Module, error)
	GetByCode(ctx context.Context, code string) (*model.Module, error)
	List(ctx context.Context) ([]*model.Module, error)
}

// TemplateRepository 权限模板仓库接口
type TemplateRepository interface {
	Create(ctx context.Context, t *model.PermissionTemplate) error
	GetByID(ctx context.Context, id string) (*model.PermissionTemplate, error)
	GetByCode(ctx context.Context, code string) (*model.PermissionTemplate, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.PermissionTemplate, error)
}

// LegacyAccessRepository 遗留模块访问仓库接口
// 仅供一次性迁移工具读取
type LegacyAccessRepository interface {
	ListRoleModuleAccess(ctx context.Context) ([]*model.RoleModuleAccess, error)
	ListUserModuleAccess(ctx context.Context) ([]*model.UserModuleAccess, error)
	ListUserOverrides(ctx context.Context) ([]*model.UserOverride, error)
}

// moduleRepository 模块仓库实现
type moduleRepository struct {
	db *gorm.DB
}

// NewModuleRepository 创建模块仓库
func NewModuleRepository(db *gorm.DB) ModuleRepository {
	return &moduleRepository{db: db}
}

func (r *moduleRepository) Create(ctx context.Context, m *model.Module) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *moduleRepository) GetByID(ctx context.Context, id string) (*model.Module, error) {
	var m model.Module
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *moduleRepository) GetByCode(ctx context.Context, code string) (*model.Module, error) {
	var m model.Module
	if err := r.db.WithContext(ctx).First(&m, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *moduleRepository) List(ctx context.Context) ([]*model.Module, error) {
	var ms []*model.Module
	if err := r.db.WithContext(ctx).Order("sort_order").Find(&ms).Error; err != nil {
		return nil, err
	}
	return ms, nil
}

// templateRepository 权限模板仓库实现
type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建权限模板仓库
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, t *model.PermissionTemplate) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (*model.PermissionTemplate, error) {
	var t model.PermissionTemplate
	if err := r.db.WithContext(ctx).Preload("Items").First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepository) GetByCode(ctx context.Context, code string) (*model.PermissionTemplate, error) {
	var t model.PermissionTemplate
	if err := r.db.WithContext(ctx).Preload("Items").First(&t, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.PermissionTemplate{}, "id = ?", id).Error
}

func (r *templateRepository) List(ctx context.Context) ([]*model.PermissionTemplate, error) {
	var ts []*model.PermissionTemplate
	if err := r.db.WithContext(ctx).Preload("Items").Find(&ts).Error; err != nil {
		return nil, err
	}
	return ts, nil
}

// legacyAccessRepository 遗留模块访问仓库实现
type legacyAccessRepository struct {
	db *gorm.DB
}

// NewLegacyAccessRepository 创建遗留模块访问仓库
func NewLegacyAccessRepository(db *gorm.DB) LegacyAccessRepository {
	return &legacyAccessRepository{db: db}
}

func (r *legacyAccessRepository) ListRoleModuleAccess(ctx context.Context) ([]*model.RoleModuleAccess, error) {
	var rows []*model.RoleModuleAccess
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *legacyAccessRepository) ListUserModuleAccess(ctx context.Context) ([]*model.UserModuleAccess, error) {
	var rows []*model.UserModuleAccess
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *legacyAccessRepository) ListUserOverrides(ctx context.Context) ([]*model.UserOverride, error) {
	var rows []*model.UserOverride
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
