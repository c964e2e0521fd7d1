// Package service 业务逻辑层
package service

import (
	"context"
	"errors"

	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
)

var (
	ErrTemplateNotFound = errors.New("权限模板不存在")
	ErrSystemTemplate   = errors.New("系统内置模板不能删除")
)

// TemplateService 权限模板服务接口
// 应用模板等价于批量创建授权边，granted_by 记录模板应用事件
type TemplateService interface {
	Create(ctx context.Context, t *model.PermissionTemplate) error
	Get(ctx context.Context, id string) (*model.PermissionTemplate, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.PermissionTemplate, error)

	// ApplyToRole 把模板条目批量授予角色
	ApplyToRole(ctx context.Context, templateID, roleID, appliedBy string) (int, error)

	// ApplyToUser 把模板条目批量授予用户，优先级为模板层级
	ApplyToUser(ctx context.Context, templateID, userID, appliedBy string) (int, error)

	// InitSystemTemplates 初始化系统内置模板，幂等
	InitSystemTemplates(ctx context.Context) error
}

type templateService struct {
	templateRepo repository.TemplateRepository
	permRepo     repository.PermissionRepository
	roleRepo     repository.RoleRepository
	userPermRepo repository.UserPermissionRepository
}

// NewTemplateService 创建权限模板服务
func NewTemplateService(
	templateRepo repository.TemplateRepository,
	permRepo repository.PermissionRepository,
	roleRepo repository.RoleRepository,
	userPermRepo repository.UserPermissionRepository,
) TemplateService {
	return &templateService{
		templateRepo: templateRepo,
		permRepo:     permRepo,
		roleRepo:     roleRepo,
		userPermRepo: userPermRepo,
	}
}

func (s *templateService) Create(ctx context.Context, t *model.PermissionTemplate) error {
	if t.Version == 0 {
		t.Version = 1
	}
	return s.templateRepo.Create(ctx, t)
}

func (s *templateService) Get(ctx context.Context, id string) (*model.PermissionTemplate, error) {
	t, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrTemplateNotFound
	}
	return t, nil
}

func (s *templateService) Delete(ctx context.Context, id string) error {
	t, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return ErrTemplateNotFound
	}
	if t.IsSystem {
		return ErrSystemTemplate
	}
	return s.templateRepo.Delete(ctx, id)
}

func (s *templateService) List(ctx context.Context) ([]*model.PermissionTemplate, error) {
	return s.templateRepo.List(ctx)
}

func (s *templateService) ApplyToRole(ctx context.Context, templateID, roleID, appliedBy string) (int, error) {
	t, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		return 0, ErrTemplateNotFound
	}
	if _, err := s.roleRepo.GetByID(ctx, roleID); err != nil {
		return 0, ErrRoleNotFound
	}

	applied := 0
	for _, item := range t.Items {
		// 遗留 moduleAccess 条目只影响菜单可见性，不生成授权边
		if item.PermissionCode == "" {
			continue
		}
		perm, err := s.permRepo.GetByCode(ctx, item.PermissionCode)
		if err != nil {
			continue
		}
		err = s.roleRepo.AddPermission(ctx, &model.RolePermission{
			RoleID:       roleID,
			PermissionID: perm.ID,
			IsGranted:    true,
			SourceType:   model.SourceTemplate,
			GrantedBy:    appliedBy,
			GrantReason:  "应用模板 " + t.Code,
		})
		if err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (s *templateService) ApplyToUser(ctx context.Context, templateID, userID, appliedBy string) (int, error) {
	t, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		return 0, ErrTemplateNotFound
	}

	applied := 0
	for _, item := range t.Items {
		if item.PermissionCode == "" {
			continue
		}
		perm, err := s.permRepo.GetByCode(ctx, item.PermissionCode)
		if err != nil {
			continue
		}
		err = s.userPermRepo.Create(ctx, &model.UserPermission{
			UserID:       userID,
			PermissionID: perm.ID,
			IsGranted:    true,
			Priority:     model.PriorityTemplate,
			SourceType:   model.SourceTemplate,
			GrantedBy:    appliedBy,
			GrantReason:  "应用模板 " + t.Code,
		})
		if err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// InitSystemTemplates 初始化系统内置模板
func (s *templateService) InitSystemTemplates(ctx context.Context) error {
	templates := []struct {
		code  string
		name  string
		items []model.PermissionTemplateItem
	}{
		{
			code: model.TemplateViewer,
			name: "只读",
			items: []model.PermissionTemplateItem{
				{PermissionCode: "employee.read.own"},
				{PermissionCode: "department.read.department"},
				{PermissionCode: "workorder.read.own"},
			},
		},
		{
			code: model.TemplateEditor,
			name: "编辑",
			items: []model.PermissionTemplateItem{
				{PermissionCode: "employee.read.department"},
				{PermissionCode: "workorder.create.own"},
				{PermissionCode: "workorder.read.department"},
				{PermissionCode: "workorder.update.own"},
			},
		},
		{
			code: model.TemplateDeptHead,
			name: "部门主管",
			items: []model.PermissionTemplateItem{
				{PermissionCode: "employee.read.department"},
				{PermissionCode: "employee.update.department"},
				{PermissionCode: "workorder.read.department"},
				{PermissionCode: "workorder.approve.department"},
				{PermissionCode: "kpi.read.department"},
			},
		},
		{
			code: model.TemplateAdmin,
			name: "管理员",
			items: []model.PermissionTemplateItem{
				{PermissionCode: "employee.read.all"},
				{PermissionCode: "employee.update.all"},
				{PermissionCode: "department.read.all"},
				{PermissionCode: "department.update.all"},
				{PermissionCode: "workorder.read.all"},
				{PermissionCode: "workorder.approve.all"},
				{PermissionCode: "kpi.read.all"},
				{PermissionCode: "kpi.export.all"},
			},
		},
	}

	for _, tpl := range templates {
		existing, _ := s.templateRepo.GetByCode(ctx, tpl.code)
		if existing != nil {
			continue
		}
		t := &model.PermissionTemplate{
			Name:     tpl.name,
			Code:     tpl.code,
			Version:  1,
			IsSystem: true,
			Items:    tpl.items,
		}
		if err := s.templateRepo.Create(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
