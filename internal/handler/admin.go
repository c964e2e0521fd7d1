package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
	"github.com/sxedu-cn/perm-backend/internal/service"
	"github.com/sxedu-cn/perm-backend/pkg/response"
)

// AdminHandler 权限管理面处理器
type AdminHandler struct {
	rbacService       service.RBACService
	hierarchyService  service.HierarchyService
	delegationService service.DelegationService
	templateService   service.TemplateService
	notifier          service.NotificationService
	adminEmail        string // 授权变更通知收件人
}

// NewAdminHandler 创建权限管理面处理器
func NewAdminHandler(
	rbacSvc service.RBACService,
	hierarchySvc service.HierarchyService,
	delegationSvc service.DelegationService,
	templateSvc service.TemplateService,
	notifier service.NotificationService,
	adminEmail string,
) *AdminHandler {
	return &AdminHandler{
		rbacService:       rbacSvc,
		hierarchyService:  hierarchySvc,
		delegationService: delegationSvc,
		templateService:   templateSvc,
		notifier:          notifier,
		adminEmail:        adminEmail,
	}
}

// notifyChange 发送授权变更通知，失败不影响主流程
func (h *AdminHandler) notifyChange(c *gin.Context, subject, body string) {
	if h.notifier == nil || h.adminEmail == "" {
		return
	}
	h.notifier.NotifyGrantChanged(c.Request.Context(), []string{h.adminEmail}, subject, body)
}

// operatorID 从上下文取操作人
func operatorID(c *gin.Context) string {
	if id, exists := c.Get("user_id"); exists {
		return id.(string)
	}
	return ""
}

// CreateRoleRequest 创建角色请求
type CreateRoleRequest struct {
	Name           string `json:"name" binding:"required"`
	Code           string `json:"code" binding:"required"`
	Description    string `json:"description"`
	HierarchyLevel int    `json:"hierarchy_level"`
}

// UpdateRoleRequest 更新角色请求
type UpdateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// CreateRole 创建角色
// POST /api/v1/roles
func (h *AdminHandler) CreateRole(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	if req.HierarchyLevel == 0 {
		req.HierarchyLevel = 5
	}
	role := &model.Role{
		Name:           req.Name,
		Code:           req.Code,
		Description:    req.Description,
		HierarchyLevel: req.HierarchyLevel,
		Status:         model.StatusActive,
	}

	if err := h.rbacService.CreateRole(c.Request.Context(), role); err != nil {
		if errors.Is(err, service.ErrRoleCodeExists) {
			response.Error(c, response.CodeRoleCodeExists)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, role)
}

// GetRole 获取角色详情
// GET /api/v1/roles/:id
func (h *AdminHandler) GetRole(c *gin.Context) {
	id := c.Param("id")
	role, err := h.rbacService.GetRole(c.Request.Context(), id)
	if err != nil {
		response.Error(c, response.CodeRoleNotFound)
		return
	}
	response.Success(c, role)
}

// UpdateRole 更新角色
// PUT /api/v1/roles/:id
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	id := c.Param("id")
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	role, err := h.rbacService.GetRole(c.Request.Context(), id)
	if err != nil {
		response.Error(c, response.CodeRoleNotFound)
		return
	}

	if req.Name != "" {
		role.Name = req.Name
	}
	if req.Description != "" {
		role.Description = req.Description
	}
	if req.Status != "" {
		role.Status = req.Status
	}

	if err := h.rbacService.UpdateRole(c.Request.Context(), role); err != nil {
		if errors.Is(err, service.ErrSystemRole) {
			response.Error(c, response.CodeSystemProtected)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, role)
}

// DeleteRole 删除角色
// DELETE /api/v1/roles/:id
func (h *AdminHandler) DeleteRole(c *gin.Context) {
	id := c.Param("id")
	if err := h.rbacService.DeleteRole(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrRoleNotFound) {
			response.Error(c, response.CodeRoleNotFound)
			return
		}
		if errors.Is(err, service.ErrSystemRole) {
			response.Error(c, response.CodeSystemProtected)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, gin.H{"message": "删除成功"})
}

// ListRoles 获取角色列表
// GET /api/v1/roles
func (h *AdminHandler) ListRoles(c *gin.Context) {
	page := &repository.Pagination{Page: 1, PageSize: 20}
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page.Page = p
	}
	if ps, err := strconv.Atoi(c.Query("page_size")); err == nil && ps > 0 && ps <= 100 {
		page.PageSize = ps
	}

	roles, total, err := h.rbacService.ListRoles(c.Request.Context(), page)
	if err != nil {
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, gin.H{
		"list":      roles,
		"total":     total,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

// CreatePermissionRequest 创建权限请求
type CreatePermissionRequest struct {
	Resource    string `json:"resource" binding:"required"`
	Action      string `json:"action" binding:"required"`
	Scope       string `json:"scope" binding:"required"`
	Description string `json:"description"`
}

// CreatePermission 创建权限
// POST /api/v1/permissions
func (h *AdminHandler) CreatePermission(c *gin.Context) {
	var req CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	scope, ok := model.ParseScope(req.Scope)
	if !ok {
		response.Error(c, response.CodeInvalidScope)
		return
	}

	perm := &model.Permission{
		Resource:    req.Resource,
		Action:      model.Action(req.Action),
		Scope:       scope,
		Description: req.Description,
	}

	if err := h.rbacService.CreatePermission(c.Request.Context(), perm); err != nil {
		if errors.Is(err, service.ErrPermissionExists) {
			response.Error(c, response.CodePermExists)
			return
		}
		if errors.Is(err, service.ErrInvalidScope) {
			response.Error(c, response.CodeInvalidScope)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, perm)
}

// GetPermission 获取权限详情
// GET /api/v1/permissions/:id
func (h *AdminHandler) GetPermission(c *gin.Context) {
	id := c.Param("id")
	perm, err := h.rbacService.GetPermission(c.Request.Context(), id)
	if err != nil {
		response.Error(c, response.CodePermNotFound)
		return
	}
	response.Success(c, perm)
}

// DeletePermission 删除权限
// DELETE /api/v1/permissions/:id
func (h *AdminHandler) DeletePermission(c *gin.Context) {
	id := c.Param("id")
	if err := h.rbacService.DeletePermission(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrPermissionNotFound) {
			response.Error(c, response.CodePermNotFound)
			return
		}
		if errors.Is(err, service.ErrSystemPermission) {
			response.Error(c, response.CodeSystemProtected)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, gin.H{"message": "删除成功"})
}

// ListPermissions 获取权限列表
// GET /api/v1/permissions
func (h *AdminHandler) ListPermissions(c *gin.Context) {
	permissions, err := h.rbacService.ListPermissions(c.Request.Context())
	if err != nil {
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, permissions)
}

// GrantToRoleRequest 角色授权请求
type GrantToRoleRequest struct {
	PermissionID string `json:"permission_id" binding:"required"`
	IsGranted    *bool  `json:"is_granted"` // 缺省 true，false 表示显式拒绝
	Reason       string `json:"reason"`
}

// GrantToRole 给角色授权
// POST /api/v1/roles/:id/permissions
func (h *AdminHandler) GrantToRole(c *gin.Context) {
	roleID := c.Param("id")
	var req GrantToRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	isGranted := true
	if req.IsGranted != nil {
		isGranted = *req.IsGranted
	}

	err := h.rbacService.GrantToRole(c.Request.Context(), roleID, req.PermissionID, isGranted, operatorID(c), req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrRoleNotFound) {
			response.Error(c, response.CodeRoleNotFound)
			return
		}
		if errors.Is(err, service.ErrPermissionNotFound) {
			response.Error(c, response.CodePermNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	h.notifyChange(c, "角色授权变更", "角色 "+roleID+" 的权限 "+req.PermissionID+" 被 "+operatorID(c)+" 变更")
	response.Success(c, gin.H{"message": "授权成功"})
}

// RevokeFromRole 撤销角色授权
// DELETE /api/v1/roles/:id/permissions/:permission_id
func (h *AdminHandler) RevokeFromRole(c *gin.Context) {
	roleID := c.Param("id")
	permissionID := c.Param("permission_id")

	if err := h.rbacService.RevokeFromRole(c.Request.Context(), roleID, permissionID); err != nil {
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, gin.H{"message": "撤销成功"})
}

// GetRolePermissions 获取角色授权边
// GET /api/v1/roles/:id/permissions
func (h *AdminHandler) GetRolePermissions(c *gin.Context) {
	roleID := c.Param("id")
	grants, err := h.rbacService.GetRolePermissions(c.Request.Context(), roleID)
	if err != nil {
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, grants)
}

// GrantToUserRequest 用户直接授权请求
type GrantToUserRequest struct {
	PermissionID string     `json:"permission_id" binding:"required"`
	IsGranted    *bool      `json:"is_granted"`
	Priority     int        `json:"priority"`
	ValidFrom    *time.Time `json:"valid_from"`
	ValidUntil   *time.Time `json:"valid_until"`
	Reason       string     `json:"reason"`
}

// GrantToUser 给用户直接授权
// POST /api/v1/users/:user_id/permissions
func (h *AdminHandler) GrantToUser(c *gin.Context) {
	userID := c.Param("user_id")
	var req GrantToUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	isGranted := true
	if req.IsGranted != nil {
		isGranted = *req.IsGranted
	}

	grant := &model.UserPermission{
		UserID:       userID,
		PermissionID: req.PermissionID,
		IsGranted:    isGranted,
		Priority:     req.Priority,
		ValidFrom:    req.ValidFrom,
		ValidUntil:   req.ValidUntil,
		SourceType:   model.SourceDirect,
		GrantedBy:    operatorID(c),
		GrantReason:  req.Reason,
	}

	if err := h.rbacService.GrantToUser(c.Request.Context(), grant); err != nil {
		if errors.Is(err, service.ErrPermissionNotFound) {
			response.Error(c, response.CodePermNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	h.notifyChange(c, "用户直接授权变更", "用户 "+userID+" 获得权限 "+req.PermissionID+"，操作人 "+operatorID(c))
	response.Success(c, grant)
}

// GetUserGrants 获取用户直接授权列表
// GET /api/v1/users/:user_id/permissions
func (h *AdminHandler) GetUserGrants(c *gin.Context) {
	userID := c.Param("user_id")
	grants, err := h.rbacService.GetUserGrants(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, grants)
}

// AssignRole 分配角色给用户
// POST /api/v1/users/:user_id/roles
func (h *AdminHandler) AssignRole(c *gin.Context) {
	userID := c.Param("user_id")
	var req struct {
		RoleID string `json:"role_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	if err := h.rbacService.AssignRole(c.Request.Context(), userID, req.RoleID); err != nil {
		if errors.Is(err, service.ErrRoleNotFound) {
			response.Error(c, response.CodeRoleNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, gin.H{"message": "角色分配成功"})
}

// RevokeRole 撤销用户角色
// DELETE /api/v1/users/:user_id/roles/:role_id
func (h *AdminHandler) RevokeRole(c *gin.Context) {
	userID := c.Param("user_id")
	roleID := c.Param("role_id")

	if err := h.rbacService.RevokeRole(c.Request.Context(), userID, roleID); err != nil {
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, gin.H{"message": "角色撤销成功"})
}

// GetUserRoles 获取用户角色
// GET /api/v1/users/:user_id/roles
func (h *AdminHandler) GetUserRoles(c *gin.Context) {
	userID := c.Param("user_id")
	roles, err := h.rbacService.GetUserRoles(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, roles)
}

// AddHierarchyEdgeRequest 添加继承边请求
type AddHierarchyEdgeRequest struct {
	ParentRoleID       string `json:"parent_role_id" binding:"required"`
	InheritPermissions *bool  `json:"inherit_permissions"`
}

// AddHierarchyEdge 添加角色继承边
// POST /api/v1/roles/:id/parents
func (h *AdminHandler) AddHierarchyEdge(c *gin.Context) {
	childRoleID := c.Param("id")
	var req AddHierarchyEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	inherit := true
	if req.InheritPermissions != nil {
		inherit = *req.InheritPermissions
	}

	err := h.hierarchyService.AddEdge(c.Request.Context(), childRoleID, req.ParentRoleID, inherit, operatorID(c))
	if err != nil {
		if errors.Is(err, service.ErrCycleDetected) {
			response.Error(c, response.CodeHierarchyCycle)
			return
		}
		if errors.Is(err, service.ErrEdgeExists) {
			response.Error(c, response.CodeEdgeExists)
			return
		}
		if errors.Is(err, service.ErrRoleNotFound) {
			response.Error(c, response.CodeRoleNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, gin.H{"message": "继承边添加成功"})
}

// RemoveHierarchyEdge 删除角色继承边
// DELETE /api/v1/roles/:id/parents/:parent_id
func (h *AdminHandler) RemoveHierarchyEdge(c *gin.Context) {
	childRoleID := c.Param("id")
	parentRoleID := c.Param("parent_id")

	if err := h.hierarchyService.RemoveEdge(c.Request.Context(), childRoleID, parentRoleID); err != nil {
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, gin.H{"message": "继承边删除成功"})
}

// GetEffectivePermissions 获取角色有效权限集（含继承）
// GET /api/v1/roles/:id/effective-permissions
func (h *AdminHandler) GetEffectivePermissions(c *gin.Context) {
	roleID := c.Param("id")
	candidates, err := h.hierarchyService.EffectivePermissions(c.Request.Context(), roleID)
	if err != nil {
		if errors.Is(err, service.ErrRoleNotFound) {
			response.Error(c, response.CodeRoleNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, candidates)
}

// CreateDelegationRequest 创建委托请求
type CreateDelegationRequest struct {
	Type           string    `json:"type" binding:"required"`
	DelegatorID    string    `json:"delegator_id" binding:"required"`
	DelegateID     string    `json:"delegate_id" binding:"required"`
	PermissionCode string    `json:"permission_code"`
	EffectiveFrom  time.Time `json:"effective_from" binding:"required"`
	EffectiveUntil time.Time `json:"effective_until" binding:"required"`
	Context        string    `json:"context"`
}

// CreateDelegation 创建授权委托
// POST /api/v1/delegations
func (h *AdminHandler) CreateDelegation(c *gin.Context) {
	var req CreateDelegationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	delegation := &model.Delegation{
		Type:           req.Type,
		DelegatorID:    req.DelegatorID,
		DelegateID:     req.DelegateID,
		PermissionCode: req.PermissionCode,
		EffectiveFrom:  req.EffectiveFrom,
		EffectiveUntil: req.EffectiveUntil,
		IsActive:       true,
		Context:        req.Context,
	}

	if err := h.delegationService.Create(c.Request.Context(), delegation); err != nil {
		if errors.Is(err, service.ErrInvalidDelegation) {
			response.Error(c, response.CodeInvalidDelegation)
			return
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(c, response.CodeUserNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, delegation)
}

// GetDelegation 获取委托详情
// GET /api/v1/delegations/:id
func (h *AdminHandler) GetDelegation(c *gin.Context) {
	id := c.Param("id")
	delegation, err := h.delegationService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, response.CodeDelegationNotFound)
		return
	}
	response.Success(c, delegation)
}

// RevokeDelegation 撤销委托
// DELETE /api/v1/delegations/:id
func (h *AdminHandler) RevokeDelegation(c *gin.Context) {
	id := c.Param("id")
	if err := h.delegationService.Revoke(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrDelegationNotFound) {
			response.Error(c, response.CodeDelegationNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, gin.H{"message": "委托撤销成功"})
}

// CreateTemplateRequest 创建模板请求
type CreateTemplateRequest struct {
	Name        string   `json:"name" binding:"required"`
	Code        string   `json:"code" binding:"required"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"` // 权限代码列表
}

// CreateTemplate 创建权限模板
// POST /api/v1/templates
func (h *AdminHandler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	template := &model.PermissionTemplate{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		Version:     1,
	}
	for _, code := range req.Permissions {
		template.Items = append(template.Items, model.PermissionTemplateItem{PermissionCode: code})
	}

	if err := h.templateService.Create(c.Request.Context(), template); err != nil {
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, template)
}

// GetTemplate 获取模板详情
// GET /api/v1/templates/:id
func (h *AdminHandler) GetTemplate(c *gin.Context) {
	id := c.Param("id")
	template, err := h.templateService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, response.CodeTemplateNotFound)
		return
	}
	response.Success(c, template)
}

// ListTemplates 获取模板列表
// GET /api/v1/templates
func (h *AdminHandler) ListTemplates(c *gin.Context) {
	templates, err := h.templateService.List(c.Request.Context())
	if err != nil {
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, templates)
}

// DeleteTemplate 删除模板
// DELETE /api/v1/templates/:id
func (h *AdminHandler) DeleteTemplate(c *gin.Context) {
	id := c.Param("id")
	if err := h.templateService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrTemplateNotFound) {
			response.Error(c, response.CodeTemplateNotFound)
			return
		}
		if errors.Is(err, service.ErrSystemTemplate) {
			response.Error(c, response.CodeSystemProtected)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, gin.H{"message": "删除成功"})
}

// ApplyTemplateRequest 应用模板请求
type ApplyTemplateRequest struct {
	RoleID string `json:"role_id"`
	UserID string `json:"user_id"`
}

// ApplyTemplate 应用模板到角色或用户
// POST /api/v1/templates/:id/apply
func (h *AdminHandler) ApplyTemplate(c *gin.Context) {
	templateID := c.Param("id")
	var req ApplyTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}
	if req.RoleID == "" && req.UserID == "" {
		response.ErrorWithMsg(c, response.CodeMissingParam, "role_id 与 user_id 至少提供一个")
		return
	}

	var applied int
	var err error
	if req.RoleID != "" {
		applied, err = h.templateService.ApplyToRole(c.Request.Context(), templateID, req.RoleID, operatorID(c))
	} else {
		applied, err = h.templateService.ApplyToUser(c.Request.Context(), templateID, req.UserID, operatorID(c))
	}
	if err != nil {
		if errors.Is(err, service.ErrTemplateNotFound) {
			response.Error(c, response.CodeTemplateNotFound)
			return
		}
		if errors.Is(err, service.ErrRoleNotFound) {
			response.Error(c, response.CodeRoleNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, gin.H{"applied": applied})
}
