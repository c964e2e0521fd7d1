// Package handler HTTP 处理器
package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
	"github.com/sxedu-cn/perm-backend/internal/service"
	"github.com/sxedu-cn/perm-backend/pkg/response"
)

// AccessHandler 运行时权限查询处理器
type AccessHandler struct {
	checkService   service.CheckService
	sessionService service.SessionService
}

// NewAccessHandler 创建运行时权限查询处理器
func NewAccessHandler(checkSvc service.CheckService, sessionSvc service.SessionService) *AccessHandler {
	return &AccessHandler{
		checkService:   checkSvc,
		sessionService: sessionSvc,
	}
}

// CheckRequest 权限检查请求
type CheckRequest struct {
	Resource string `json:"resource" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Scope    string `json:"scope"`
}

// CheckBatchRequest 批量权限检查请求
type CheckBatchRequest struct {
	Checks []CheckRequest `json:"checks" binding:"required,min=1,max=50"`
}

func (r CheckRequest) toService() (service.CheckRequest, bool) {
	req := service.CheckRequest{
		Resource: r.Resource,
		Action:   model.Action(r.Action),
	}
	if r.Scope != "" {
		scope, ok := model.ParseScope(r.Scope)
		if !ok {
			return service.CheckRequest{}, false
		}
		req.Scope = scope
	}
	return req, true
}

// Check 单次权限检查
// POST /api/v1/permissions/check
func (h *AccessHandler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	svcReq, ok := req.toService()
	if !ok {
		response.Error(c, response.CodeInvalidScope)
		return
	}

	userID := c.GetString("user_id")
	sessionID := c.GetString("session_id")

	decision, err := h.checkService.Check(c.Request.Context(), sessionID, userID, svcReq)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(c, response.CodeUserNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, decision)
}

// CheckBatch 批量权限检查
// POST /api/v1/permissions/check-batch
func (h *AccessHandler) CheckBatch(c *gin.Context) {
	var req CheckBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidRequest, "参数错误: "+err.Error())
		return
	}

	svcReqs := make([]service.CheckRequest, 0, len(req.Checks))
	for _, check := range req.Checks {
		svcReq, ok := check.toService()
		if !ok {
			response.Error(c, response.CodeInvalidScope)
			return
		}
		svcReqs = append(svcReqs, svcReq)
	}

	userID := c.GetString("user_id")
	sessionID := c.GetString("session_id")

	decisions, err := h.checkService.CheckBatch(c.Request.Context(), sessionID, userID, svcReqs)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(c, response.CodeUserNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}

	response.Success(c, decisions)
}

// snapshot 取会话快照，缺失时按需构建
func (h *AccessHandler) snapshot(c *gin.Context) (*model.PermissionSnapshot, bool) {
	userID := c.GetString("user_id")
	sessionID := c.GetString("session_id")
	if sessionID == "" {
		response.ErrorWithMsg(c, response.CodeInvalidToken, "令牌缺少会话标识")
		return nil, false
	}

	snap, err := h.sessionService.GetSnapshot(c.Request.Context(), sessionID)
	if err == nil {
		return snap, true
	}
	if !errors.Is(err, service.ErrSnapshotNotFound) {
		response.Error(c, response.CodeServerError)
		return nil, false
	}

	snap, err = h.sessionService.BuildSnapshot(c.Request.Context(), sessionID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(c, response.CodeUserNotFound)
			return nil, false
		}
		response.Error(c, response.CodeServerError)
		return nil, false
	}
	return snap, true
}

// MyPermissions 当前用户的角色与授权列表
// GET /api/v1/access/permissions
func (h *AccessHandler) MyPermissions(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	response.Success(c, gin.H{
		"roles":      snap.RoleCodes,
		"grants":     snap.Grants,
		"fetched_at": snap.FetchedAt,
	})
}

// MyModules 当前用户可见的模块树
// GET /api/v1/access/modules
func (h *AccessHandler) MyModules(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	response.Success(c, snap.Modules)
}

// RefreshSnapshot 重建当前会话的权限快照
// POST /api/v1/access/refresh
func (h *AccessHandler) RefreshSnapshot(c *gin.Context) {
	userID := c.GetString("user_id")
	sessionID := c.GetString("session_id")
	if sessionID == "" {
		response.ErrorWithMsg(c, response.CodeInvalidToken, "令牌缺少会话标识")
		return
	}

	snap, err := h.sessionService.BuildSnapshot(c.Request.Context(), sessionID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(c, response.CodeUserNotFound)
			return
		}
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, snap)
}

// Logout 登出：销毁会话快照与决策缓存
// POST /api/v1/access/logout
func (h *AccessHandler) Logout(c *gin.Context) {
	sessionID := c.GetString("session_id")
	if sessionID == "" {
		response.ErrorWithMsg(c, response.CodeInvalidToken, "令牌缺少会话标识")
		return
	}

	if err := h.sessionService.Logout(c.Request.Context(), sessionID); err != nil {
		response.Error(c, response.CodeServerError)
		return
	}
	response.Success(c, gin.H{"message": "登出成功"})
}
