package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 标准响应结构
// 字段顺序：code -> msg -> data
type Response struct {
	Code int         `json:"code"` // 业务状态码，0 表示成功
	Msg  string      `json:"msg"`  // 响应消息（中文）
	Data interface{} `json:"data"` // 响应数据
}

// 业务错误码
const (
	CodeSuccess = 0 // 操作成功

	// 参数错误 10xxx
	CodeInvalidRequest = 10001 // 请求参数无效
	CodeInvalidFormat  = 10002 // 参数格式错误
	CodeMissingParam   = 10003 // 必填参数缺失
	CodeInvalidScope   = 10004 // 数据范围无效

	// 认证错误 20xxx
	CodeInvalidToken = 20002 // 令牌无效或已过期
	CodeForbidden    = 20008 // 无权访问该资源

	// 授权域错误 30xxx
	CodeInvalidDelegation  = 30001 // 委托无效
	CodeDelegationInactive = 30002 // 委托未生效或已撤销
	CodeSystemProtected    = 30003 // 系统内置对象不可修改
	CodeHierarchyCycle     = 30004 // 角色继承会形成环
	CodeEdgeExists         = 30005 // 继承关系已存在
	CodeGrantExists        = 30006 // 授权已存在

	// 资源不存在 40xxx
	CodeUserNotFound       = 40001 // 用户不存在
	CodeRoleNotFound       = 40004 // 角色不存在
	CodePermNotFound       = 40005 // 权限不存在
	CodeTemplateNotFound   = 40006 // 权限模板不存在
	CodeDelegationNotFound = 40007 // 委托不存在
	CodeSessionNotFound    = 40008 // 会话不存在

	// 冲突错误 50xxx
	CodeRoleCodeExists = 50004 // 角色代码已存在
	CodePermExists     = 50005 // 权限已存在

	// 服务器错误 90xxx
	CodeServerError = 90001 // 服务器内部错误
	CodeUnavailable = 90002 // 服务暂时不可用
	CodeTooManyReq  = 90003 // 请求过于频繁
)

// 错误码对应的消息
var codeMessages = map[int]string{
	CodeSuccess:            "操作成功",
	CodeInvalidRequest:     "请求参数无效",
	CodeInvalidFormat:      "参数格式错误",
	CodeMissingParam:       "必填参数缺失",
	CodeInvalidScope:       "数据范围无效",
	CodeInvalidToken:       "令牌无效或已过期",
	CodeForbidden:          "无权访问该资源",
	CodeInvalidDelegation:  "委托无效",
	CodeDelegationInactive: "委托未生效或已撤销",
	CodeSystemProtected:    "系统内置对象不可修改",
	CodeHierarchyCycle:     "角色继承会形成环",
	CodeEdgeExists:         "继承关系已存在",
	CodeGrantExists:        "授权已存在",
	CodeUserNotFound:       "用户不存在",
	CodeRoleNotFound:       "角色不存在",
	CodePermNotFound:       "权限不存在",
	CodeTemplateNotFound:   "权限模板不存在",
	CodeDelegationNotFound: "委托不存在",
	CodeSessionNotFound:    "会话不存在",
	CodeRoleCodeExists:     "角色代码已存在",
	CodePermExists:         "权限已存在",
	CodeServerError:        "服务器内部错误，请稍后重试",
	CodeUnavailable:        "服务暂时不可用",
	CodeTooManyReq:         "请求过于频繁，请稍后重试",
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: CodeSuccess,
		Msg:  codeMessages[CodeSuccess],
		Data: data,
	})
}

// SuccessWithMsg 成功响应（自定义消息）
func SuccessWithMsg(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: CodeSuccess,
		Msg:  msg,
		Data: data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int) {
	msg, ok := codeMessages[code]
	if !ok {
		msg = "未知错误"
	}
	c.JSON(codeToHTTPStatus(code), Response{
		Code: code,
		Msg:  msg,
		Data: nil,
	})
}

// ErrorWithMsg 错误响应（自定义消息）
func ErrorWithMsg(c *gin.Context, code int, msg string) {
	c.JSON(codeToHTTPStatus(code), Response{
		Code: code,
		Msg:  msg,
		Data: nil,
	})
}

// codeToHTTPStatus 业务错误码转 HTTP 状态码
func codeToHTTPStatus(code int) int {
	switch {
	case code == CodeSuccess:
		return http.StatusOK
	case code >= 10000 && code < 20000:
		return http.StatusBadRequest
	case code >= 20000 && code < 30000:
		if code == CodeInvalidToken {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case code >= 30000 && code < 40000:
		return http.StatusBadRequest
	case code >= 40000 && code < 50000:
		return http.StatusNotFound
	case code >= 50000 && code < 60000:
		return http.StatusConflict
	case code == CodeTooManyReq:
		return http.StatusTooManyRequests
	case code == CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
