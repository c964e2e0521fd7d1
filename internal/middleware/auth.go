package middleware

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sxedu-cn/perm-backend/pkg/response"
)

// IdentityClaims 统一身份平台签发的令牌声明
// 本服务不签发令牌，只验签
type IdentityClaims struct {
	SessionID string `json:"sid,omitempty"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier RS256 令牌验签器
type TokenVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewTokenVerifier 从 PEM 公钥创建验签器
func NewTokenVerifier(publicKeyPEM []byte, issuer string) (*TokenVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("解析公钥失败: %w", err)
	}
	return &TokenVerifier{publicKey: key, issuer: issuer}, nil
}

// Verify 验证令牌并返回声明
func (v *TokenVerifier) Verify(tokenString string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("令牌无效")
	}
	return claims, nil
}

// JWTAuth JWT 认证中间件
// 验证身份平台令牌，把 user_id 与 session_id 存入上下文
func JWTAuth(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从 Authorization 头获取令牌
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.ErrorWithMsg(c, response.CodeInvalidToken, "未提供认证令牌")
			c.Abort()
			return
		}

		// 检查 Bearer 前缀
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.ErrorWithMsg(c, response.CodeInvalidToken, "认证令牌格式错误")
			c.Abort()
			return
		}

		claims, err := verifier.Verify(parts[1])
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				response.ErrorWithMsg(c, response.CodeInvalidToken, "令牌已过期")
			default:
				response.Error(c, response.CodeInvalidToken)
			}
			c.Abort()
			return
		}

		if claims.Subject == "" {
			response.ErrorWithMsg(c, response.CodeInvalidToken, "令牌缺少用户标识")
			c.Abort()
			return
		}

		// 将用户信息存入上下文
		c.Set("user_id", claims.Subject)
		c.Set("session_id", claims.SessionID)
		c.Set("claims", claims)

		c.Next()
	}
}
