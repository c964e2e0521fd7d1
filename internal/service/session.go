// Package service 业务逻辑层
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound  = errors.New("会话不存在")
	ErrSessionExpired   = errors.New("会话已过期")
	ErrSnapshotNotFound = errors.New("权限快照不存在")
)

// SessionService 会话服务接口
// 管理权限快照的生命周期：会话开始构建、重新拉取时整体重建、
// 登出时连同决策缓存一起丢弃，不同身份之间不复用任何缓存
type SessionService interface {
	Create(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, sessionID string) (*model.Session, error)

	// BuildSnapshot 拉取用户授权快照并重建该会话的决策缓存
	BuildSnapshot(ctx context.Context, sessionID, userID string) (*model.PermissionSnapshot, error)
	GetSnapshot(ctx context.Context, sessionID string) (*model.PermissionSnapshot, error)

	// Cache 取会话私有的决策缓存，没有则创建
	Cache(sessionID string) *PermissionCache

	// Logout 销毁整个会话：Redis 快照与本地缓存整体丢弃
	Logout(ctx context.Context, sessionID string) error
}

// SessionServiceConfig 会话服务配置
type SessionServiceConfig struct {
	SessionExpiry time.Duration         // 会话有效期，默认 8 小时
	CacheConfig   PermissionCacheConfig // 会话私有决策缓存配置
}

type sessionService struct {
	redis    *redis.Client
	resolver ResolverService
	config   *SessionServiceConfig
	logger   *zap.Logger

	mu     sync.RWMutex
	caches map[string]*PermissionCache // 会话 ID -> 私有决策缓存
}

// NewSessionService 创建会话服务
func NewSessionService(redisClient *redis.Client, resolver ResolverService, config *SessionServiceConfig, logger *zap.Logger) SessionService {
	if config == nil {
		config = &SessionServiceConfig{}
	}
	if config.SessionExpiry == 0 {
		config.SessionExpiry = 8 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sessionService{
		redis:    redisClient,
		resolver: resolver,
		config:   config,
		logger:   logger,
		caches:   make(map[string]*PermissionCache),
	}
}

// Redis key 前缀
const (
	sessionKeyPrefix  = "perm:session:"
	snapshotKeyPrefix = "perm:snapshot:"
)

// Create 创建会话
func (s *sessionService) Create(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = time.Now().Add(s.config.SessionExpiry)
	}
	session.CreatedAt = time.Now()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("会话过期时间无效")
	}

	key := sessionKeyPrefix + session.ID
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("存储会话失败: %w", err)
	}
	return nil
}

// Get 获取会话
func (s *sessionService) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	key := sessionKeyPrefix + sessionID
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("获取会话失败: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("反序列化会话失败: %w", err)
	}

	if session.IsExpired() {
		s.redis.Del(ctx, key)
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// BuildSnapshot 拉取快照并重建会话缓存
// 快照与缓存始终成对更新，避免两者对同一请求给出不同答案
func (s *sessionService) BuildSnapshot(ctx context.Context, sessionID, userID string) (*model.PermissionSnapshot, error) {
	snapshot, err := s.resolver.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("序列化权限快照失败: %w", err)
	}

	key := snapshotKeyPrefix + sessionID
	if err := s.redis.Set(ctx, key, data, s.config.SessionExpiry).Err(); err != nil {
		return nil, fmt.Errorf("存储权限快照失败: %w", err)
	}

	s.Cache(sessionID).Rebuild(snapshot)
	return snapshot, nil
}

// GetSnapshot 读取会话快照
func (s *sessionService) GetSnapshot(ctx context.Context, sessionID string) (*model.PermissionSnapshot, error) {
	key := snapshotKeyPrefix + sessionID
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("获取权限快照失败: %w", err)
	}

	var snapshot model.PermissionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("反序列化权限快照失败: %w", err)
	}
	return &snapshot, nil
}

// Cache 取会话私有决策缓存
func (s *sessionService) Cache(sessionID string) *PermissionCache {
	s.mu.RLock()
	cache, ok := s.caches[sessionID]
	s.mu.RUnlock()
	if ok {
		return cache
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cache, ok := s.caches[sessionID]; ok {
		return cache
	}
	cache = NewPermissionCache(s.config.CacheConfig, s.logger)
	s.caches[sessionID] = cache
	return cache
}

// Logout 销毁会话
func (s *sessionService) Logout(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, sessionKeyPrefix+sessionID, snapshotKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}

	s.mu.Lock()
	cache, ok := s.caches[sessionID]
	delete(s.caches, sessionID)
	s.mu.Unlock()
	if ok {
		cache.InvalidateAll()
	}

	s.logger.Info("会话已销毁，权限快照与决策缓存整体丢弃",
		zap.String("session_id", sessionID))
	return nil
}
