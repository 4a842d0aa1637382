package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"linkgate-go/constant"
	"linkgate-go/internal/model"
	"linkgate-go/pkg/logging"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// cachedLink 缓存条目的序列化载体。Link 的 json 标签面向 API 输出，
// 凭证哈希被排除在外；缓存值是内部数据，必须完整保留，
// 否则命中缓存的受保护链接无法完成密码校验。
type cachedLink struct {
	model.Link
	PasswordHash string `json:"passwordHash"`
}

// MarshalCachedLink 序列化缓存条目
func MarshalCachedLink(link *model.Link) ([]byte, error) {
	return json.Marshal(cachedLink{Link: *link, PasswordHash: link.PasswordHash})
}

// UnmarshalCachedLink 反序列化缓存条目
func UnmarshalCachedLink(data []byte) (*model.Link, error) {
	var entry cachedLink
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	link := entry.Link
	link.PasswordHash = entry.PasswordHash
	return &link, nil
}

// LinkCache 解析路径上的旁路缓存。命中空值表示"确认不存在"，
// 用于抵挡缓存穿透。
type LinkCache interface {
	Get(ctx context.Context, slug string) (*model.Link, error)
	Set(ctx context.Context, link *model.Link, ttl time.Duration)
	SetMissing(ctx context.Context, slug string)
	Invalidate(ctx context.Context, slug string)
}

// RedisLinkCache redigo 实现；写失败只记日志，不影响调用方
type RedisLinkCache struct {
	pool *redis.Pool
}

func NewRedisLinkCache(pool *redis.Pool) *RedisLinkCache {
	return &RedisLinkCache{pool: pool}
}

// Get 返回 (nil, repository.ErrNotFound) 表示命中空值缓存
func (c *RedisLinkCache) Get(ctx context.Context, slug string) (*model.Link, error) {
	conn := c.pool.Get()
	defer closeConn(conn)

	cacheKey := constant.GetLinkCacheKey(slug)

	cachedValue, err := redis.Bytes(conn.Do("GET", cacheKey))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, ErrCacheMiss
		}
		logging.Logger.Warn("Error getting from Redis",
			zap.String("cache_key", cacheKey),
			zap.Error(err))
		return nil, ErrCacheMiss
	}

	// 空值缓存命中：该 slug 确认不存在
	if len(cachedValue) == 0 {
		return nil, ErrNotFound
	}

	link, err := UnmarshalCachedLink(cachedValue)
	if err != nil {
		logging.Logger.Warn("Failed to unmarshal cached value",
			zap.String("cache_key", cacheKey),
			zap.Error(err))
		return nil, ErrCacheMiss
	}
	return link, nil
}

func (c *RedisLinkCache) Set(ctx context.Context, link *model.Link, ttl time.Duration) {
	conn := c.pool.Get()
	defer closeConn(conn)

	cacheKey := constant.GetLinkCacheKey(link.Slug)
	cachedValue, err := MarshalCachedLink(link)
	if err != nil {
		return
	}

	if _, err := conn.Do("SET", cacheKey, cachedValue, "EX", int64(ttl.Seconds())); err != nil {
		logging.Logger.Error("设置缓存失败",
			zap.String("cache_key", cacheKey),
			zap.Error(err),
		)
	}
}

// SetMissing 缓存空值，防止缓存穿透
func (c *RedisLinkCache) SetMissing(ctx context.Context, slug string) {
	conn := c.pool.Get()
	defer closeConn(conn)

	cacheKey := constant.GetLinkCacheKey(slug)
	if _, err := conn.Do("SET", cacheKey, "", "EX", 300); err != nil {
		logging.Logger.Error("设置缓存失败",
			zap.String("cache_key", cacheKey),
			zap.Error(err),
		)
	}
}

func (c *RedisLinkCache) Invalidate(ctx context.Context, slug string) {
	conn := c.pool.Get()
	defer closeConn(conn)

	cacheKey := constant.GetLinkCacheKey(slug)
	if _, err := conn.Do("DEL", cacheKey); err != nil {
		logging.Logger.Warn("Redis 删除缓存失败",
			zap.String("cache_key", cacheKey),
			zap.Error(err))
	}
}
