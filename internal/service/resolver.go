package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"linkgate-go/internal/apperrors"
	"linkgate-go/internal/config"
	"linkgate-go/internal/model"
	"linkgate-go/internal/repository"
	"linkgate-go/pkg/logging"
	"linkgate-go/pkg/utils"
)

// Outcome 解析结果类型
type Outcome int

const (
	OutcomeRedirect Outcome = iota
	OutcomeNotFound
	OutcomeRequiresPassword
)

// Resolution 一次 slug 解析的终态
type Resolution struct {
	Outcome   Outcome
	TargetURL string
	NoIndex   bool
}

// Resolver 重定向解析状态机：
// Lookup → (NotFound | ExpiryCheck) → (Expired | PasswordCheck) →
// (RequiresPassword | Allowed)。
// RequiresPassword 不在本流程内解决，由带凭证的 VerifyPassword
// 重新进入 PasswordCheck。
type Resolver struct {
	store  repository.LinkStore
	cache  repository.LinkCache
	guard  *PasswordGuard
	clicks *ClickAccountant
	now    func() time.Time
}

func NewResolver(store repository.LinkStore, cache repository.LinkCache, guard *PasswordGuard, clicks *ClickAccountant) *Resolver {
	return &Resolver{
		store:  store,
		cache:  cache,
		guard:  guard,
		clicks: clicks,
		now:    time.Now,
	}
}

// Resolve 解析 slug。slug 缺失或已过期返回 OutcomeNotFound，
// 这是预期输入而非系统错误；存储故障重试耗尽才返回错误。
func (r *Resolver) Resolve(ctx context.Context, slug string) (*Resolution, error) {
	if err := utils.ValidateSlug(slug); err != nil {
		return &Resolution{Outcome: OutcomeNotFound}, nil
	}

	link, err := r.lookup(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Resolution{Outcome: OutcomeNotFound}, nil
		}
		return nil, err
	}

	// PasswordCheck：受保护链接先给出凭证质询，不计访问
	if link.Protected() {
		return &Resolution{Outcome: OutcomeRequiresPassword, NoIndex: link.NoIndex}, nil
	}

	// Allowed：计数不阻塞响应
	r.clicks.RecordVisit(slug)
	return &Resolution{Outcome: OutcomeRedirect, TargetURL: link.TargetURL, NoIndex: link.NoIndex}, nil
}

// VerifyPassword 带凭证重新进入 PasswordCheck。先限流，后比较；
// 失败记录尝试并返回剩余次数，成功不清除既有失败记录。
func (r *Resolver) VerifyPassword(ctx context.Context, slug, candidate, sourceAddr string) (*Resolution, error) {
	link, err := r.lookup(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Resolution{Outcome: OutcomeNotFound}, nil
		}
		return nil, err
	}

	if !link.Protected() {
		// 无密码链接直接放行，不做任何校验
		r.clicks.RecordVisit(slug)
		return &Resolution{Outcome: OutcomeRedirect, TargetURL: link.TargetURL, NoIndex: link.NoIndex}, nil
	}

	// 限流判定先于任何哈希比较
	if err := r.guard.CheckRateLimit(ctx, slug, sourceAddr); err != nil {
		return nil, err
	}

	// 六位数字密码先做格式校验，格式错误不消耗尝试次数
	if link.PasswordType == model.PasswordSixDigit {
		if err := utils.ValidateSixDigit(candidate); err != nil {
			return nil, apperrors.InvalidRequestError(err.Error())
		}
	} else {
		if err := utils.ValidateCustomPassword(candidate); err != nil {
			return nil, apperrors.InvalidRequestError(err.Error())
		}
	}

	if !r.guard.Verify(candidate, link.PasswordHash) {
		remaining := r.guard.RecordFailure(ctx, slug, sourceAddr)
		return nil, apperrors.NewVerificationFailed(remaining)
	}

	r.clicks.RecordVisit(slug)
	return &Resolution{Outcome: OutcomeRedirect, TargetURL: link.TargetURL, NoIndex: link.NoIndex}, nil
}

// lookup 取链接并执行过期检查。过期按"删除后 NotFound"处理：
// 惰性删除保证正确性，定期清理只是存储卫生。
func (r *Resolver) lookup(ctx context.Context, slug string) (*model.Link, error) {
	link, err := r.cache.Get(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 空值缓存命中
			return nil, repository.ErrNotFound
		}

		link, err = r.fetchWithRetry(ctx, slug)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.cache.SetMissing(ctx, slug)
			}
			return nil, err
		}
		r.cache.Set(ctx, link, config.Current().CacheTTL)
	}

	// ExpiryCheck
	if link.IsExpired(r.now()) {
		if err := r.store.Delete(ctx, link.ID); err != nil {
			logging.Logger.Warn("Failed to delete expired link",
				zap.String("slug", slug),
				zap.Uint("id", link.ID),
				zap.Error(err))
		}
		r.cache.Invalidate(ctx, slug)
		return nil, repository.ErrNotFound
	}

	return link, nil
}

// fetchWithRetry 瞬态存储错误有界重试，耗尽后升级为终态解析错误
func (r *Resolver) fetchWithRetry(ctx context.Context, slug string) (*model.Link, error) {
	retries := config.Current().LookupRetries

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		link, err := r.store.GetBySlug(ctx, slug)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}

		lastErr = err
		logging.Logger.Warn("Transient store error during lookup",
			zap.String("slug", slug),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, apperrors.FatalResolutionError(lastErr)
}
