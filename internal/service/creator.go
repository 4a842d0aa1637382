package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"linkgate-go/internal/apperrors"
	"linkgate-go/internal/config"
	"linkgate-go/internal/dto"
	"linkgate-go/internal/model"
	"linkgate-go/internal/repository"
	"linkgate-go/pkg/logging"
)

// Creator 链接创建流程：校验 → 外部检查 → 密码哈希 → slug 分配 → 持久化
type Creator struct {
	store      repository.LinkStore
	cache      repository.LinkCache
	counter    repository.VisitCounter
	prober     AvailabilityProber
	classifier SafetyClassifier
	now        func() time.Time
}

func NewCreator(store repository.LinkStore, cache repository.LinkCache, counter repository.VisitCounter, prober AvailabilityProber, classifier SafetyClassifier) *Creator {
	return &Creator{
		store:      store,
		cache:      cache,
		counter:    counter,
		prober:     prober,
		classifier: classifier,
		now:        time.Now,
	}
}

// Create 创建短链
func (c *Creator) Create(ctx context.Context, req dto.CreateLinkRequest) (*model.Link, error) {
	// Gin 标准验证
	if err := req.Validate(); err != nil {
		return nil, apperrors.InvalidRequestError(err.Error())
	}

	settings := config.Current()

	// 过期时间：显式时长优先，否则按配置默认值
	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			return nil, apperrors.InvalidRequestError("error.expires_in_invalid")
		}
		t := c.now().Add(d)
		expiresAt = &t
	} else if settings.DefaultExpiry > 0 {
		t := c.now().Add(settings.DefaultExpiry)
		expiresAt = &t
	}

	// 密码配置
	pwType := model.PasswordNone
	pwHash := ""
	if req.Password != nil && req.Password.Type != "" && req.Password.Type != string(model.PasswordNone) {
		pwType = model.PasswordType(req.Password.Type)
		hash, err := HashPassword(pwType, req.Password.Value)
		if err != nil {
			return nil, apperrors.InvalidRequestError(err.Error())
		}
		pwHash = hash
	}

	// 外部检查：受超时约束，create 绝不无限等待
	if err := c.runExternalChecks(ctx, req.TargetURL, settings); err != nil {
		return nil, err
	}

	link := &model.Link{
		TargetURL:    req.TargetURL,
		OwnerID:      req.OwnerID,
		ExpiresAt:    expiresAt,
		PasswordType: pwType,
		PasswordHash: pwHash,
		NoIndex:      req.NoIndex,
	}

	if req.Slug != "" {
		// 自定义 slug：同样的字符集校验 + 拒绝列表，冲突直接报告
		if err := ValidateCustomSlug(req.Slug); err != nil {
			return nil, apperrors.InvalidRequestError(err.Error())
		}
		link.Slug = req.Slug
		if err := c.store.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrDuplicateSlug) {
				return nil, apperrors.DuplicateSlugError(req.Slug)
			}
			logging.Logger.Error("Failed to create link", zap.Error(err))
			return nil, apperrors.SystemErrorDefault()
		}
		return link, nil
	}

	// 生成 slug：冲突重新生成，有界重试。重试耗尽是配置错误
	// （字母表/长度相对负载太小），与瞬态存储错误区分。
	for attempt := 0; attempt < settings.SlugMaxRetries; attempt++ {
		slug, err := GenerateSlug(settings.SlugLength)
		if err != nil {
			logging.Logger.Error("Random source failure", zap.Error(err))
			return nil, apperrors.SystemErrorDefault()
		}

		link.Slug = slug
		err = c.store.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, repository.ErrDuplicateSlug) {
			logging.Logger.Warn("Generated slug collision, retrying",
				zap.String("slug", slug),
				zap.Int("attempt", attempt+1))
			continue
		}
		logging.Logger.Error("Failed to create link", zap.Error(err))
		return nil, apperrors.SystemErrorDefault()
	}

	logging.Logger.Error("Slug space exhausted",
		zap.Int("length", settings.SlugLength),
		zap.Int("retries", settings.SlugMaxRetries))
	return nil, &apperrors.AppError{
		Code:    http.StatusInternalServerError,
		Message: "error.slug_space_exhausted",
		Cause:   ErrSlugSpaceExhausted,
	}
}

// Delete 管理删除，同时使缓存失效
func (c *Creator) Delete(ctx context.Context, id uint) error {
	link, err := c.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundError()
		}
		return apperrors.SystemErrorDefault()
	}

	if err := c.store.Delete(ctx, id); err != nil {
		return apperrors.SystemError("error.delete_failed")
	}
	c.cache.Invalidate(ctx, link.Slug)
	return nil
}

// Stats 返回持久计数及 Redis 镜像计数
func (c *Creator) Stats(ctx context.Context, slug string) (*dto.LinkStatsResponse, error) {
	link, err := c.store.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundError()
		}
		return nil, apperrors.SystemErrorDefault()
	}

	var cached int64
	if c.counter != nil {
		if v, err := c.counter.Get(ctx, slug); err == nil {
			cached = v
		}
	}

	return &dto.LinkStatsResponse{
		Slug:        link.Slug,
		VisitCount:  link.VisitCount,
		CachedCount: cached,
	}, nil
}

// runExternalChecks 可达性探测 + 安全分类。超时视为"结论未知"，
// fail_open 策略决定放行还是拒绝。
func (c *Creator) runExternalChecks(ctx context.Context, targetURL string, settings *config.Settings) error {
	checkCtx, cancel := context.WithTimeout(ctx, settings.ProbeTimeout)
	defer cancel()

	if c.prober != nil {
		if err := c.prober.Probe(checkCtx, targetURL); err != nil {
			if !settings.ProbeFailOpen {
				return apperrors.BusinessError(http.StatusBadRequest, "error.target_unreachable")
			}
			logging.Logger.Warn("Availability probe inconclusive, allowing by policy",
				zap.String("target_url", targetURL),
				zap.Error(err))
		}
	}

	if c.classifier != nil {
		if err := c.classifier.Classify(checkCtx, targetURL); err != nil {
			if errors.Is(err, ErrInconclusive) {
				if !settings.ProbeFailOpen {
					return apperrors.BusinessError(http.StatusBadRequest, "error.classification_inconclusive")
				}
				logging.Logger.Warn("Safety classification inconclusive, allowing by policy",
					zap.String("target_url", targetURL))
				return nil
			}
			// 明确判定为恶意
			return apperrors.BusinessError(http.StatusBadRequest, "error.target_rejected")
		}
	}
	return nil
}
