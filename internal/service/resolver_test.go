package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"linkgate-go/internal/apperrors"
	"linkgate-go/internal/model"
)

type fixture struct {
	store    *memLinkStore
	cache    *memLinkCache
	attempts *memAttemptLog
	guard    *PasswordGuard
	clicks   *ClickAccountant
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	swapSettings(t, testSettings())

	store := newMemLinkStore()
	cache := newMemLinkCache()
	attempts := newMemAttemptLog()
	guard := NewPasswordGuard(attempts)
	clicks := NewClickAccountant(store, nullCounter{})
	clicks.Start()
	t.Cleanup(clicks.Close)

	return &fixture{
		store:    store,
		cache:    cache,
		attempts: attempts,
		guard:    guard,
		clicks:   clicks,
		resolver: NewResolver(store, cache, guard, clicks),
	}
}

func (f *fixture) mustCreate(t *testing.T, link *model.Link) *model.Link {
	t.Helper()
	if err := f.store.Create(context.Background(), link); err != nil {
		t.Fatalf("create link: %v", err)
	}
	return link
}

func TestResolve_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, &model.Link{Slug: "abc_123", TargetURL: "https://example.com/path"})

	res, err := f.resolver.Resolve(context.Background(), "abc_123")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if res.Outcome != OutcomeRedirect {
		t.Fatalf("outcome = %v, want OutcomeRedirect", res.Outcome)
	}
	if res.TargetURL != "https://example.com/path" {
		t.Errorf("target = %q", res.TargetURL)
	}

	// 排空点击队列后计数应为 1
	f.clicks.Close()
	if got := f.store.visitCount("abc_123"); got != 1 {
		t.Errorf("visit count = %d, want 1", got)
	}
}

func TestResolve_NotFound(t *testing.T) {
	f := newFixture(t)

	res, err := f.resolver.Resolve(context.Background(), "missing")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Fatalf("outcome = %v, want OutcomeNotFound", res.Outcome)
	}

	// 空值缓存：第二次解析不再打到存储层
	calls := f.store.getCalls
	if _, err := f.resolver.Resolve(context.Background(), "missing"); err != nil {
		t.Fatalf("second resolve error: %v", err)
	}
	if f.store.getCalls != calls {
		t.Errorf("store queried again despite negative cache: %d -> %d", calls, f.store.getCalls)
	}
}

func TestResolve_InvalidSlugCharset(t *testing.T) {
	f := newFixture(t)

	res, err := f.resolver.Resolve(context.Background(), "has space")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Fatalf("outcome = %v, want OutcomeNotFound", res.Outcome)
	}
	if f.store.getCalls != 0 {
		t.Error("malformed slug should not reach the store")
	}
}

func TestResolve_ExpiredLinkLazyDeleted(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Second)
	f.mustCreate(t, &model.Link{Slug: "old", TargetURL: "https://example.com", ExpiresAt: &past})

	res, err := f.resolver.Resolve(context.Background(), "old")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Fatalf("outcome = %v, want OutcomeNotFound", res.Outcome)
	}

	// 首次访问即触发惰性删除
	if _, err := f.store.GetBySlug(context.Background(), "old"); err == nil {
		t.Error("expired link still present in store after lazy delete")
	}

	// 无论之前成功解析过多少次，过期后始终 NotFound
	res, err = f.resolver.Resolve(context.Background(), "old")
	if err != nil || res.Outcome != OutcomeNotFound {
		t.Errorf("expired link resolved again: res=%v err=%v", res, err)
	}
}

func TestResolve_ExpiredLinkInCache(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Second)
	link := f.mustCreate(t, &model.Link{Slug: "stale", TargetURL: "https://example.com", ExpiresAt: &past})

	// 过期记录仍驻留缓存的情形
	f.cache.Set(context.Background(), link, time.Hour)

	res, err := f.resolver.Resolve(context.Background(), "stale")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Fatalf("outcome = %v, want OutcomeNotFound", res.Outcome)
	}
	if _, err := f.cache.Get(context.Background(), "stale"); err == nil {
		t.Error("stale cache entry not invalidated")
	}
}

func TestResolve_TransientStoreErrorRetried(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, &model.Link{Slug: "flaky", TargetURL: "https://example.com"})
	f.store.failGets = 2 // 前两次查询失败，第三次成功

	res, err := f.resolver.Resolve(context.Background(), "flaky")
	if err != nil {
		t.Fatalf("resolve error after retries: %v", err)
	}
	if res.Outcome != OutcomeRedirect {
		t.Fatalf("outcome = %v, want OutcomeRedirect", res.Outcome)
	}
}

func TestResolve_RetriesExhaustedIsFatal(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, &model.Link{Slug: "down", TargetURL: "https://example.com"})
	f.store.failGets = 10 // 超过重试上限

	_, err := f.resolver.Resolve(context.Background(), "down")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Message != "error.resolution_failed" {
		t.Fatalf("expected fatal resolution error, got %v", err)
	}
	if !errors.Is(appErr.Cause, errTransient) {
		t.Errorf("cause = %v, want underlying transient error", appErr.Cause)
	}
}

func TestResolve_ProtectedLinkRequiresPassword(t *testing.T) {
	f := newFixture(t)
	hash, err := HashPassword(model.PasswordSixDigit, "123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	f.mustCreate(t, &model.Link{
		Slug: "secret", TargetURL: "https://example.com",
		PasswordType: model.PasswordSixDigit, PasswordHash: hash,
	})

	res, err := f.resolver.Resolve(context.Background(), "secret")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if res.Outcome != OutcomeRequiresPassword {
		t.Fatalf("outcome = %v, want OutcomeRequiresPassword", res.Outcome)
	}

	// 质询阶段不计访问
	f.clicks.Close()
	if got := f.store.visitCount("secret"); got != 0 {
		t.Errorf("visit count = %d, want 0 before verification", got)
	}
}

func TestVerifyPassword_SixDigitLockout(t *testing.T) {
	f := newFixture(t)
	hash, _ := HashPassword(model.PasswordSixDigit, "123456")
	f.mustCreate(t, &model.Link{
		Slug: "secret", TargetURL: "https://example.com/ok",
		PasswordType: model.PasswordSixDigit, PasswordHash: hash,
	})

	now := time.Now()
	f.guard.now = func() time.Time { return now }
	ctx := context.Background()

	// 连续 5 次错误密码：剩余次数 4,3,2,1,0
	want := []int{4, 3, 2, 1, 0}
	for i, expected := range want {
		_, err := f.resolver.VerifyPassword(ctx, "secret", "000000", "10.0.0.1")
		var failed *apperrors.VerificationFailedError
		if !errors.As(err, &failed) {
			t.Fatalf("attempt %d: expected VerificationFailed, got %v", i+1, err)
		}
		if failed.Remaining != expected {
			t.Errorf("attempt %d: remaining = %d, want %d", i+1, failed.Remaining, expected)
		}
	}

	// 第 6 次即使密码正确也被限流，且不做哈希比较
	_, err := f.resolver.VerifyPassword(ctx, "secret", "123456", "10.0.0.1")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Message != "error.too_many_attempts" {
		t.Fatalf("expected TooManyAttempts, got %v", err)
	}

	// 窗口完全过去后正确密码放行
	f.guard.now = func() time.Time { return now.Add(time.Hour + time.Second) }
	res, err := f.resolver.VerifyPassword(ctx, "secret", "123456", "10.0.0.1")
	if err != nil {
		t.Fatalf("verify after window: %v", err)
	}
	if res.Outcome != OutcomeRedirect || res.TargetURL != "https://example.com/ok" {
		t.Errorf("unexpected resolution: %+v", res)
	}
}

func TestVerifyPassword_CachedProtectedLink(t *testing.T) {
	f := newFixture(t)
	hash, err := HashPassword(model.PasswordSixDigit, "123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	f.mustCreate(t, &model.Link{
		Slug: "secret", TargetURL: "https://example.com/ok",
		PasswordType: model.PasswordSixDigit, PasswordHash: hash,
	})

	ctx := context.Background()

	// 首次解析返回质询，同时把链接写入缓存
	res, err := f.resolver.Resolve(ctx, "secret")
	if err != nil || res.Outcome != OutcomeRequiresPassword {
		t.Fatalf("challenge expected: res=%v err=%v", res, err)
	}

	// 命中缓存的链接必须携带完整凭证哈希，正确密码一次通过
	calls := f.store.getCalls
	res, err = f.resolver.VerifyPassword(ctx, "secret", "123456", "10.0.0.1")
	if err != nil {
		t.Fatalf("correct password rejected after cache warm: %v", err)
	}
	if res.Outcome != OutcomeRedirect || res.TargetURL != "https://example.com/ok" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if f.store.getCalls != calls {
		t.Errorf("verification bypassed the cache: %d -> %d", calls, f.store.getCalls)
	}

	// 成功校验不得记入失败窗口
	count, _ := f.attempts.CountSince(ctx, "secret", "10.0.0.1", time.Now().Add(-time.Hour))
	if count != 0 {
		t.Errorf("successful verification recorded as failure: count = %d", count)
	}
}

func TestVerifyPassword_FormatViolationNotCounted(t *testing.T) {
	f := newFixture(t)
	hash, _ := HashPassword(model.PasswordSixDigit, "123456")
	f.mustCreate(t, &model.Link{
		Slug: "secret", TargetURL: "https://example.com",
		PasswordType: model.PasswordSixDigit, PasswordHash: hash,
	})

	ctx := context.Background()

	_, err := f.resolver.VerifyPassword(ctx, "secret", "12a", "10.0.0.1")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != 400 {
		t.Fatalf("expected validation error, got %v", err)
	}

	count, _ := f.attempts.CountSince(ctx, "secret", "10.0.0.1", time.Now().Add(-time.Hour))
	if count != 0 {
		t.Errorf("format violation recorded as failed attempt: count = %d", count)
	}
}

func TestVerifyPassword_UnprotectedLinkAlwaysResolves(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, &model.Link{Slug: "open", TargetURL: "https://example.com"})

	// 空凭证对无密码链接直接放行，不做校验
	res, err := f.resolver.VerifyPassword(context.Background(), "open", "", "10.0.0.1")
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if res.Outcome != OutcomeRedirect {
		t.Fatalf("outcome = %v, want OutcomeRedirect", res.Outcome)
	}
}

func TestVerifyPassword_SuccessDoesNotClearFailures(t *testing.T) {
	f := newFixture(t)
	hash, _ := HashPassword(model.PasswordCustom, "hunter2!")
	f.mustCreate(t, &model.Link{
		Slug: "secret", TargetURL: "https://example.com",
		PasswordType: model.PasswordCustom, PasswordHash: hash,
	})

	now := time.Now()
	f.guard.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := f.resolver.VerifyPassword(ctx, "secret", "wrong", "10.0.0.1"); err == nil {
			t.Fatal("wrong password accepted")
		}
	}

	// 成功一次
	if _, err := f.resolver.VerifyPassword(ctx, "secret", "hunter2!", "10.0.0.1"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}

	// 既有失败记录仍计入窗口：再失败一次即触顶
	if _, err := f.resolver.VerifyPassword(ctx, "secret", "wrong", "10.0.0.1"); err == nil {
		t.Fatal("wrong password accepted")
	}
	_, err := f.resolver.VerifyPassword(ctx, "secret", "hunter2!", "10.0.0.1")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Message != "error.too_many_attempts" {
		t.Fatalf("expected TooManyAttempts after burst, got %v", err)
	}
}
