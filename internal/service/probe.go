package service

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrInconclusive 外部检查超时或出错，结论未知。
// 放行还是拒绝由 probe.fail_open 策略决定，不在机制层。
var ErrInconclusive = errors.New("external check inconclusive")

// AvailabilityProber 创建链接时的可达性探测。必须受短超时约束，
// create 绝不能无限等待外部检查。
type AvailabilityProber interface {
	Probe(ctx context.Context, targetURL string) error
}

// SafetyClassifier 恶意 URL 分类的外部协作方
type SafetyClassifier interface {
	Classify(ctx context.Context, targetURL string) error
}

// HeadProber HEAD 请求探测实现
type HeadProber struct {
	client *http.Client
}

func NewHeadProber(timeout time.Duration) *HeadProber {
	return &HeadProber{
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HeadProber) Probe(ctx context.Context, targetURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, targetURL, nil)
	if err != nil {
		return ErrInconclusive
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ErrInconclusive
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return ErrInconclusive
	}
	return nil
}

// NoopClassifier 默认分类器，一律视为安全
type NoopClassifier struct{}

func (NoopClassifier) Classify(ctx context.Context, targetURL string) error {
	return nil
}
