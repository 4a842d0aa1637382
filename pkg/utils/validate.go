package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"unicode"
)

const (
	MaxSlugLength     = 32
	MaxPasswordLength = 128
)

var (
	slugPattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	sixDigitPattern = regexp.MustCompile(`^[0-9]{6}$`)
)

// ValidateSlug 校验 slug 是否合法
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("error.slug_required")
	}

	if ContainsWhitespace(slug) {
		return fmt.Errorf("error.slug_cannot_contain_spaces")
	}

	if len(slug) > MaxSlugLength {
		return fmt.Errorf("error.slug_max_length")
	}

	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("error.slug_invalid")
	}

	return nil
}

// ValidateTargetURL 校验目标 URL 的合法性，仅允许 http/https
func ValidateTargetURL(targetURL string) error {
	// 1. 检查目标 URL 是否为空
	if targetURL == "" {
		return fmt.Errorf("error.target_url_required")
	}

	// 2. URL 格式校验
	u, err := url.ParseRequestURI(targetURL)
	if err != nil {
		return fmt.Errorf("error.target_url_invalid")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("error.target_url_scheme")
	}

	// 3. URL 长度限制
	if len(targetURL) > 2048 {
		return fmt.Errorf("error.target_url_max_length")
	}
	return nil
}

// ValidateSixDigit 校验六位数字密码格式（哈希前执行）
func ValidateSixDigit(candidate string) error {
	if !sixDigitPattern.MatchString(candidate) {
		return fmt.Errorf("error.password_six_digit_format")
	}
	return nil
}

// ValidateCustomPassword 校验自定义密码格式（哈希前执行）
func ValidateCustomPassword(candidate string) error {
	if candidate == "" {
		return fmt.Errorf("error.password_required")
	}
	if len(candidate) > MaxPasswordLength {
		return fmt.Errorf("error.password_max_length")
	}
	return nil
}

func ContainsWhitespace(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
