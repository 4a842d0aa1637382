package service

import (
	"crypto/rand"
	"errors"
	"strings"

	"linkgate-go/internal/config"
	"linkgate-go/pkg/utils"
)

// slug 使用 64 字符的 URL 安全字母表。slug 同时承担访问控制角色，
// 必须用密码学强度的随机源，可猜测性是安全属性而非外观问题。
const slugAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"

// ErrSlugSpaceExhausted 重试耗尽：字母表/长度相对负载过小，属配置错误，
// 与瞬态存储错误区分开
var ErrSlugSpaceExhausted = errors.New("slug space exhausted after max retries")

// GenerateSlug 生成指定长度的随机 slug
func GenerateSlug(length int) (string, error) {
	if length <= 0 {
		length = config.Current().SlugLength
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// 字母表恰为 64 字符，按位掩码无取模偏差
	for i := range b {
		b[i] = slugAlphabet[b[i]&63]
	}
	return string(b), nil
}

// ValidateCustomSlug 自定义 slug 跳过生成，但须通过同样的字符集校验
// 和保留词拒绝列表；不通过属参数校验错误，不是生成错误。
func ValidateCustomSlug(slug string) error {
	if err := utils.ValidateSlug(slug); err != nil {
		return err
	}

	denylist := config.Current().Denylist
	if _, reserved := denylist[strings.ToLower(slug)]; reserved {
		return errors.New("error.slug_reserved")
	}
	return nil
}
