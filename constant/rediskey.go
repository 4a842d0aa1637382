package constant

import "fmt"

// 常量定义
const (
	BasePrefix = "redirect:"
	Separator  = ":"
)

// Redis 键模板
const (
	LinkCache   = BasePrefix + "slug" + Separator + "%s"                      // redirect:slug:<slug>
	PasswordLog = BasePrefix + "pwfail" + Separator + "%s" + Separator + "%s" // redirect:pwfail:<slug>:<addr>
	TotalVisits = BasePrefix + "visits" + Separator + "%s"                    // redirect:visits:<slug>
)

// GetLinkCacheKey 生成链接缓存 key
func GetLinkCacheKey(slug string) string {
	return fmt.Sprintf(LinkCache, slug)
}

// GetPasswordLogKey 生成密码失败记录 key（按 slug + 来源地址）
func GetPasswordLogKey(slug, sourceAddr string) string {
	return fmt.Sprintf(PasswordLog, slug, sourceAddr)
}

// GetTotalVisitsKey 生成总访问计数 key
func GetTotalVisitsKey(slug string) string {
	return fmt.Sprintf(TotalVisits, slug)
}
