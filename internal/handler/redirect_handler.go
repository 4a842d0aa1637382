package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"linkgate-go/internal/config"
	"linkgate-go/internal/i18n"
	"linkgate-go/internal/service"
	"linkgate-go/response"
)

// RedirectHandler 读路径入口。slug 缺失或过期重定向到默认页，
// 这是预期输入；受保护链接返回凭证质询。
func (h *LinkHandler) RedirectHandler(c *gin.Context) {
	// 提取路径作为完整的 slug（自动去掉前导 '/'）
	slug := c.Request.URL.Path[1:]
	if slug == "" {
		// 根路径不走解析，避免 fallback 指向 "/" 时的循环跳转
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), slug)
	if err != nil {
		_ = c.Error(err)
		return
	}

	switch res.Outcome {
	case service.OutcomeNotFound:
		c.Redirect(http.StatusFound, config.Current().FallbackURL)

	case service.OutcomeRequiresPassword:
		msg := i18n.Localize(c.Request.Context(), "error.password_required")
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(msg))

	case service.OutcomeRedirect:
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		if res.NoIndex {
			c.Header("X-Robots-Tag", "noindex")
		}
		c.Redirect(http.StatusFound, res.TargetURL)
	}
}
