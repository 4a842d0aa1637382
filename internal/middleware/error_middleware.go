package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"linkgate-go/internal/apperrors"
	"linkgate-go/internal/i18n"
	"linkgate-go/response"
)

// GlobalErrorMiddleware 全局错误中间件。error.* 形式的消息 ID
// 按请求语言翻译后返回。
func GlobalErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// 如果有错误发生
		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				var appErr *apperrors.AppError
				if errors.As(err.Err, &appErr) {
					msg := appErr.Message
					if strings.HasPrefix(msg, "error.") {
						msg = i18n.Localize(c.Request.Context(), msg)
					}
					c.AbortWithStatusJSON(appErr.Code, response.Error(msg))
					return
				}
			}

			// 默认处理未定义的错误
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				response.Error(i18n.Localize(c.Request.Context(), "error.system")))
			return
		}
	}
}
