package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"linkgate-go/internal/apperrors"
	"linkgate-go/internal/dto"
	"linkgate-go/internal/i18n"
	"linkgate-go/internal/service"
	"linkgate-go/response"
)

type LinkHandler struct {
	creator  *service.Creator
	resolver *service.Resolver
}

func NewLinkHandler(creator *service.Creator, resolver *service.Resolver) *LinkHandler {
	return &LinkHandler{creator: creator, resolver: resolver}
}

// CreateLinkHandler 创建短链（POST /api/links）
func (h *LinkHandler) CreateLinkHandler(c *gin.Context) {
	var req dto.CreateLinkRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		// 检查错误是否为 ValidationErrors 类型
		if validationErrs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrs {
				// 通过反射获取字段的 msg 标签值
				field, ok := reflect.TypeOf(req).FieldByName(e.Field())
				if !ok {
					_ = c.Error(apperrors.InvalidRequestErrorDefault())
					return
				}

				customMsg := field.Tag.Get("msg")
				if customMsg != "" {
					_ = c.Error(apperrors.InvalidRequestError(customMsg))
					return
				}
			}
		}
		zap.L().Warn("Request body binding failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		_ = c.Error(apperrors.InvalidRequestErrorDefault())
		return
	}

	link, err := h.creator.Create(c.Request.Context(), req)
	if err != nil {
		zap.L().Warn("Link creation failed",
			zap.Error(err),
			zap.String("slug", req.Slug),
		)
		_ = c.Error(err)
		return
	}

	resp := dto.CreateLinkResponse{
		Slug:      link.Slug,
		TargetURL: link.TargetURL,
	}
	if link.ExpiresAt != nil {
		resp.ExpiresAt = link.ExpiresAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, response.OK(resp, "Link created"))
}

// DeleteLinkHandler 删除短链（DELETE /api/links/:id）
func (h *LinkHandler) DeleteLinkHandler(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id < 1 {
		_ = c.Error(apperrors.InvalidRequestError("error.invalid_id"))
		return
	}

	if err := h.creator.Delete(c.Request.Context(), uint(id)); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response.OK(struct{}{}, "Link deleted"))
}

// StatsHandler 访问统计（GET /api/links/:slug/stats）
func (h *LinkHandler) StatsHandler(c *gin.Context) {
	slug := c.Param("slug")

	stats, err := h.creator.Stats(c.Request.Context(), slug)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response.OK(stats, "success"))
}

// VerifyPasswordHandler 受保护链接的凭证验证（POST /api/links/:slug/verify）
func (h *LinkHandler) VerifyPasswordHandler(c *gin.Context) {
	slug := c.Param("slug")

	var req dto.VerifyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.InvalidRequestErrorDefault())
		return
	}

	res, err := h.resolver.VerifyPassword(c.Request.Context(), slug, req.Password, c.ClientIP())
	if err != nil {
		// 密码错误附带剩余尝试次数，调用方可自行纠正
		var failed *apperrors.VerificationFailedError
		if errors.As(err, &failed) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success":           false,
				"message":           i18n.Localize(c.Request.Context(), failed.Message),
				"remainingAttempts": failed.Remaining,
			})
			return
		}
		_ = c.Error(err)
		return
	}

	if res.Outcome == service.OutcomeNotFound {
		_ = c.Error(apperrors.NotFoundError())
		return
	}

	c.JSON(http.StatusOK, response.OK(gin.H{"targetUrl": res.TargetURL}, "success"))
}
