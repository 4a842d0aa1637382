package dto

import (
	"github.com/gin-gonic/gin"

	"linkgate-go/pkg/utils"
)

// PasswordSpec 创建链接时的密码配置
type PasswordSpec struct {
	Type  string `json:"type" binding:"omitempty,oneof=none six_digit custom"`
	Value string `json:"value"`
}

// CreateLinkRequest 用于创建短链的请求参数
type CreateLinkRequest struct {
	TargetURL string        `json:"targetUrl" binding:"required,url" msg:"targetUrl must be a valid URL"` // Gin 内置 URL 校验
	Slug      string        `json:"slug" binding:"omitempty,max=32"`                                      // 自定义 slug，可选
	OwnerID   string        `json:"ownerId" binding:"omitempty,max=64"`
	ExpiresIn string        `json:"expiresIn" binding:"omitempty"` // Go duration 格式，如 "24h"
	Password  *PasswordSpec `json:"password"`
	NoIndex   bool          `json:"noIndex"`
}

// VerifyPasswordRequest 密码验证请求
type VerifyPasswordRequest struct {
	Password string `json:"password" binding:"required,max=128" msg:"password is required and at most 128 characters"`
}

// CreateLinkResponse 创建成功后的返回
type CreateLinkResponse struct {
	Slug      string `json:"slug"`
	TargetURL string `json:"targetUrl"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// LinkStatsResponse 访问统计返回
type LinkStatsResponse struct {
	Slug        string `json:"slug"`
	VisitCount  int64  `json:"visitCount"`
	CachedCount int64  `json:"cachedCount"`
}

// Validate 自定义验证逻辑
func (r *CreateLinkRequest) Validate() error {
	// 1. 复用公共的 TargetURL 校验逻辑
	if err := utils.ValidateTargetURL(r.TargetURL); err != nil {
		return gin.Error{
			Err:  err,
			Type: gin.ErrorTypeBind,
		}
	}

	// 2. 自定义 slug 为可选项，仅在提供时校验
	if r.Slug != "" {
		if err := utils.ValidateSlug(r.Slug); err != nil {
			return gin.Error{
				Err:  err,
				Type: gin.ErrorTypeBind,
			}
		}
	}

	// 3. 密码格式校验在服务层结合类型执行
	return nil
}
