package public

import (
	"github.com/licensegate/internal/http/response"

	"github.com/gin-gonic/gin"
)

// VerifyLicenseRequest 授权码验证请求
type VerifyLicenseRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// VerifyLicense 客户端验证授权码
// 无论邮箱不存在还是授权码不匹配，都返回同一拒绝消息。
func (h *Handler) VerifyLicense(c *gin.Context) {
	var req VerifyLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	result, err := h.RiskService.Verify(req.Email, req.Code, c.ClientIP())
	if err != nil {
		respondError(c, response.CodeInternal, "验证失败，请稍后重试", err)
		return
	}

	response.Success(c, result)
}
