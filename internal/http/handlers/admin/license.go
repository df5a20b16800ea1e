package admin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/licensegate/internal/cache"
	"github.com/licensegate/internal/http/handlers/shared"
	"github.com/licensegate/internal/http/response"
	"github.com/licensegate/internal/logger"
	"github.com/licensegate/internal/models"
	"github.com/licensegate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// licenseDetailCacheTTL 管理端授权码详情缓存时长
const licenseDetailCacheTTL = time.Minute

func licenseDetailCacheKey(id uint) string {
	return fmt.Sprintf("admin:license:%d", id)
}

// CreateLicenseRequest 签发授权码请求
type CreateLicenseRequest struct {
	Email          string     `json:"email" binding:"required"`
	PurchaseAmount float64    `json:"purchase_amount"`
	Remark         string     `json:"remark"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// CreateLicense 签发授权码
func (h *Handler) CreateLicense(c *gin.Context) {
	var req CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	license, messageID, err := h.LicenseService.Issue(service.IssueLicenseInput{
		Email:          req.Email,
		PurchaseAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(req.PurchaseAmount)),
		Remark:         req.Remark,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		respondLicenseIssueError(c, err)
		return
	}

	response.Success(c, gin.H{
		"license":    license,
		"message_id": messageID,
	})
}

// CreateLicenseBatchRequest 批量签发请求
type CreateLicenseBatchRequest struct {
	Email          string     `json:"email" binding:"required"`
	Count          int        `json:"count" binding:"required"`
	PurchaseAmount float64    `json:"purchase_amount"`
	Remark         string     `json:"remark"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// CreateLicenseBatch 批量签发授权码
func (h *Handler) CreateLicenseBatch(c *gin.Context) {
	var req CreateLicenseBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	licenses, messageID, err := h.LicenseService.IssueBatch(service.IssueLicenseBatchInput{
		Email:          req.Email,
		Count:          req.Count,
		PurchaseAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(req.PurchaseAmount)),
		Remark:         req.Remark,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		respondLicenseIssueError(c, err)
		return
	}

	response.Success(c, gin.H{
		"licenses":   licenses,
		"count":      len(licenses),
		"message_id": messageID,
	})
}

func respondLicenseIssueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		respondError(c, response.CodeBadRequest, "邮箱地址无效", nil)
	case errors.Is(err, service.ErrLicenseInvalid):
		respondError(c, response.CodeBadRequest, "签发参数无效", nil)
	case errors.Is(err, service.ErrCodeAllocateExhausted):
		respondError(c, response.CodeInternal, "授权码生成失败，请稍后重试", err)
	case errors.Is(err, service.ErrLicenseNotifyFailed):
		respondError(c, response.CodeInternal, "下发邮件发送失败，签发已撤销", err)
	default:
		respondError(c, response.CodeInternal, "授权码签发失败", err)
	}
}

// GetLicenses 获取授权码列表（授权码已脱敏）
func (h *Handler) GetLicenses(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	input := service.LicenseListInput{
		Email:    c.Query("email"),
		Page:     page,
		PageSize: pageSize,
	}
	if locked, ok := parseBoolQuery(c, "locked"); ok {
		input.Locked = locked
	}
	if expired, ok := parseBoolQuery(c, "is_expired"); ok {
		input.IsExpired = expired
	}
	if used, ok := parseBoolQuery(c, "is_used"); ok {
		input.IsUsed = used
	}
	if from, ok := parseTimeQuery(c, "created_from"); ok {
		input.CreatedFrom = from
	}
	if to, ok := parseTimeQuery(c, "created_to"); ok {
		input.CreatedTo = to
	}

	licenses, total, err := h.LicenseService.List(input)
	if err != nil {
		respondError(c, response.CodeInternal, "授权码列表查询失败", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, licenses, pagination)
}

// GetLicense 获取授权码详情与风险画像
// 详情短缓存，锁定与删除时主动失效。
func (h *Handler) GetLicense(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	cacheKey := licenseDetailCacheKey(id)
	var cached service.InspectResult
	if hit, err := cache.GetJSON(c.Request.Context(), cacheKey, &cached); err == nil && hit {
		response.Success(c, &cached)
		return
	}

	result, err := h.LicenseService.AdminInspect(id)
	if err != nil {
		if errors.Is(err, service.ErrLicenseNotFound) {
			respondError(c, response.CodeNotFound, "授权码不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "授权码查询失败", err)
		return
	}

	if err := cache.SetJSON(c.Request.Context(), cacheKey, result, licenseDetailCacheTTL); err != nil {
		logger.Warnw("license_detail_cache_set_failed", "license_id", id, "error", err)
	}
	response.Success(c, result)
}

// InspectLicenseRequest 凭证查验请求
type InspectLicenseRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// InspectLicense 按邮箱与授权码查验（管理端完整视图）
func (h *Handler) InspectLicense(c *gin.Context) {
	var req InspectLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	result, err := h.LicenseService.AdminInspectByCredential(req.Email, req.Code)
	if err != nil {
		if errors.Is(err, service.ErrLicenseNotFound) {
			respondError(c, response.CodeNotFound, "授权码不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "授权码查验失败", err)
		return
	}

	response.Success(c, result)
}

// UpdateLicenseLockRequest 锁定状态变更请求
type UpdateLicenseLockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// UpdateLicenseLock 手动锁定或解锁授权码
func (h *Handler) UpdateLicenseLock(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	adminID, ok := shared.GetContextUint(c, "admin_id")
	if !ok {
		return
	}

	var req UpdateLicenseLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	license, err := h.LicenseService.ToggleLock(id, *req.Locked)
	if err != nil {
		if errors.Is(err, service.ErrLicenseNotFound) {
			respondError(c, response.CodeNotFound, "授权码不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "授权码状态更新失败", err)
		return
	}

	if err := cache.Del(c.Request.Context(), licenseDetailCacheKey(id)); err != nil {
		logger.Warnw("license_detail_cache_del_failed", "license_id", id, "error", err)
	}
	logger.Infow("license_lock_updated",
		"license_id", id,
		"locked", *req.Locked,
		"admin_id", adminID,
	)
	response.Success(c, license)
}

// DeleteLicense 删除授权码及其访问日志
func (h *Handler) DeleteLicense(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	adminID, ok := shared.GetContextUint(c, "admin_id")
	if !ok {
		return
	}

	if err := h.LicenseService.Delete(id); err != nil {
		if errors.Is(err, service.ErrLicenseNotFound) {
			respondError(c, response.CodeNotFound, "授权码不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "授权码删除失败", err)
		return
	}

	if err := cache.Del(c.Request.Context(), licenseDetailCacheKey(id)); err != nil {
		logger.Warnw("license_detail_cache_del_failed", "license_id", id, "error", err)
	}
	logger.Infow("license_deleted", "license_id", id, "admin_id", adminID)
	response.Success(c, nil)
}

// GetLicenseAccessLogs 获取授权码访问日志
func (h *Handler) GetLicenseAccessLogs(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	logs, total, err := h.LicenseService.AccessLogs(id, page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrLicenseNotFound) {
			respondError(c, response.CodeNotFound, "授权码不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "访问日志查询失败", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, logs, pagination)
}

// RunExpirySweep 手动触发过期巡检
func (h *Handler) RunExpirySweep(c *gin.Context) {
	affected, err := h.LifecycleService.MarkExpiredBatch()
	if err != nil {
		respondError(c, response.CodeInternal, "过期巡检执行失败", err)
		return
	}

	response.Success(c, gin.H{"expired": affected})
}

// GetExpiringLicenses 预览提醒窗口内即将到期的授权码
// days_ahead 缺省时使用配置的提醒提前天数。
func (h *Handler) GetExpiringLicenses(c *gin.Context) {
	daysAhead, _ := strconv.Atoi(c.DefaultQuery("days_ahead", "0"))
	if daysAhead <= 0 {
		daysAhead = h.Config.Sweeper.ReminderDaysAhead
	}

	licenses, err := h.LifecycleService.ListExpiringSoon(daysAhead)
	if err != nil {
		if errors.Is(err, service.ErrLicenseInvalid) {
			respondError(c, response.CodeBadRequest, "提醒窗口无效", nil)
			return
		}
		respondError(c, response.CodeInternal, "到期预览查询失败", err)
		return
	}

	response.Success(c, gin.H{
		"licenses":   licenses,
		"count":      len(licenses),
		"days_ahead": daysAhead,
	})
}

// SendExpirationRemindersRequest 到期提醒请求
type SendExpirationRemindersRequest struct {
	DaysAhead int `json:"days_ahead"`
}

// SendExpirationReminders 手动触发到期提醒
func (h *Handler) SendExpirationReminders(c *gin.Context) {
	// 请求体可为空，此时使用配置的默认提前天数
	var req SendExpirationRemindersRequest
	_ = c.ShouldBindJSON(&req)
	daysAhead := req.DaysAhead
	if daysAhead <= 0 {
		daysAhead = h.Config.Sweeper.ReminderDaysAhead
	}

	summary, err := h.LifecycleService.SendExpirationReminders(daysAhead)
	if err != nil {
		respondError(c, response.CodeInternal, "到期提醒发送失败", err)
		return
	}

	response.Success(c, summary)
}

func parseIDParam(c *gin.Context) (uint, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "授权码 ID 无效", nil)
		return 0, false
	}
	return uint(id), true
}

func parseBoolQuery(c *gin.Context, key string) (*bool, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &value, true
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, false
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &value, true
}
