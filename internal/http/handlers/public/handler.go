package public

import "github.com/licensegate/internal/provider"

// Handler 公开接口处理器入口
// 说明：该处理器仅用于无需登录的客户端验证 API。
type Handler struct {
	*provider.Container
}

// New 创建公开处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
