package public

import (
	"net/http"
	"net/url"

	"github.com/orchard-next/internal/constants"
	"github.com/orchard-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

// DepositCallback 定金网关异步回调。
// 网关协议要求固定应答文本，失败时返回 fail 触发网关重试。
func (h *Handler) DepositCallback(c *gin.Context) {
	log := shared.RequestLog(c)
	form, err := parseCallbackForm(c)
	if err != nil {
		log.Warnw("deposit_callback_form_parse_failed", "error", err)
		c.String(http.StatusOK, constants.EpayCallbackFail)
		return
	}
	log.Infow("deposit_callback_received",
		"client_ip", c.ClientIP(),
		"out_trade_no", form.Get("out_trade_no"),
		"trade_status", form.Get("trade_status"),
	)
	if _, err := h.DepositService.ConfirmDepositCallback(form); err != nil {
		log.Warnw("deposit_callback_rejected", "out_trade_no", form.Get("out_trade_no"), "error", err)
		c.String(http.StatusOK, constants.EpayCallbackFail)
		return
	}
	c.String(http.StatusOK, constants.EpayCallbackSuccess)
}

// RemainingCallback 尾款网关异步回调
func (h *Handler) RemainingCallback(c *gin.Context) {
	log := shared.RequestLog(c)
	form, err := parseCallbackForm(c)
	if err != nil {
		log.Warnw("remaining_callback_form_parse_failed", "error", err)
		c.String(http.StatusOK, constants.EpayCallbackFail)
		return
	}
	log.Infow("remaining_callback_received",
		"client_ip", c.ClientIP(),
		"out_trade_no", form.Get("out_trade_no"),
		"trade_status", form.Get("trade_status"),
	)
	if _, err := h.RemainingService.ConfirmRemainingCallback(form); err != nil {
		log.Warnw("remaining_callback_rejected", "out_trade_no", form.Get("out_trade_no"), "error", err)
		c.String(http.StatusOK, constants.EpayCallbackFail)
		return
	}
	c.String(http.StatusOK, constants.EpayCallbackSuccess)
}

// parseCallbackForm 同时兼容 GET 查询参数与 POST 表单
func parseCallbackForm(c *gin.Context) (url.Values, error) {
	if c.Request.Method == http.MethodGet {
		return c.Request.URL.Query(), nil
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	form := url.Values{}
	for key, values := range c.Request.Form {
		form[key] = values
	}
	return form, nil
}
