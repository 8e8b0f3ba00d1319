package epay

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrConfigInvalid    = errors.New("epay config invalid")
	ErrSignatureInvalid = errors.New("epay signature invalid")
)

const submitPath = "/submit.php"

// Config 易支付配置
type Config struct {
	GatewayURL  string `json:"gateway_url"`  // 网关地址
	MerchantID  string `json:"merchant_id"`  // 商户号
	MerchantKey string `json:"merchant_key"` // 商户密钥
	NotifyURL   string `json:"notify_url"`   // 异步通知地址
	ReturnURL   string `json:"return_url"`   // 同步跳转地址
	Device      string `json:"device"`       // 设备类型
}

// CreateInput 下单输入
type CreateInput struct {
	ReferenceNo string // 商户侧参考号（意向编号）
	Amount      string // 金额（元，两位小数）
	Subject     string // 商品名称
	ClientIP    string // 客户端IP
}

// ValidateConfig 校验配置完整性
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return ErrConfigInvalid
	}
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return fmt.Errorf("%w: gateway_url is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.MerchantID) == "" {
		return fmt.Errorf("%w: merchant_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.MerchantKey) == "" {
		return fmt.Errorf("%w: merchant_key is required", ErrConfigInvalid)
	}
	return nil
}

// BuildPayURL 构造带签名的收银台跳转链接（本地构造，不发起请求）
func BuildPayURL(cfg *Config, input CreateInput) (string, error) {
	if err := ValidateConfig(cfg); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.ReferenceNo) == "" || strings.TrimSpace(input.Amount) == "" {
		return "", fmt.Errorf("%w: reference_no and amount are required", ErrConfigInvalid)
	}

	params := map[string]string{
		"pid":          cfg.MerchantID,
		"out_trade_no": input.ReferenceNo,
		"notify_url":   cfg.NotifyURL,
		"return_url":   cfg.ReturnURL,
		"name":         input.Subject,
		"money":        input.Amount,
		"clientip":     input.ClientIP,
		"device":       cfg.Device,
	}
	sign := signMD5(buildSignContent(params) + cfg.MerchantKey)
	params["sign"] = sign
	params["sign_type"] = "MD5"

	values := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.GatewayURL), "/")
	return base + submitPath + "?" + values.Encode(), nil
}

// VerifyCallback 验证回调签名
func VerifyCallback(cfg *Config, form map[string][]string) error {
	if cfg == nil {
		return ErrConfigInvalid
	}
	sign := strings.TrimSpace(firstValue(form, "sign"))
	if sign == "" {
		return ErrSignatureInvalid
	}
	params := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}
	expected := signMD5(buildSignContent(params) + cfg.MerchantKey)
	if !strings.EqualFold(expected, sign) {
		return ErrSignatureInvalid
	}
	return nil
}

// IsTradeSuccess 判断回调交易状态是否成功
func IsTradeSuccess(form map[string][]string) bool {
	return strings.EqualFold(strings.TrimSpace(firstValue(form, "trade_status")), "TRADE_SUCCESS")
}

func buildSignContent(params map[string]string) string {
	var keys []string
	for k, v := range params {
		if v == "" {
			continue
		}
		if k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
	}
	return strings.Join(pairs, "&")
}

func signMD5(content string) string {
	sum := md5.Sum([]byte(content))
	return strings.ToLower(hex.EncodeToString(sum[:]))
}

func firstValue(form map[string][]string, key string) string {
	values, ok := form[key]
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}
