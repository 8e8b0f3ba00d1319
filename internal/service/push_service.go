package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/orchard-next/internal/config"
)

// PushService 站外推送服务（webhook 形式）
type PushService struct {
	cfg    *config.PushConfig
	client *http.Client
}

// NewPushService 创建推送服务
func NewPushService(cfg *config.PushConfig) *PushService {
	timeout := 3 * time.Second
	if cfg != nil && cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	return &PushService{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Enabled 判断推送是否启用
func (s *PushService) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Enabled && strings.TrimSpace(s.cfg.WebhookURL) != ""
}

// PushMessage 推送消息结构
type PushMessage struct {
	Event      string `json:"event"`
	PreOrderNo string `json:"pre_order_no"`
	UserID     uint   `json:"user_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

// Send 发送推送消息
func (s *PushService) Send(ctx context.Context, msg PushMessage) error {
	if !s.Enabled() {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(s.cfg.WebhookURL), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(s.cfg.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push webhook returned status %d", resp.StatusCode)
	}
	return nil
}
