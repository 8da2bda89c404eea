package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PrintNotifyMessage 是打印进度的统一消息协议，经 Redis Pub/Sub 转发给 WebSocket 客户端。
// 字段名与前端解析保持一致。
type PrintNotifyMessage struct {
	Status        string `json:"status"` // processing | done | error
	ProfileID     uint   `json:"profile_id"`
	ProfileName   string `json:"profile_name"`
	CorrelationID string `json:"correlation_id"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// PrintChannel 返回某档案打印事件的 Pub/Sub 频道名。
func PrintChannel(profileID uint) string {
	return fmt.Sprintf("mefolio:print:%d", profileID)
}

// PublishPrintNotify 把打印进度消息发布到对应频道。
func PublishPrintNotify(ctx context.Context, client *redis.Client, msg PrintNotifyMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal print notify: %w", err)
	}
	if err := client.Publish(ctx, PrintChannel(msg.ProfileID), payload).Err(); err != nil {
		return fmt.Errorf("publish print notify: %w", err)
	}
	return nil
}
