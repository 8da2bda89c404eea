package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeProfilePrint = "profile:print"
)

// ProfilePrintPayload 描述生成简历 PDF 所需的最小信息。
type ProfilePrintPayload struct {
	ProfileID     uint   `json:"profile_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewProfilePrintTask 构造一个简历档案打印任务。
func NewProfilePrintTask(profileID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ProfilePrintPayload{
		ProfileID:     profileID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProfilePrint, payload), nil
}
