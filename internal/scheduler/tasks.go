package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCallPostProcess = "calls:post_process"

type CallPostProcessPayload struct {
	CallID   string `json:"callId"`
	TenantID string `json:"tenantId"`
}

func NewCallPostProcessTask(payload CallPostProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCallPostProcess, data), nil
}

func ParseCallPostProcessPayload(task *asynq.Task) (CallPostProcessPayload, error) {
	var payload CallPostProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CallPostProcessPayload{}, err
	}
	return payload, nil
}
