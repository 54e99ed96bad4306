package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskGeneratePrompt = "prompt:generate"
	QueuePrompts       = "prompts"

	MaxRetry = 3
)

type GeneratePromptPayload struct {
	UserID   string `json:"user_id"`
	ImageURL string `json:"image_url"`
	Variant  string `json:"variant"`
}

// NewGeneratePromptTask builds a task for the prompts queue.
func NewGeneratePromptTask(p GeneratePromptPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal prompt payload: %w", err)
	}
	return asynq.NewTask(TaskGeneratePrompt, payload,
		asynq.Queue(QueuePrompts),
		asynq.MaxRetry(MaxRetry),
		asynq.Timeout(2*time.Minute),
	), nil
}

// ParseGeneratePromptPayload decodes a task payload.
func ParseGeneratePromptPayload(t *asynq.Task) (GeneratePromptPayload, error) {
	var p GeneratePromptPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("bad %s payload: %w", t.Type(), err)
	}
	return p, nil
}
