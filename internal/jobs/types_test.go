package jobs

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestGeneratePromptTask(t *testing.T) {
	in := GeneratePromptPayload{UserID: "u-1", ImageURL: "https://example.com/cat.png", Variant: "flux"}
	task, err := NewGeneratePromptTask(in)
	require.NoError(t, err)
	require.Equal(t, TaskGeneratePrompt, task.Type())
	require.JSONEq(t, `{"user_id":"u-1","image_url":"https://example.com/cat.png","variant":"flux"}`, string(task.Payload()))

	out, err := ParseGeneratePromptPayload(task)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestParseGeneratePromptPayloadBad(t *testing.T) {
	_, err := ParseGeneratePromptPayload(asynq.NewTask(TaskGeneratePrompt, []byte("{")))
	require.Error(t, err)
}
