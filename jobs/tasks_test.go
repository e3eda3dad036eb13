package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	to      []string
	subject []string
	body    []string
	err     error
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.to = append(s.to, to)
	s.subject = append(s.subject, subject)
	s.body = append(s.body, body)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleInviteEmailTask(t *testing.T) {
	sender := &recordingSender{}
	handler := HandleInviteEmailTask(sender, discardLogger(), nil)

	task, err := NewInviteEmailTask(InviteEmailPayload{To: "jane@uni.edu", Name: "Jane", TempPassword: "Abc123!x"})
	require.NoError(t, err)
	require.Equal(t, TaskTypeInviteEmail, task.Type())

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, []string{"jane@uni.edu"}, sender.to)
	assert.Contains(t, sender.body[0], "Jane")
	assert.Contains(t, sender.body[0], "Abc123!x")
}

func TestHandleVerifyEmailTask(t *testing.T) {
	sender := &recordingSender{}
	handler := HandleVerifyEmailTask(sender, discardLogger(), nil)

	task, err := NewVerifyEmailTask(VerifyEmailPayload{To: "ann@uni.edu", Name: "Ann"})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	assert.Equal(t, []string{"ann@uni.edu"}, sender.to)
	assert.Contains(t, sender.subject[0], "Verify")
}

func TestHandleInviteEmailTaskBadPayload(t *testing.T) {
	handler := HandleInviteEmailTask(&recordingSender{}, discardLogger(), nil)
	err := handler(context.Background(), asynq.NewTask(TaskTypeInviteEmail, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleInviteEmailTaskDeliveryFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay down")}
	handler := HandleInviteEmailTask(sender, discardLogger(), nil)

	task, err := NewInviteEmailTask(InviteEmailPayload{To: "jane@uni.edu", Name: "Jane", TempPassword: "x"})
	require.NoError(t, err)
	// Delivery errors propagate so the queue retries.
	assert.Error(t, handler(context.Background(), task))
	assert.NotErrorIs(t, handler(context.Background(), task), asynq.SkipRetry)
}
