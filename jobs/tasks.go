package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lablink/lablink/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeInviteEmail is the task type for account invitation emails.
	TaskTypeInviteEmail = "mail:invite"
	// TaskTypeVerifyEmail is the task type for email verification messages.
	TaskTypeVerifyEmail = "mail:verify"
)

// InviteEmailPayload carries the details of an account invitation.
type InviteEmailPayload struct {
	To           string `json:"to"`
	Name         string `json:"name"`
	TempPassword string `json:"temp_password"`
}

// VerifyEmailPayload carries the details of a verification request.
type VerifyEmailPayload struct {
	To   string `json:"to"`
	Name string `json:"name"`
}

// NewInviteEmailTask constructs an Asynq task.
func NewInviteEmailTask(payload InviteEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeInviteEmail, data), nil
}

// NewVerifyEmailTask constructs an Asynq task.
func NewVerifyEmailTask(payload VerifyEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeVerifyEmail, data), nil
}

// Sender delivers rendered messages to a mailbox.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// HandleInviteEmailTask processes TaskTypeInviteEmail tasks.
func HandleInviteEmailTask(sender Sender, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeInviteEmail)
		var payload InviteEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		body := fmt.Sprintf(
			"Hello %s,\n\nAn account has been created for you.\nTemporary password: %s\n\nPlease sign in and change it.\n",
			payload.Name, payload.TempPassword,
		)
		if err := sender.Send(ctx, payload.To, "Your account is ready", body); err != nil {
			logger.Warn("invite email delivery failed", slog.String("to", payload.To), slog.Any("error", err))
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}

// HandleVerifyEmailTask processes TaskTypeVerifyEmail tasks.
func HandleVerifyEmailTask(sender Sender, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeVerifyEmail)
		var payload VerifyEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		body := fmt.Sprintf(
			"Hello %s,\n\nPlease confirm your email address to finish setting up your account.\n",
			payload.Name,
		)
		if err := sender.Send(ctx, payload.To, "Verify your email address", body); err != nil {
			logger.Warn("verification email delivery failed", slog.String("to", payload.To), slog.Any("error", err))
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
