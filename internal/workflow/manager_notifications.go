package workflow

import (
	"context"
	"errors"

	"studiocast/internal/jobsource"
	"studiocast/internal/logging"
	"studiocast/internal/notifications"
	"studiocast/internal/session"
	"studiocast/internal/upload"
)

type event struct {
	kind    notifications.Event
	payload notifications.Payload
}

func eventWorkersStarted(accounts []string) event {
	return event{kind: notifications.EventWorkersStarted, payload: notifications.Payload{"accounts": accounts}}
}

func (m *Manager) publishResult(ctx context.Context, account string, job jobsource.Job, result upload.Result) {
	switch result.State {
	case upload.StateDone:
		m.publish(ctx, event{kind: notifications.EventUploadCompleted, payload: notifications.Payload{
			"account": account,
			"title":   job.Title,
			"url":     result.URL,
		}})
	case upload.StateFailed:
		m.publish(ctx, event{kind: notifications.EventUploadFailed, payload: notifications.Payload{
			"account": account,
			"title":   job.Title,
			"row":     job.RowIndex,
			"kind":    string(result.Kind),
			"error":   result.Err,
		}})
	}
}

// onSessionStale is the upload machine hook for sessions past the
// staleness threshold.
func (m *Manager) onSessionStale(ctx context.Context, sess *session.Session) {
	if sess == nil {
		return
	}
	payload := notifications.Payload{"account": sess.Account}
	if !sess.LastUsed.IsZero() {
		payload["last_used"] = sess.LastUsed
	}
	m.publish(ctx, event{kind: notifications.EventSessionStale, payload: payload})
}

func (m *Manager) publish(ctx context.Context, ev event) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, ev.kind, ev.payload); err != nil {
		logger := logging.WithContext(ctx, m.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, notification not sent", logging.String("event", string(ev.kind)))
			return
		}
		logger.Warn("notification failed",
			logging.Error(err),
			logging.String("event", string(ev.kind)),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
		)
	}
}
