package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincrime_engine/internal/domain"
)

func TestNotificationService_SendAlert(t *testing.T) {
	email := &MockEmailService{}
	slack := &MockSlackService{}
	s := NewNotificationService(email, slack, Recipients{
		Email:        "aml@example.com",
		SlackChannel: "#aml-alerts",
	}, 2, nil)

	err := s.SendAlert(context.Background(), domain.Alert{
		Type:      "circular_patterns",
		Severity:  domain.SeverityHigh,
		Message:   "Circular transfer patterns detected",
		Value:     4,
		Threshold: 3,
		RaisedAt:  time.Now(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	assert.Equal(t, 1, email.Count())
	assert.Equal(t, 1, slack.Count())
	assert.Equal(t, "aml@example.com", email.SentEmails[0].To)
	assert.Contains(t, email.SentEmails[0].Subject, "circular_patterns")
	assert.Equal(t, "#aml-alerts", slack.Messages[0].Channel)
}

func TestNotificationService_LogOnly(t *testing.T) {
	email := &MockEmailService{}
	s := NewNotificationService(email, nil, Recipients{}, 1, nil)

	require.NoError(t, s.SendAlert(context.Background(), domain.Alert{Type: "large_transfers", Severity: domain.SeverityMedium}))
	require.NoError(t, s.Shutdown(context.Background()))

	assert.Equal(t, 0, email.Count())
}

func TestNotificationService_SendAfterShutdown(t *testing.T) {
	s := NewNotificationService(nil, nil, Recipients{}, 1, nil)
	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))

	// The queue is buffered, so a send may still be accepted; it must not block.
	done := make(chan struct{})
	go func() {
		_ = s.SendAlert(context.Background(), domain.Alert{Type: "x"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendAlert blocked after shutdown")
	}
}
