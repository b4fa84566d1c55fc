package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fincrime_engine/internal/domain"
)

type NotificationType string

const (
	NotificationLog   NotificationType = "log"
	NotificationEmail NotificationType = "email"
	NotificationSlack NotificationType = "slack"
)

type NotificationService struct {
	emailService EmailService
	slackService SlackService
	recipients   Recipients
	messageQueue chan NotificationMessage
	workers      int
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	logger       *slog.Logger
}

// Recipients addresses alert notifications. An empty address disables
// the channel.
type Recipients struct {
	Email        string
	SlackChannel string
}

type NotificationMessage struct {
	Type      NotificationType
	Recipient string
	Subject   string
	Message   string
	Severity  domain.AlertSeverity
	Metadata  map[string]string
	CreatedAt time.Time
}

type EmailService interface {
	SendEmail(to, subject, body string) error
}

type SlackService interface {
	SendMessage(channel, message string) error
}

func NewNotificationService(
	emailService EmailService,
	slackService SlackService,
	recipients Recipients,
	workers int,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}

	service := &NotificationService{
		emailService: emailService,
		slackService: slackService,
		recipients:   recipients,
		messageQueue: make(chan NotificationMessage, 1000),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	service.startWorkers()

	return service
}

// SendAlert queues alert on every configured channel. The log channel is
// always used.
func (s *NotificationService) SendAlert(ctx context.Context, alert domain.Alert) error {
	subject := fmt.Sprintf("[%s] %s", alert.Severity, alert.Type)
	message := fmt.Sprintf("%s\nValue: %g\nThreshold: %g\nRaised at: %s",
		alert.Message, alert.Value, alert.Threshold, alert.RaisedAt.UTC().Format(time.RFC3339))

	metadata := map[string]string{
		"alert_type": alert.Type,
		"severity":   string(alert.Severity),
	}
	for k, v := range alert.Details {
		metadata[k] = v
	}

	notifications := []NotificationMessage{{Type: NotificationLog}}
	if s.emailService != nil && s.recipients.Email != "" {
		notifications = append(notifications, NotificationMessage{Type: NotificationEmail, Recipient: s.recipients.Email})
	}
	if s.slackService != nil && s.recipients.SlackChannel != "" {
		notifications = append(notifications, NotificationMessage{Type: NotificationSlack, Recipient: s.recipients.SlackChannel})
	}

	for _, notification := range notifications {
		notification.Subject = subject
		notification.Message = message
		notification.Severity = alert.Severity
		notification.Metadata = metadata
		notification.CreatedAt = time.Now()

		select {
		case s.messageQueue <- notification:
			s.logger.DebugContext(ctx, "Alert notification queued",
				slog.String("type", string(notification.Type)),
				slog.String("alert_type", alert.Type))
		case <-s.shutdownChan:
			return fmt.Errorf("notification service is shut down")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (s *NotificationService) startWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *NotificationService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("Notification worker started", slog.Int("worker_id", id))

	for {
		select {
		case msg := <-s.messageQueue:
			s.processNotification(msg, id)
		case <-s.shutdownChan:
			s.drain(id)
			s.logger.Debug("Notification worker stopping", slog.Int("worker_id", id))
			return
		}
	}
}

// drain delivers what is already queued before a worker exits.
func (s *NotificationService) drain(workerID int) {
	for {
		select {
		case msg := <-s.messageQueue:
			s.processNotification(msg, workerID)
		default:
			return
		}
	}
}

func (s *NotificationService) processNotification(msg NotificationMessage, workerID int) {
	startTime := time.Now()
	var err error

	switch msg.Type {
	case NotificationLog:
		s.logger.Warn("ALERT: "+msg.Subject,
			slog.String("severity", string(msg.Severity)),
			slog.String("message", msg.Message),
			slog.Any("metadata", msg.Metadata))
	case NotificationEmail:
		err = s.emailService.SendEmail(msg.Recipient, msg.Subject, msg.Message)
	case NotificationSlack:
		err = s.slackService.SendMessage(msg.Recipient, msg.Subject+"\n"+msg.Message)
	default:
		err = fmt.Errorf("unknown notification type: %s", msg.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Failed to send notification",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	} else if msg.Type != NotificationLog {
		s.logger.Info("Notification sent successfully",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	}
}

func (s *NotificationService) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Notification service shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type MockEmailService struct {
	mu         sync.Mutex
	SentEmails []struct {
		To      string
		Subject string
		Body    string
	}
}

func (m *MockEmailService) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, struct {
		To      string
		Subject string
		Body    string
	}{to, subject, body})
	return nil
}

func (m *MockEmailService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentEmails)
}

type MockSlackService struct {
	mu       sync.Mutex
	Messages []struct {
		Channel string
		Message string
	}
}

func (m *MockSlackService) SendMessage(channel, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, struct {
		Channel string
		Message string
	}{channel, message})
	return nil
}

func (m *MockSlackService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}
