package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/digitalcloudassets/kutable-sub001/internal/metrics"
	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const smsPreviewLength = 100

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

var newMessageEmail = template.Must(template.New("new_message").Parse(`<!doctype html>
<html>
<body style="font-family: Arial, sans-serif; color: #111827;">
  <p>Hi {{ .ReceiverName }},</p>
  <p><strong>{{ .SenderName }}</strong> sent you a message about your booking.</p>
  <blockquote style="border-left: 3px solid #d1d5db; margin: 16px 0; padding-left: 12px; white-space: pre-wrap;">{{ .MessageText }}</blockquote>
  <p>
    Service: {{ .ServiceName }}<br>
    Date: {{ .AppointmentDate }}{{ if .AppointmentTime }} at {{ .AppointmentTime }}{{ end }}
  </p>
  <p><a href="{{ .DashboardURL }}">Reply from your dashboard</a></p>
</body>
</html>
`))

type newMessageEmailData struct {
	ReceiverName    string
	SenderName      string
	MessageText     string
	ServiceName     string
	AppointmentDate string
	AppointmentTime string
	DashboardURL    string
}

// Dispatcher sends SMS and email copies of a new message to its receiver.
// It is best-effort: nothing it does can fail a send.
type Dispatcher struct {
	bookings participantReader
	sms      SMSSender
	email    EmailSender
	appURL   string
	log      *zap.Logger
}

var _ MessageNotifier = (*Dispatcher)(nil)

// NewDispatcher builds a dispatcher. A nil sender disables that channel.
func NewDispatcher(
	bookings participantReader,
	sms SMSSender,
	email EmailSender,
	appURL string,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		bookings: bookings,
		sms:      sms,
		email:    email,
		appURL:   strings.TrimRight(appURL, "/"),
		log:      log,
	}
}

// NotifyNewMessage delivers on every consented channel and only logs failures.
// The notification queues call it for each job.
func (d *Dispatcher) NotifyNewMessage(
	ctx context.Context,
	bookingID uuid.UUID,
	receiverID uuid.UUID,
	messageText string,
	senderID uuid.UUID,
) {
	job := NotificationJob{
		BookingID:   bookingID,
		ReceiverID:  receiverID,
		SenderID:    senderID,
		MessageText: messageText,
	}
	if err := d.Deliver(ctx, job); err != nil {
		d.log.Warn("message notification incomplete",
			zap.String("booking_id", bookingID.String()),
			zap.String("receiver_id", receiverID.String()),
			zap.Error(err),
		)
	}
}

// Deliver runs both channels independently and reports what failed.
func (d *Dispatcher) Deliver(ctx context.Context, job NotificationJob) error {
	booking, err := d.bookings.GetParticipants(ctx, job.BookingID)
	if err != nil {
		return fmt.Errorf("load booking participants: %w", err)
	}

	receiverRole, ok := booking.Role(job.ReceiverID)
	if !ok {
		return fmt.Errorf("receiver %s is not on booking %s", job.ReceiverID, job.BookingID)
	}
	senderRole, ok := booking.Role(job.SenderID)
	if !ok {
		return fmt.Errorf("sender %s is not on booking %s", job.SenderID, job.BookingID)
	}

	receiver := contactFor(booking, receiverRole)
	senderName := contactFor(booking, senderRole).Name

	var smsErr, emailErr error
	var g errgroup.Group
	g.Go(func() error {
		smsErr = d.sendSMS(ctx, receiver, senderName, job)
		return nil
	})
	g.Go(func() error {
		emailErr = d.sendEmail(ctx, booking, receiver, senderName, job)
		return nil
	})
	_ = g.Wait()

	return errors.Join(smsErr, emailErr)
}

func (d *Dispatcher) sendSMS(ctx context.Context, receiver models.Contact, senderName string, job NotificationJob) error {
	if d.sms == nil || !receiver.SMSConsent || receiver.Phone == "" {
		metrics.Notifications.WithLabelValues("sms", "skipped").Inc()
		return nil
	}

	body := fmt.Sprintf("New message from %s: %s", senderName, Preview(job.MessageText, smsPreviewLength))
	if err := d.sms.SendSMS(ctx, receiver.Phone, body); err != nil {
		metrics.Notifications.WithLabelValues("sms", "failed").Inc()
		d.log.Warn("sms notification failed",
			zap.String("booking_id", job.BookingID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("sms: %w", err)
	}
	metrics.Notifications.WithLabelValues("sms", "sent").Inc()
	return nil
}

func (d *Dispatcher) sendEmail(
	ctx context.Context,
	booking *models.BookingParticipants,
	receiver models.Contact,
	senderName string,
	job NotificationJob,
) error {
	if d.email == nil || !receiver.EmailConsent || receiver.Email == "" {
		metrics.Notifications.WithLabelValues("email", "skipped").Inc()
		return nil
	}

	var html bytes.Buffer
	err := newMessageEmail.Execute(&html, newMessageEmailData{
		ReceiverName:    receiver.Name,
		SenderName:      senderName,
		MessageText:     job.MessageText,
		ServiceName:     booking.ServiceName,
		AppointmentDate: booking.AppointmentDate,
		AppointmentTime: booking.AppointmentTime,
		DashboardURL:    d.dashboardURL(job.BookingID),
	})
	if err != nil {
		metrics.Notifications.WithLabelValues("email", "failed").Inc()
		return fmt.Errorf("email template: %w", err)
	}

	subject := fmt.Sprintf("New message from %s", senderName)
	if err := d.email.SendEmail(ctx, receiver.Email, subject, html.String()); err != nil {
		metrics.Notifications.WithLabelValues("email", "failed").Inc()
		d.log.Warn("email notification failed",
			zap.String("booking_id", job.BookingID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("email: %w", err)
	}
	metrics.Notifications.WithLabelValues("email", "sent").Inc()
	return nil
}

func (d *Dispatcher) dashboardURL(bookingID uuid.UUID) string {
	query := url.Values{}
	query.Set("tab", "messages")
	query.Set("booking", bookingID.String())
	return d.appURL + "/dashboard?" + query.Encode()
}

func contactFor(booking *models.BookingParticipants, role models.ParticipantType) models.Contact {
	if role == models.ParticipantBarber {
		return booking.Barber.Contact()
	}
	return booking.Client.Contact()
}
