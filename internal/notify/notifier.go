// Package notify tells customers and the back office about stored orders.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
)

var ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")

const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"
	StatusFailed   = "failed"
)

// SESService and SNSService are the slices of the AWS clients the notifier uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	OpsEmail     string
}

type Result struct {
	Status        string `json:"status"`
	EmailSent     bool   `json:"emailSent"`
	SMSSent       bool   `json:"smsSent"`
	FailedChannel string `json:"failedChannel,omitempty"`
}

type Notifier struct {
	cfg       Config
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

func NewNotifier(cfg Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		cfg:       cfg,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

func (n *Notifier) Name() string {
	return "notification"
}

func (n *Notifier) Apply(ctx context.Context, order *models.Order) error {
	res, err := n.Send(ctx, models.NewBookingNotification(order))
	if err != nil {
		return err
	}
	n.logger.Debug("booking notification handled", map[string]interface{}{
		"orderId": order.ID,
		"status":  res.Status,
	})
	return nil
}

// Send emails the customer (copying the ops mailbox when configured) and texts
// them when SMS is on and a phone number is known.
func (n *Notifier) Send(ctx context.Context, note models.BookingNotification) (*Result, error) {
	data := templateData(note)
	res := &Result{Status: StatusDisabled}

	if n.cfg.EmailEnabled && n.sesClient != nil && note.Email != "" {
		tmpl := templates[TemplateBookingConfirmed]
		subject := renderTemplate(tmpl.Subject, data)
		body := renderTemplate(tmpl.Body, data)
		if err := n.sendEmail(ctx, []string{note.Email}, subject, body); err != nil {
			res.Status = StatusFailed
			res.FailedChannel = "email"
			return res, fmt.Errorf("%w: email: %v", ErrNotificationSendFailed, err)
		}
		res.EmailSent = true

		if n.cfg.OpsEmail != "" {
			ops := templates[TemplateOpsNewOrder]
			if err := n.sendEmail(ctx, []string{n.cfg.OpsEmail}, renderTemplate(ops.Subject, data), renderTemplate(ops.Body, data)); err != nil {
				n.logger.Warn("ops copy failed", map[string]interface{}{"orderId": note.OrderID, "error": err.Error()})
			}
		}
	}

	if n.cfg.SMSEnabled && n.snsClient != nil && note.Phone != "" {
		msg := renderTemplate(templates[TemplateBookingConfirmed].SMS, data)
		if _, err := n.snsClient.Publish(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(note.Phone),
			Message:     aws.String(msg),
		}); err != nil {
			res.Status = StatusFailed
			res.FailedChannel = "sms"
			return res, fmt.Errorf("%w: sms: %v", ErrNotificationSendFailed, err)
		}
		res.SMSSent = true
	}

	if res.EmailSent || res.SMSSent {
		res.Status = StatusSent
	}
	return res, nil
}

func (n *Notifier) sendEmail(ctx context.Context, to []string, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: to},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.FromEmail),
	})
	return err
}

func templateData(note models.BookingNotification) map[string]interface{} {
	return map[string]interface{}{
		"orderId":      note.OrderID,
		"customerName": note.CustomerName,
		"planName":     note.PlanName,
		"destination":  note.Destination,
		"departure":    note.Departure,
		"totalAmount":  note.TotalAmount,
		"currency":     strings.ToUpper(note.Currency),
	}
}
