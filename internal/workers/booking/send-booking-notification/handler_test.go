// internal/workers/booking/send-booking-notification/handler_test.go
package sendbookingnotification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
	"travel-concierge/internal/notify"
)

type MockSESService struct {
	err  error
	sent []*ses.SendEmailInput
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.sent = append(m.sent, params)
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{}, nil
}

type MockSNSService struct {
	err       error
	published []*sns.PublishInput
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.published = append(m.published, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{}, nil
}

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func createTestInput() *Input {
	return &Input{
		OrderID: "order-9",
		Notification: models.BookingNotification{
			CustomerName: "Ada Lovelace",
			Email:        "ada@example.com",
			Phone:        "+447700900123",
			PlanName:     "Express",
			Destination:  "Japan",
			Departure:    "2026-05-02",
			TotalAmount:  "997.00",
			Currency:     "usd",
		},
	}
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name           string
		cfg            notify.Config
		sesErr         error
		snsErr         error
		input          *Input
		expectedError  bool
		validateOutput func(t *testing.T, output *Output, sesMock *MockSESService, snsMock *MockSNSService)
		validateError  func(t *testing.T, stdErr *apperrors.StandardError)
	}{
		{
			name:  "email and sms sent",
			cfg:   notify.Config{EmailEnabled: true, SMSEnabled: true, FromEmail: "noreply@example.com"},
			input: createTestInput(),
			validateOutput: func(t *testing.T, output *Output, sesMock *MockSESService, snsMock *MockSNSService) {
				assert.Equal(t, notify.StatusSent, output.NotificationStatus)
				assert.True(t, output.EmailSent)
				assert.True(t, output.SMSSent)
				require.Len(t, sesMock.sent, 1)
				assert.Equal(t, []string{"ada@example.com"}, sesMock.sent[0].Destination.ToAddresses)
				assert.Contains(t, *sesMock.sent[0].Message.Body.Text.Data, "order-9")
				require.Len(t, snsMock.published, 1)
			},
		},
		{
			name:  "channels disabled",
			cfg:   notify.Config{},
			input: createTestInput(),
			validateOutput: func(t *testing.T, output *Output, sesMock *MockSESService, snsMock *MockSNSService) {
				assert.Equal(t, notify.StatusDisabled, output.NotificationStatus)
				assert.Empty(t, sesMock.sent)
				assert.Empty(t, snsMock.published)
			},
		},
		{
			name:          "email failure",
			cfg:           notify.Config{EmailEnabled: true},
			sesErr:        errors.New("throttling"),
			input:         createTestInput(),
			expectedError: true,
			validateError: func(t *testing.T, stdErr *apperrors.StandardError) {
				assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, stdErr.Code)
				assert.True(t, stdErr.Retryable)
				assert.True(t, strings.HasPrefix(stdErr.Details, "channel: email"))
			},
		},
		{
			name:          "sms failure after email",
			cfg:           notify.Config{EmailEnabled: true, SMSEnabled: true},
			snsErr:        errors.New("opted out"),
			input:         createTestInput(),
			expectedError: true,
			validateError: func(t *testing.T, stdErr *apperrors.StandardError) {
				assert.True(t, strings.HasPrefix(stdErr.Details, "channel: sms"))
			},
		},
		{
			name:          "missing order id",
			cfg:           notify.Config{EmailEnabled: true},
			input:         &Input{Notification: models.BookingNotification{Email: "ada@example.com"}},
			expectedError: true,
			validateError: func(t *testing.T, stdErr *apperrors.StandardError) {
				assert.Equal(t, apperrors.ErrCodeInvalidPayload, stdErr.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sesMock := &MockSESService{err: tt.sesErr}
			snsMock := &MockSNSService{err: tt.snsErr}
			log := &testLogger{t: t}
			handler := NewHandler(&Config{}, notify.NewNotifier(tt.cfg, sesMock, snsMock, log), log)

			output, err := handler.Execute(context.Background(), tt.input)

			if tt.expectedError {
				require.Error(t, err)
				var stdErr *apperrors.StandardError
				require.True(t, errors.As(err, &stdErr))
				tt.validateError(t, stdErr)
				return
			}
			require.NoError(t, err)
			tt.validateOutput(t, output, sesMock, snsMock)
		})
	}
}
