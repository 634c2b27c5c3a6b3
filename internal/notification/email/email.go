// Package email mirrors selected notifications to the user's email address.
package email

import (
	"context"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer sends an intent as an email.
type Mailer interface {
	Send(ctx context.Context, user *models.User, intent models.NotificationIntent) error
}

// SESService is the SES API surface used by SESMailer. Defined for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESMailer struct {
	client SESService
	from   string
}

func NewSESMailer(client SESService, from string) *SESMailer {
	return &SESMailer{client: client, from: from}
}

// Send is a no-op for users without an email address.
func (m *SESMailer) Send(ctx context.Context, user *models.User, intent models.NotificationIntent) error {
	if user.Email == "" {
		return nil
	}

	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{user.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(intent.Title), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(intent.Body), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(m.from),
	})
	if err != nil {
		return apperrors.NewEmailSendFailedError(user.UID, err)
	}
	return nil
}

// NoopMailer is used when email mirroring is disabled.
type NoopMailer struct{}

func (NoopMailer) Send(context.Context, *models.User, models.NotificationIntent) error { return nil }
