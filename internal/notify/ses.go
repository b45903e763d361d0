package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/stackpilot/stackpilot/internal/pipeline"
	"github.com/stackpilot/stackpilot/pkg/logging"
)

const sendTimeout = 30 * time.Second

// SESAPI is the slice of the SESv2 client the notifier uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier mails the rendered report through Amazon SES.
type SESNotifier struct {
	client     SESAPI
	sender     string
	recipients []string
	logger     *logging.Logger
}

// NewSESNotifier builds a notifier against the real SESv2 service.
func NewSESNotifier(ctx context.Context, region, sender string, recipients []string) (*SESNotifier, error) {
	if sender == "" {
		return nil, fmt.Errorf("notification sender address is required")
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("at least one notification recipient is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for SES: %w", err)
	}

	return &SESNotifier{
		client:     sesv2.NewFromConfig(cfg),
		sender:     sender,
		recipients: recipients,
		logger:     logging.New("notify"),
	}, nil
}

// Send renders the report and mails it to every configured recipient.
func (n *SESNotifier) Send(ctx context.Context, report *pipeline.Report) error {
	body, err := RenderHTML(report)
	if err != nil {
		return err
	}
	subject := Subject(report)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	out, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.sender),
		Destination: &types.Destination{
			ToAddresses: n.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}

	n.logger.Info("report email sent",
		"message_id", aws.ToString(out.MessageId),
		"recipients", len(n.recipients))
	return nil
}
