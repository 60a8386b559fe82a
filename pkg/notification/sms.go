package notification

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SMSSender delivers a short text message to an E.164 phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// SNSSMSSender sends SMS through Amazon SNS.
type SNSSMSSender struct {
	client *sns.Client
}

func NewSNSSMSSender(ctx context.Context, region string) (*SNSSMSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSSMSSender{client: sns.NewFromConfig(cfg)}, nil
}

func (s *SNSSMSSender) SendSMS(ctx context.Context, phone, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
