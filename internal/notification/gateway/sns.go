// internal/notification/gateway/sns.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notification-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrency = 16

// SNSService is the SNS API surface used by SNSSender. Defined for mocking.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender delivers pushes through SNS mobile platform endpoints. Endpoint
// tokens are platform endpoint ARNs; topics resolve to topic ARNs under a
// fixed prefix.
type SNSSender struct {
	client         SNSService
	hints          PlatformHints
	topicARNPrefix string
	topicPrefix    string
	maxConcurrency int
}

// SNSSenderOptions configures topic resolution and multicast fan-out.
type SNSSenderOptions struct {
	TopicARNPrefix string
	TopicPrefix    string
	MaxConcurrency int
	Hints          PlatformHints
}

func NewSNSSender(client SNSService, opts SNSSenderOptions) *SNSSender {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	return &SNSSender{
		client:         client,
		hints:          opts.Hints,
		topicARNPrefix: opts.TopicARNPrefix,
		topicPrefix:    opts.TopicPrefix,
		maxConcurrency: opts.MaxConcurrency,
	}
}

// SendMulticast publishes the intent to every endpoint. SNS has no batch
// publish for platform endpoints, so one Publish is issued per endpoint with
// bounded concurrency and results are collected per endpoint.
func (s *SNSSender) SendMulticast(ctx context.Context, endpoints []string, intent models.NotificationIntent) ([]EndpointResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	message, err := buildMessage(intent, s.hints)
	if err != nil {
		return nil, fmt.Errorf("build push message: %w", err)
	}

	results := make([]EndpointResult, len(endpoints))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i, endpoint := range endpoints {
		g.Go(func() error {
			_, err := s.client.Publish(ctx, &sns.PublishInput{
				TargetArn:        aws.String(endpoint),
				Message:          aws.String(message),
				MessageStructure: aws.String("json"),
			})
			results[i] = EndpointResult{Endpoint: endpoint, Success: err == nil}
			if err != nil {
				results[i].ErrorClass = Classify(err)
				results[i].Err = err
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// SendToTopic publishes the intent once to the topic's ARN.
func (s *SNSSender) SendToTopic(ctx context.Context, topic string, intent models.NotificationIntent) error {
	message, err := buildMessage(intent, s.hints)
	if err != nil {
		return fmt.Errorf("build push message: %w", err)
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:         aws.String(s.TopicARN(topic)),
		Message:          aws.String(message),
		MessageStructure: aws.String("json"),
	})
	return err
}

// TopicARN maps a logical topic name to its SNS topic ARN.
func (s *SNSSender) TopicARN(topic string) string {
	return s.topicARNPrefix + s.topicPrefix + topic
}

// Classify maps an SNS publish error to an ErrorClass. Disabled or deleted
// endpoints, and a rejected TargetArn, are permanent.
func Classify(err error) ErrorClass {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return ErrorClassOther
	}
	switch apiErr.ErrorCode() {
	case "EndpointDisabled", "NotFound":
		return ErrorClassInvalidEndpoint
	case "InvalidParameter":
		if strings.Contains(apiErr.ErrorMessage(), "TargetArn") {
			return ErrorClassInvalidEndpoint
		}
	}
	return ErrorClassOther
}
