package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/config"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
)

// SNSAPI is the subset of the SNS client used for publishing
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type snsNotificationPublisher struct {
	client   SNSAPI
	topicARN string
}

// NewSNSNotificationPublisher loads the default AWS credential chain and
// publishes to cfg.TopicARN. cfg.Endpoint overrides the service endpoint for
// local emulators.
func NewSNSNotificationPublisher(ctx context.Context, cfg config.SNSConfig) (NotificationPublisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewSNSNotificationPublisherWithClient(client, cfg.TopicARN), nil
}

// NewSNSNotificationPublisherWithClient wraps an existing client
func NewSNSNotificationPublisherWithClient(client SNSAPI, topicARN string) NotificationPublisher {
	return &snsNotificationPublisher{client: client, topicARN: topicARN}
}

func (p *snsNotificationPublisher) Publish(ctx context.Context, notification *model.Notification) error {
	if notification == nil {
		return fmt.Errorf("notification is nil")
	}
	if p.topicARN == "" {
		return fmt.Errorf("empty topic arn")
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"notification_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(notification.Type)),
			},
			"user_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(notification.UserID.String()),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", p.topicARN, err)
	}
	return nil
}

func (p *snsNotificationPublisher) Close() error {
	return nil
}
