package mqadapter

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
)

// awsSNS backs TSVCClient with AWS SNS (gosqs publisher.go's *sns.SNS usage).
type awsSNS struct {
	svc *sns.SNS
}

// NewAWSTSVCClient wraps svc as a TSVCClient.
func NewAWSTSVCClient(svc *sns.SNS) TSVCClient {
	return &awsSNS{svc: svc}
}

func (c *awsSNS) CreateTopic(ctx context.Context, name, kmsKeyID string) (string, error) {
	input := &sns.CreateTopicInput{Name: aws.String(name)}
	if kmsKeyID != "" {
		input.Attributes = map[string]*string{
			"KmsMasterKeyId": aws.String(kmsKeyID),
		}
	}

	out, err := c.svc.CreateTopicWithContext(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.TopicArn), nil
}

func (c *awsSNS) ListTopics(ctx context.Context) ([]TopicSummary, error) {
	var topics []TopicSummary
	var nextToken *string

	for {
		out, err := c.svc.ListTopicsWithContext(ctx, &sns.ListTopicsInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, t := range out.Topics {
			topics = append(topics, TopicSummary{ARN: aws.StringValue(t.TopicArn)})
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return topics, nil
}

func (c *awsSNS) Publish(ctx context.Context, topicARN, body string, headers Headers) error {
	_, err := c.svc.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn:          aws.String(topicARN),
		Message:           aws.String(body),
		MessageAttributes: headersToSNSAttrs(headers),
	})
	return err
}

func (c *awsSNS) Subscribe(ctx context.Context, topicARN, protocol, endpoint string, rawMessageDelivery bool) error {
	out, err := c.svc.SubscribeWithContext(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(topicARN),
		Protocol: aws.String(protocol),
		Endpoint: aws.String(endpoint),
	})
	if err != nil {
		return err
	}

	if rawMessageDelivery {
		_, err = c.svc.SetSubscriptionAttributesWithContext(ctx, &sns.SetSubscriptionAttributesInput{
			SubscriptionArn: out.SubscriptionArn,
			AttributeName:   aws.String("RawMessageDelivery"),
			AttributeValue:  aws.String("true"),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func headersToSNSAttrs(headers Headers) map[string]*sns.MessageAttributeValue {
	attrs := make(map[string]*sns.MessageAttributeValue, len(headers))
	for k, v := range headers {
		attrs[k] = &sns.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return attrs
}
