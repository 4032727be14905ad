package mqadapter

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/sqs"
)

// awsQSVC backs QSVCClient with AWS SQS, in the teacher's style of wrapping
// a bare *sqs.SQS client (gosqs consumer.go/publisher.go).
type awsQSVC struct {
	svc *sqs.SQS
}

// NewAWSQSVCClient wraps svc as a QSVCClient.
func NewAWSQSVCClient(svc *sqs.SQS) QSVCClient {
	return &awsQSVC{svc: svc}
}

func (c *awsQSVC) CreateQueue(ctx context.Context, name, kmsKeyID string) (string, error) {
	input := &sqs.CreateQueueInput{QueueName: aws.String(name)}
	if kmsKeyID != "" {
		input.Attributes = map[string]*string{
			"KmsMasterKeyId": aws.String(kmsKeyID),
		}
	}

	out, err := c.svc.CreateQueueWithContext(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.QueueUrl), nil
}

func (c *awsQSVC) GetQueueURL(ctx context.Context, name, ownerAccountID string) (string, error) {
	input := &sqs.GetQueueUrlInput{QueueName: aws.String(name)}
	if ownerAccountID != "" {
		input.QueueOwnerAWSAccountId = aws.String(ownerAccountID)
	}

	out, err := c.svc.GetQueueUrlWithContext(ctx, input)
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == sqs.ErrCodeQueueDoesNotExist {
			return "", ErrQueueNotFound
		}
		return "", err
	}
	return aws.StringValue(out.QueueUrl), nil
}

func (c *awsQSVC) DeleteQueue(ctx context.Context, url string) error {
	_, err := c.svc.DeleteQueueWithContext(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(url)})
	return err
}

func (c *awsQSVC) ReceiveMessage(ctx context.Context, url string, waitTime time.Duration) ([]QueueMessage, error) {
	out, err := c.svc.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(url),
		MaxNumberOfMessages:   aws.Int64(1),
		WaitTimeSeconds:       aws.Int64(int64(waitTime / time.Second)),
		MessageAttributeNames: []*string{aws.String("All")},
	})
	if err != nil {
		return nil, err
	}

	msgs := make([]QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, QueueMessage{
			Body:          aws.StringValue(m.Body),
			Headers:       attrsToHeaders(m.MessageAttributes),
			ReceiptHandle: aws.StringValue(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

func (c *awsQSVC) SendMessage(ctx context.Context, url string, body string, headers Headers) error {
	_, err := c.svc.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(url),
		MessageBody:       aws.String(body),
		MessageAttributes: headersToSQSAttrs(headers),
	})
	return err
}

func (c *awsQSVC) DeleteMessage(ctx context.Context, url, receiptHandle string) error {
	_, err := c.svc.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return err
}

func (c *awsQSVC) ChangeMessageVisibility(ctx context.Context, url, receiptHandle string, timeout time.Duration) error {
	_, err := c.svc.ChangeMessageVisibilityWithContext(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(url),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: aws.Int64(int64(timeout / time.Second)),
	})
	return err
}

func (c *awsQSVC) GetQueueArn(ctx context.Context, url string) (string, error) {
	out, err := c.svc.GetQueueAttributesWithContext(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []*string{aws.String("QueueArn")},
	})
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.Attributes["QueueArn"]), nil
}

func attrsToHeaders(attrs map[string]*sqs.MessageAttributeValue) Headers {
	h := make(Headers, len(attrs))
	for k, v := range attrs {
		if v == nil {
			continue
		}
		h[k] = aws.StringValue(v.StringValue)
	}
	return h
}

func headersToSQSAttrs(headers Headers) map[string]*sqs.MessageAttributeValue {
	attrs := make(map[string]*sqs.MessageAttributeValue, len(headers))
	for k, v := range headers {
		attrs[k] = &sqs.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return attrs
}
