package queue

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-state-backup/core"
)

// receiveWaitSeconds keeps Receive on long polling so empty queues do not
// spin the caller.
const receiveWaitSeconds = 10

// MessageAPI is the slice of the SQS client this package needs.
type MessageAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSTransport reads and acknowledges dead-lettered deliveries on one queue.
type SQSTransport struct {
	Client   MessageAPI
	QueueURL string
}

// NewSQSTransport returns a transport bound to the given queue URL.
func NewSQSTransport(client MessageAPI, queueURL string) *SQSTransport {
	return &SQSTransport{Client: client, QueueURL: queueURL}
}

// Receive long-polls for up to max messages.
func (t *SQSTransport) Receive(ctx context.Context, max int32) ([]core.DeadLetterMessage, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if max < 1 {
		max = 1
	}

	out, err := t.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(t.QueueURL),
		MaxNumberOfMessages: max,
		WaitTimeSeconds:     receiveWaitSeconds,
	})
	if err != nil {
		return nil, queueError("queue: receive messages", err, t.QueueURL)
	}

	messages := make([]core.DeadLetterMessage, 0, len(out.Messages))
	for _, msg := range out.Messages {
		messages = append(messages, core.DeadLetterMessage{
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
			Body:          aws.ToString(msg.Body),
		})
	}
	return messages, nil
}

// Delete acknowledges one message. Undeleted messages come back after the
// visibility timeout.
func (t *SQSTransport) Delete(ctx context.Context, receiptHandle string) error {
	if err := t.check(); err != nil {
		return err
	}
	if strings.TrimSpace(receiptHandle) == "" {
		return core.NewError(
			"queue: receipt handle is required",
			goerrors.CategoryValidation,
			http.StatusUnprocessableEntity,
			core.BackupErrorValidation,
			nil,
		)
	}

	_, err := t.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(t.QueueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return queueError("queue: delete message", err, t.QueueURL)
	}
	return nil
}

func (t *SQSTransport) check() error {
	if t == nil || t.Client == nil || strings.TrimSpace(t.QueueURL) == "" {
		return core.NewError(
			"queue: transport is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.BackupErrorInternal,
			nil,
		)
	}
	return nil
}

func queueError(message string, source error, queueURL string) error {
	return core.WrapError(
		source,
		goerrors.CategoryExternal,
		message,
		http.StatusBadGateway,
		core.BackupErrorUpstreamFailed,
		map[string]any{"queue_url": queueURL},
	)
}
