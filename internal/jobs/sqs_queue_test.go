package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQS struct {
	sent     []*sqs.SendMessageInput
	received *sqs.ReceiveMessageInput
	deleted  []string
	messages []sqstypes.Message
	err      error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.received = in
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue_RoundTrip(t *testing.T) {
	api := &fakeSQS{messages: []sqstypes.Message{
		{MessageId: aws.String("m-1"), Body: aws.String(`{"kind":"enrich_lead"}`), ReceiptHandle: aws.String("rh-1")},
	}}
	q := NewSQSQueue(api, "https://sqs.local/queue")
	ctx := context.Background()

	if err := q.Send(ctx, "body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(api.sent[0].QueueUrl) != "https://sqs.local/queue" || aws.ToString(api.sent[0].MessageBody) != "body" {
		t.Fatalf("unexpected send input %+v", api.sent[0])
	}

	msgs, err := q.Receive(ctx, 5, 10)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if api.received.MaxNumberOfMessages != 5 || api.received.WaitTimeSeconds != 10 {
		t.Fatalf("unexpected receive input %+v", api.received)
	}
	if len(msgs) != 1 || msgs[0].ReceiptHandle != "rh-1" || msgs[0].ID != "m-1" {
		t.Fatalf("unexpected messages %+v", msgs)
	}

	if err := q.Delete(ctx, ""); err != nil {
		t.Fatalf("empty delete: %v", err)
	}
	if err := q.Delete(ctx, "rh-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(api.deleted) != 1 || api.deleted[0] != "rh-1" {
		t.Fatalf("expected one delete, got %v", api.deleted)
	}
}

func TestSQSQueue_WrapsErrors(t *testing.T) {
	boom := errors.New("throttled")
	q := NewSQSQueue(&fakeSQS{err: boom}, "url")
	if err := q.Send(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := q.Receive(context.Background(), 1, 0); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
