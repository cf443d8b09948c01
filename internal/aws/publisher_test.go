package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestPublisherSend_SetsBodyAndAttributes(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "https://sqs.local/queue/mail")

	err := p.Send(context.Background(), `{"to":"a@b.c"}`, map[string]string{"kind": "verify", "empty": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected 1 SendMessage call, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.QueueUrl != "https://sqs.local/queue/mail" {
		t.Fatalf("queue url mismatch: %s", *in.QueueUrl)
	}
	if *in.MessageBody != `{"to":"a@b.c"}` {
		t.Fatalf("body mismatch: %s", *in.MessageBody)
	}
	if got := *in.MessageAttributes["kind"].StringValue; got != "verify" {
		t.Fatalf("attribute mismatch: %s", got)
	}
	if _, ok := in.MessageAttributes["empty"]; ok {
		t.Fatalf("empty attributes must be skipped")
	}
}

func TestPublisherSend_WrapsError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPublisher(&mockSQS{err: boom}, "q")
	if err := p.Send(context.Background(), "{}", nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestCloudWatchRecorder_PutsOutcomeDimension(t *testing.T) {
	mock := &mockCloudWatch{}
	r := NewCloudWatchRecorder(mock, "VDisk/Payments")

	if err := r.RecordPaymentOutcome(context.Background(), "confirmed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected one PutMetricData call")
	}
	datum := mock.inputs[0].MetricData[0]
	if *datum.Dimensions[0].Value != "confirmed" {
		t.Fatalf("dimension mismatch: %s", *datum.Dimensions[0].Value)
	}
	if *mock.inputs[0].Namespace != "VDisk/Payments" {
		t.Fatalf("namespace mismatch")
	}
}
