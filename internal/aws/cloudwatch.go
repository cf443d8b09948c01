package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchRecorder ships payment workflow outcomes as CloudWatch count metrics.
type CloudWatchRecorder struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

func NewCloudWatchRecorder(client CloudWatchAPI, namespace string) *CloudWatchRecorder {
	return &CloudWatchRecorder{client: client, namespace: namespace, nowFunc: time.Now}
}

// RecordPaymentOutcome puts a single PaymentOutcome datapoint with an Outcome dimension.
func (r *CloudWatchRecorder) RecordPaymentOutcome(ctx context.Context, outcome string) error {
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: sdkaws.String("PaymentOutcome"),
				Dimensions: []cwtypes.Dimension{
					{Name: sdkaws.String("Outcome"), Value: sdkaws.String(outcome)},
				},
				Timestamp: sdkaws.Time(r.nowFunc()),
				Unit:      cwtypes.StandardUnitCount,
				Value:     sdkaws.Float64(1),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
