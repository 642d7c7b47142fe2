package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/iotdataplane"
	"github.com/aws/aws-sdk-go/service/iotdataplane/iotdataplaneiface"
)

// IoTNotifier publishes messages to AWS IoT Core MQTT topics of the form
// carlost/<device>/<type>
type IoTNotifier struct {
	client iotdataplaneiface.IoTDataPlaneAPI
	device string
}

// NewIoTNotifier creates a notifier for the account data endpoint. The
// session uses the default AWS credential chain.
func NewIoTNotifier(region, endpoint, device string) (*IoTNotifier, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	client := iotdataplane.New(sess, &aws.Config{
		Endpoint: aws.String(endpoint),
	})
	return NewIoTNotifierWithClient(client, device), nil
}

// NewIoTNotifierWithClient wraps an existing data plane client
func NewIoTNotifierWithClient(client iotdataplaneiface.IoTDataPlaneAPI, device string) *IoTNotifier {
	return &IoTNotifier{client: client, device: device}
}

// Topic returns the topic a message type is published on
func (n *IoTNotifier) Topic(t MessageType) string {
	return fmt.Sprintf("carlost/%s/%s", n.device, t)
}

// Publish sends msg with QoS 0
func (n *IoTNotifier) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	_, err = n.client.PublishWithContext(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(n.Topic(msg.Type)),
		Payload: payload,
		Qos:     aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to iot topic: %w", err)
	}
	return nil
}

// Name returns the notifier name
func (n *IoTNotifier) Name() string {
	return "aws_iot"
}

// Close is a no-op; the data plane client holds no connection state
func (n *IoTNotifier) Close() error {
	return nil
}
