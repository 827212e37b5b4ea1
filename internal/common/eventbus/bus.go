// Package eventbus publishes post-write notifications for UI refresh and
// sends calendar invitations. Publishing is fire-and-forget: callers never
// wait on it and its failures are only logged.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	commonaws "family-assistant/internal/common/aws"
	"family-assistant/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

var ErrNotificationFailed = errors.New("NOTIFICATION_FAILED")

// Notification types emitted after successful writes.
const (
	ProviderAdded  = "provider.added"
	EventCreated   = "event.created"
	EventCancelled = "event.cancelled"
	TaskAdded      = "task.added"
	TaskCompleted  = "task.completed"
	GrowthRecorded = "growth.recorded"
)

type Notification struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	FamilyID   string                 `json:"familyId"`
	EntityID   string                 `json:"entityId,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// Publisher delivers notifications without blocking the caller.
type Publisher interface {
	Notify(ctx context.Context, n Notification)
}

// NopPublisher drops every notification.
type NopPublisher struct{}

func (NopPublisher) Notify(context.Context, Notification) {}

// SNSPublisher publishes notifications as JSON messages to an SNS topic.
type SNSPublisher struct {
	client   commonaws.SNSAPI
	topicARN string
	timeout  time.Duration
	logger   logger.Logger
	wg       sync.WaitGroup
}

func NewSNSPublisher(client commonaws.SNSAPI, topicARN string, timeout time.Duration, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		timeout:  timeout,
		logger:   log.With(map[string]interface{}{"component": "eventbus"}),
	}
}

// Notify publishes n in the background. The caller's cancellation does not
// abort an in-flight publish.
func (p *SNSPublisher) Notify(ctx context.Context, n Notification) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}

	detached := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Send(detached, n); err != nil {
			p.logger.Warn("Notification publish failed", map[string]interface{}{
				"notificationId": n.ID,
				"type":           n.Type,
				"error":          err.Error(),
			})
		}
	}()
}

// Send publishes n synchronously.
func (p *SNSPublisher) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrNotificationFailed, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"type":     {DataType: aws.String("String"), StringValue: aws.String(n.Type)},
			"familyId": {DataType: aws.String("String"), StringValue: aws.String(n.FamilyID)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return nil
}

// Wait blocks until in-flight publishes finish.
func (p *SNSPublisher) Wait() {
	p.wg.Wait()
}
