// Operational alerting. Security and reconciliation faults on the
// webhook path are published to an SQS queue for the on-call tooling;
// delivery failures are logged and never fail the originating request.
package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

const (
	AlertSignatureInvalid = "webhook_signature_invalid"
	AlertUnresolvedUser   = "webhook_unresolved_user"
	AlertPartialReconcile = "webhook_partial_reconcile"
)

type Alerter interface {
	Alert(ctx context.Context, kind, detail string, fields map[string]string)
}

type alertMessage struct {
	ID     string            `json:"id"`
	Kind   string            `json:"kind"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
	At     time.Time         `json:"at"`
}

type sqsAlerter struct {
	client   *sqs.Client
	queueURL string
}

// NewAlerter builds an SQS-backed alerter, or a no-op one when no queue
// is configured.
func NewAlerter(ctx context.Context, queueURL string) Alerter {
	if queueURL == "" {
		log.Printf("ALERT_QUEUE_URL missing; operational alerts will only be logged")
		return noopAlerter{}
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("failed to load AWS config for alerts: %v", err)
		return noopAlerter{}
	}
	return &sqsAlerter{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: queueURL,
	}
}

func (a *sqsAlerter) Alert(ctx context.Context, kind, detail string, fields map[string]string) {
	msg := alertMessage{
		ID:     uuid.NewString(),
		Kind:   kind,
		Detail: detail,
		Fields: fields,
		At:     time.Now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal alert kind=%s: %v", kind, err)
		return
	}
	_, err = a.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &a.queueURL,
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		log.Printf("failed to send alert kind=%s: %v", kind, err)
	}
}

type noopAlerter struct{}

func (noopAlerter) Alert(_ context.Context, kind, detail string, _ map[string]string) {
	log.Printf("alert kind=%s detail=%s", kind, detail)
}
