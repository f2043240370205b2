package sqsgath

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal"
	"github.com/programme-lv/forkbench/internal/perf"
)

const sendTimeout = 10 * time.Second

// Sender is the part of *sqs.Client the gatherer needs.
type Sender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

var _ Sender = (*sqs.Client)(nil)

type sqsResQueueGatherer struct {
	sqsClient Sender
	queueUrl  string
	runUuid   string
	log       *slog.Logger
}

func New(client Sender, runUuid string, queueUrl string, log *slog.Logger) *sqsResQueueGatherer {
	if log == nil {
		log = slog.Default()
	}
	return &sqsResQueueGatherer{
		sqsClient: client,
		queueUrl:  queueUrl,
		runUuid:   runUuid,
		log:       log.With("gatherer", "sqs"),
	}
}

// NewFromConfig loads the default AWS configuration. An empty profile uses the default chain.
func NewFromConfig(ctx context.Context, region, profile, runUuid, queueUrl string, log *slog.Logger) (*sqsResQueueGatherer, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return New(sqs.NewFromConfig(cfg), runUuid, queueUrl, log), nil
}

func (s *sqsResQueueGatherer) StartRun(systemInfo string) {
	s.send(api.NewStartRun(s.runUuid, systemInfo))
}

func (s *sqsResQueueGatherer) FinishMeasure(iv perf.Interval) {
	s.send(api.NewMeasure(s.runUuid, iv.Name, iv.Start.Name, iv.End.Name, iv.Duration))
}

func (s *sqsResQueueGatherer) FailRunner(model api.Model, err error) {
	s.send(api.NewFailRunner(s.runUuid, model, err))
}

func (s *sqsResQueueGatherer) FinishRun(summary *internal.Summary) {
	s.send(internal.NewFinishRun(summary))
}

func (s *sqsResQueueGatherer) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("failed to marshal message", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	_, err = s.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueUrl),
		MessageBody: aws.String(string(b)),
	})
	if err != nil {
		s.log.Error("failed to send message", "queue", s.queueUrl, "error", err)
	}
}
