package natsgath

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal"
	"github.com/programme-lv/forkbench/internal/perf"
)

// Publisher is the part of *nats.Conn the gatherer needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

type natsGatherer struct {
	pub     Publisher
	subject string
	runUuid string
	log     *slog.Logger
}

// New creates a gatherer that streams report messages to the given subject.
func New(pub Publisher, runUuid string, subject string, log *slog.Logger) *natsGatherer {
	if log == nil {
		log = slog.Default()
	}
	return &natsGatherer{
		pub:     pub,
		subject: subject,
		runUuid: runUuid,
		log:     log.With("gatherer", "nats"),
	}
}

func (s *natsGatherer) StartRun(systemInfo string) {
	s.send(api.NewStartRun(s.runUuid, systemInfo))
}

func (s *natsGatherer) FinishMeasure(iv perf.Interval) {
	s.send(api.NewMeasure(s.runUuid, iv.Name, iv.Start.Name, iv.End.Name, iv.Duration))
}

func (s *natsGatherer) FailRunner(model api.Model, err error) {
	s.send(api.NewFailRunner(s.runUuid, model, err))
}

func (s *natsGatherer) FinishRun(summary *internal.Summary) {
	s.send(internal.NewFinishRun(summary))
}

func (s *natsGatherer) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("failed to marshal message", "error", err)
		return
	}

	if err := s.pub.Publish(s.subject, b); err != nil {
		s.log.Error("failed to publish message to NATS", "subject", s.subject, "error", err)
	}
}
