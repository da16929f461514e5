// Package kafkaad publishes submission events to Kafka.
package kafkaad

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"coffeemap/internal/domain"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	w       MessageWriter
	timeout time.Duration
}

func New(brokers []string, topic string) *Publisher {
	return NewWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	})
}

func NewWithWriter(w MessageWriter) *Publisher {
	return &Publisher{w: w, timeout: 5 * time.Second}
}

type submissionEvent struct {
	Type           string    `json:"type"`
	ID             int64     `json:"id"`
	Ref            string    `json:"ref"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	Area           string    `json:"area"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Rating         *float64  `json:"rating"`
	WiFi           bool      `json:"wifi"`
	OutdoorSeating bool      `json:"outdoor_seating"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// SubmissionCreated emits a submission.created event keyed by the submission ref.
func (p *Publisher) SubmissionCreated(ctx context.Context, s domain.Submission) error {
	body, err := json.Marshal(submissionEvent{
		Type:           "submission.created",
		ID:             s.ID,
		Ref:            s.Ref,
		Name:           s.Name,
		Address:        s.Address,
		Area:           s.Area,
		Latitude:       s.Location.Lat(),
		Longitude:      s.Location.Lon(),
		Rating:         s.Rating,
		WiFi:           s.WiFi,
		OutdoorSeating: s.OutdoorSeating,
		SubmittedAt:    s.SubmittedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode submission event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(s.Ref),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("submission.created")},
			{Key: "submission-id", Value: []byte(strconv.FormatInt(s.ID, 10))},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish submission %s: %w", s.Ref, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }
