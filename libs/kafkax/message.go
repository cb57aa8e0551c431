package kafkax

import (
	"context"
	"strings"
	"unicode"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID     = "event_id"
	HeaderEventType   = "event_type"
	HeaderContentType = "content-type"
)

// Envelope is one domain event on the wire. Type is also the topic and Key
// (the aggregate id) keeps an aggregate's events on one partition.
type Envelope struct {
	ID      string
	Type    string
	Key     string
	Payload []byte
}

func (e Envelope) Message(ctx context.Context) kafka.Message {
	msg := kafka.Message{
		Topic: e.Type,
		Key:   []byte(e.Key),
		Value: e.Payload,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(e.ID)},
			{Key: HeaderEventType, Value: []byte(e.Type)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}
	InjectTrace(ctx, &msg)
	return msg
}

// Open reads an envelope back from msg. Producers that skip our headers
// still get an id (the key) and a type (the topic).
func Open(msg kafka.Message) Envelope {
	h := Headers(msg.Headers)
	env := Envelope{
		ID:      h.Get(HeaderEventID),
		Type:    h.Get(HeaderEventType),
		Key:     string(msg.Key),
		Payload: msg.Value,
	}
	if env.ID == "" {
		env.ID = env.Key
	}
	if env.Type == "" {
		env.Type = msg.Topic
	}
	return env
}

// SplitBrokers accepts comma or whitespace separated host:port lists.
func SplitBrokers(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}
