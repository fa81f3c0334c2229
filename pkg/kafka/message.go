package kafka

import (
	"encoding/json"
	"time"
)

// IncomingMessage is a fetched Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string
}

// EventType returns the event_type header, empty when absent
func (m *IncomingMessage) EventType() string {
	return m.Headers["event_type"]
}

// SchemaVersion returns the schema_version header, empty when absent
func (m *IncomingMessage) SchemaVersion() string {
	return m.Headers["schema_version"]
}

// Decode unmarshals the message payload into v
func (m *IncomingMessage) Decode(v any) error {
	return json.Unmarshal(m.Value, v)
}
