package notify

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"
)

// Stream pushes notifications and suggestion lifecycle events to NATS so
// subscribers can react without polling. Publishing is best-effort: the
// stored notification row remains the source of truth and a dropped publish
// is recovered by the next poll.
type Stream struct {
	conn *nats.Conn
}

func ConnectStream(url string) (*Stream, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	return &Stream{conn: conn}, nil
}

type streamEnvelope struct {
	ID           string `json:"id"`
	Event        string `json:"event"`
	SuggestionID string `json:"suggestionId,omitempty"`
	Recipient    string `json:"recipient,omitempty"`
	Message      string `json:"message,omitempty"`
	EmittedAt    int64  `json:"emittedAt"`
}

// PublishNotification mirrors a stored notification to
// concord.notify.<agentID>.
func (s *Stream) PublishNotification(recipientAgentID, message string) {
	if s == nil {
		return
	}
	s.publish("concord.notify."+recipientAgentID, streamEnvelope{
		ID:        nuid.Next(),
		Event:     "notification",
		Recipient: recipientAgentID,
		Message:   message,
		EmittedAt: time.Now().Unix(),
	})
}

// PublishSuggestionEvent announces a lifecycle event (created, collaborated,
// verdict-changed, applied, rejected) on concord.suggestion.<event>.
func (s *Stream) PublishSuggestionEvent(event, suggestionID string) {
	if s == nil {
		return
	}
	s.publish("concord.suggestion."+event, streamEnvelope{
		ID:           nuid.Next(),
		Event:        event,
		SuggestionID: suggestionID,
		EmittedAt:    time.Now().Unix(),
	})
}

func (s *Stream) publish(subject string, envelope streamEnvelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("notify: marshal stream envelope: %v", err)
		return
	}
	if err := s.conn.Publish(subject, payload); err != nil {
		log.Printf("notify: publish %s: %v", subject, err)
	}
}

func (s *Stream) Close() {
	if s == nil || s.conn == nil {
		return
	}
	_ = s.conn.Drain()
	s.conn.Close()
}
