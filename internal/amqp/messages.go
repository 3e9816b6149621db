package amqp

import (
	"encoding/json"
	"time"

	"advisor/internal/core"
)

// DecisionRecordedMessage notifies downstream consumers (narration,
// notifiers) that a decision was appended to a user's log. It carries
// only identifiers; consumers fetch the full decision from the store.
type DecisionRecordedMessage struct {
	UserID     string       `json:"user_id"`
	DecisionID string       `json:"decision_id"`
	Verdict    core.Verdict `json:"verdict"`
	Timestamp  time.Time    `json:"timestamp"`
}

// AlertRaisedMessage carries one deduplicated alert from a sweep.
type AlertRaisedMessage struct {
	UserID    string     `json:"user_id"`
	Alert     core.Alert `json:"alert"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewDecisionRecordedMessage(userID string, d core.Decision) *DecisionRecordedMessage {
	return &DecisionRecordedMessage{
		UserID:     userID,
		DecisionID: d.ID,
		Verdict:    d.Verdict,
		Timestamp:  d.Timestamp,
	}
}

func NewAlertRaisedMessage(userID string, a core.Alert) *AlertRaisedMessage {
	return &AlertRaisedMessage{
		UserID:    userID,
		Alert:     a,
		Timestamp: time.Now().UTC(),
	}
}

func (m *DecisionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DecisionRecordedMessageFromJSON(data []byte) (*DecisionRecordedMessage, error) {
	var msg DecisionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *AlertRaisedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AlertRaisedMessageFromJSON(data []byte) (*AlertRaisedMessage, error) {
	var msg AlertRaisedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
