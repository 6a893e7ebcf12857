package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/iho/boardbalance/internal/domain"
)

// FlexibleID accepts identifiers sent either as JSON numbers or strings.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id must be a string or a number: %w", err)
		}
		*id = FlexibleID(n.String())
	}
	return nil
}

// WebhookRequest is a board platform webhook delivery. It is either a URL
// verification challenge or a change event.
type WebhookRequest struct {
	Challenge string        `json:"challenge,omitempty"`
	Event     *WebhookEvent `json:"event,omitempty"`
}

// WebhookEvent is the change_column_value event payload.
type WebhookEvent struct {
	BoardID     FlexibleID      `json:"boardId"     validate:"required"`
	PulseID     FlexibleID      `json:"pulseId"     validate:"required"`
	ColumnID    string          `json:"columnId"    validate:"required"`
	// Value is required to be present, but a JSON null passes: a cleared
	// cell is reconciled with a zero delta instead of being rejected.
	Value       json.RawMessage `json:"value"       validate:"required"`
	TriggerUUID string          `json:"triggerUuid,omitempty"`
}

// Validate checks that the event carries every field a reconciliation needs.
func (e *WebhookEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return validationError(err)
	}
	return nil
}

// ToChangeEvent converts the payload to a domain event. The boolean is false
// when the new value is not numeric, in which case the delta is zero.
func (e *WebhookEvent) ToChangeEvent() (domain.ChangeEvent, bool) {
	delta, ok := domain.ParseNumeric(string(e.Value))
	return domain.ChangeEvent{
		BoardID:   string(e.BoardID),
		ItemID:    string(e.PulseID),
		ColumnID:  e.ColumnID,
		Delta:     delta,
		TriggerID: e.TriggerUUID,
	}, ok
}

// ChallengeResponse echoes the verification challenge.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}

// WebhookResponse acknowledges a handled change event.
type WebhookResponse struct {
	Success      bool   `json:"success"`
	RunID        string `json:"run_id"`
	ItemsUpdated int    `json:"items_updated"`
}

// MessageResponse acknowledges a delivery that needed no work.
type MessageResponse struct {
	Message string `json:"message"`
}
