package paypal

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
)

// Event is one decoded webhook notification. Only capture outcomes carry
// typed variants; everything else parses to UnknownEvent so handlers can
// acknowledge without acting.
type Event interface {
	EventType() string
}

type CaptureCompletedEvent struct {
	EventID       string
	CaptureID     string
	PayPalOrderID string
	Raw           []byte
}

func (CaptureCompletedEvent) EventType() string { return EventCaptureCompleted }

type CaptureDeniedEvent struct {
	EventID       string
	CaptureID     string
	PayPalOrderID string
	Reason        string
	Raw           []byte
}

func (CaptureDeniedEvent) EventType() string { return EventCaptureDenied }

type UnknownEvent struct {
	Type string
	Raw  []byte
}

func (e UnknownEvent) EventType() string { return e.Type }

type webhookEnvelope struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		StatusDetails struct {
			Reason string `json:"reason"`
		} `json:"status_details"`
	} `json:"resource"`
}

// ParseEvent decodes one webhook body. The capture id is the resource id;
// the parent order id rides in supplementary_data.related_ids.order_id.
func ParseEvent(body []byte) (Event, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("paypal: decode webhook event: %w", err)
	}

	eventType := strings.TrimSpace(envelope.EventType)
	switch eventType {
	case EventCaptureCompleted:
		return CaptureCompletedEvent{
			EventID:       envelope.ID,
			CaptureID:     envelope.Resource.ID,
			PayPalOrderID: envelope.Resource.SupplementaryData.RelatedIDs.OrderID,
			Raw:           body,
		}, nil
	case EventCaptureDenied:
		return CaptureDeniedEvent{
			EventID:       envelope.ID,
			CaptureID:     envelope.Resource.ID,
			PayPalOrderID: envelope.Resource.SupplementaryData.RelatedIDs.OrderID,
			Reason:        envelope.Resource.StatusDetails.Reason,
			Raw:           body,
		}, nil
	default:
		return UnknownEvent{Type: eventType, Raw: body}, nil
	}
}
