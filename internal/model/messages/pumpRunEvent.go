package messages

import "time"

// PumpRunEvent is published at each pump activation. StartedAt matches the
// persisted history record, so a consumer can reconcile the audit trail.
// Published at QoS 1; consumers must tolerate redelivery.
type PumpRunEvent struct {
	TicketID  string        `json:"ticket_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}
