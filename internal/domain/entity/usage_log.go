package entity

import "time"

// UsageLogEntry is one append-only audit record of voucher access
type UsageLogEntry struct {
	ID            string                 `json:"id"`
	VoucherID     string                 `json:"voucher_id,omitempty"`
	VoucherNumber string                 `json:"voucher_number,omitempty"`
	Action        UsageAction            `json:"action"`
	ActorID       string                 `json:"actor_id,omitempty"`
	ActorType     ActorType              `json:"actor_type"`
	IPAddress     string                 `json:"ip_address,omitempty"`
	UserAgent     string                 `json:"user_agent,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}
