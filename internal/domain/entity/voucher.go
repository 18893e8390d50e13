package entity

import (
	"strings"
	"time"
)

// CustomerInfo is the customer snapshot taken at issuance
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// AssetInfo is the snapshot of the booked asset (tour, venue, car, room...)
type AssetInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	Description string `json:"description,omitempty"`
}

// Voucher is a single-use credential for one confirmed booking
type Voucher struct {
	ID               string         `json:"id"`
	VoucherNumber    string         `json:"voucher_number"`
	BookingID        string         `json:"booking_id"`
	BookingType      BookingType    `json:"booking_type"`
	Status           VoucherStatus  `json:"status"`
	ValidFrom        time.Time      `json:"valid_from"`
	ValidUntil       time.Time      `json:"valid_until"`
	PartnerID        string         `json:"partner_id"`
	ConfirmationCode string         `json:"confirmation_code"`
	Customer         CustomerInfo   `json:"customer"`
	Asset            AssetInfo      `json:"asset"`
	Details          BookingDetails `json:"details,omitempty"`
	QRCode           string         `json:"qr_code"`
	DocumentRef      string         `json:"document_ref,omitempty"`
	UsedAt           *time.Time     `json:"used_at,omitempty"`
	UsedBy           string         `json:"used_by,omitempty"`
	CancelledAt      *time.Time     `json:"cancelled_at,omitempty"`
	CancelledBy      string         `json:"cancelled_by,omitempty"`
	CancelReason     string         `json:"cancel_reason,omitempty"`
	ExpiredAt        *time.Time     `json:"expired_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsActive returns true while the voucher can still be redeemed or cancelled
func (v *Voucher) IsActive() bool {
	return v.Status == VoucherStatusActive
}

// HasStarted returns true once the redemption window is open
func (v *Voucher) HasStarted(now time.Time) bool {
	return !now.Before(v.ValidFrom)
}

// IsLapsed returns true strictly after the redemption window closed
func (v *Voucher) IsLapsed(now time.Time) bool {
	return now.After(v.ValidUntil)
}

// OwnedByPartner reports whether the partner owns the voucher
func (v *Voucher) OwnedByPartner(partnerID string) bool {
	return partnerID != "" && v.PartnerID == partnerID
}

// OwnedByCustomer reports whether the email matches the customer snapshot
func (v *Voucher) OwnedByCustomer(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && strings.EqualFold(strings.TrimSpace(v.Customer.Email), email)
}

// Partner is the service provider that honours the voucher
type Partner struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}
