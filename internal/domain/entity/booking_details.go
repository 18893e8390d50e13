package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// BookingDetails is the category specific part of a booking snapshot.
// Exactly one variant exists per BookingType.
type BookingDetails interface {
	BookingType() BookingType
}

// ActivityDetails describes a booked tour or activity
type ActivityDetails struct {
	ActivityDate time.Time `json:"activity_date"`
	Participants int       `json:"participants"`
}

// EventDetails describes booked event tickets
type EventDetails struct {
	EventDate   time.Time `json:"event_date"`
	TicketCount int       `json:"ticket_count"`
	Seat        string    `json:"seat,omitempty"`
}

// RestaurantDetails describes a table reservation
type RestaurantDetails struct {
	ReservationAt time.Time `json:"reservation_at"`
	PartySize     int       `json:"party_size"`
}

// VehicleDetails describes a rental period
type VehicleDetails struct {
	PickupAt       time.Time `json:"pickup_at"`
	ReturnAt       time.Time `json:"return_at"`
	PickupLocation string    `json:"pickup_location,omitempty"`
}

// AccommodationDetails describes a stay
type AccommodationDetails struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
	Guests   int       `json:"guests"`
	RoomType string    `json:"room_type,omitempty"`
}

// PackageDetails describes a multi-day trip
type PackageDetails struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Travelers int       `json:"travelers"`
}

func (ActivityDetails) BookingType() BookingType      { return BookingTypeActivity }
func (EventDetails) BookingType() BookingType         { return BookingTypeEvent }
func (RestaurantDetails) BookingType() BookingType    { return BookingTypeRestaurant }
func (VehicleDetails) BookingType() BookingType       { return BookingTypeVehicle }
func (AccommodationDetails) BookingType() BookingType { return BookingTypeAccommodation }
func (PackageDetails) BookingType() BookingType       { return BookingTypePackage }

// detailsEnvelope is the stored form of BookingDetails
type detailsEnvelope struct {
	Type BookingType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalBookingDetails encodes details with their type tag. Nil details encode to nil.
func MarshalBookingDetails(d BookingDetails) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s details: %w", d.BookingType(), err)
	}
	return json.Marshal(detailsEnvelope{Type: d.BookingType(), Data: data})
}

// UnmarshalBookingDetails decodes a tagged envelope produced by MarshalBookingDetails
func UnmarshalBookingDetails(raw []byte) (BookingDetails, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env detailsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal details envelope: %w", err)
	}
	return DecodeBookingDetails(env.Type, env.Data)
}

// DecodeBookingDetails decodes the untagged payload for a known booking type
func DecodeBookingDetails(t BookingType, data json.RawMessage) (BookingDetails, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var (
		d   BookingDetails
		err error
	)
	switch t {
	case BookingTypeActivity:
		var v ActivityDetails
		err = json.Unmarshal(data, &v)
		d = v
	case BookingTypeEvent:
		var v EventDetails
		err = json.Unmarshal(data, &v)
		d = v
	case BookingTypeRestaurant:
		var v RestaurantDetails
		err = json.Unmarshal(data, &v)
		d = v
	case BookingTypeVehicle:
		var v VehicleDetails
		err = json.Unmarshal(data, &v)
		d = v
	case BookingTypeAccommodation:
		var v AccommodationDetails
		err = json.Unmarshal(data, &v)
		d = v
	case BookingTypePackage:
		var v PackageDetails
		err = json.Unmarshal(data, &v)
		d = v
	default:
		return nil, fmt.Errorf("unknown booking type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s details: %w", t, err)
	}
	return d, nil
}
