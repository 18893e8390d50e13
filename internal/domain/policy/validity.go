// Package policy holds the issuance rules: redemption windows per booking
// type and the voucher number format.
package policy

import (
	"time"

	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

// ValidityPolicy computes the redemption window of a new voucher
type ValidityPolicy struct {
	// DefaultValidity applies to types without a details-derived window
	DefaultValidity time.Duration

	// RestaurantWindow is measured from the reservation time
	RestaurantWindow time.Duration
}

// DefaultValidityPolicy returns the standard table: restaurant 4h, others one year
func DefaultValidityPolicy() ValidityPolicy {
	return ValidityPolicy{
		DefaultValidity:  365 * 24 * time.Hour,
		RestaurantWindow: 4 * time.Hour,
	}
}

// Window returns validFrom and validUntil for a booking issued at issuedAt
func (p ValidityPolicy) Window(bookingType entity.BookingType, details entity.BookingDetails, issuedAt time.Time) (time.Time, time.Time, error) {
	if !bookingType.IsValid() {
		return time.Time{}, time.Time{}, apperror.Validation("unknown booking type %q", bookingType)
	}
	if details != nil && details.BookingType() != bookingType {
		return time.Time{}, time.Time{}, apperror.Validation("%s details supplied for a %s booking", details.BookingType(), bookingType)
	}

	switch bookingType {
	case entity.BookingTypeRestaurant:
		d, ok := details.(entity.RestaurantDetails)
		if !ok || d.ReservationAt.IsZero() {
			return time.Time{}, time.Time{}, apperror.Validation("restaurant booking requires a reservation time")
		}
		return d.ReservationAt, d.ReservationAt.Add(p.RestaurantWindow), nil

	case entity.BookingTypeVehicle:
		d, ok := details.(entity.VehicleDetails)
		if !ok || d.PickupAt.IsZero() || d.ReturnAt.IsZero() {
			return time.Time{}, time.Time{}, apperror.Validation("vehicle booking requires pickup and return times")
		}
		return span(d.PickupAt, d.ReturnAt)

	case entity.BookingTypePackage:
		d, ok := details.(entity.PackageDetails)
		if !ok || d.StartDate.IsZero() || d.EndDate.IsZero() {
			return time.Time{}, time.Time{}, apperror.Validation("package booking requires start and end dates")
		}
		return span(d.StartDate, d.EndDate)
	}

	return issuedAt, issuedAt.Add(p.DefaultValidity), nil
}

func span(from, until time.Time) (time.Time, time.Time, error) {
	if until.Before(from) {
		return time.Time{}, time.Time{}, apperror.Validation("booking ends before it starts")
	}
	return from, until, nil
}
