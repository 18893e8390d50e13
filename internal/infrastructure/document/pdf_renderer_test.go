package document

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

func sampleVoucher(details entity.BookingDetails) *entity.Voucher {
	from := time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC)
	bt := entity.BookingTypeActivity
	if details != nil {
		bt = details.BookingType()
	}
	return &entity.Voucher{
		ID:               "v-1",
		VoucherNumber:    "VCH-20250110-0001",
		BookingType:      bt,
		Status:           entity.VoucherStatusActive,
		ValidFrom:        from,
		ValidUntil:       from.Add(4 * time.Hour),
		ConfirmationCode: "CONF-1",
		Customer:         entity.CustomerInfo{Name: "Zoë Müller", Email: "zoe@example.com"},
		Asset:            entity.AssetInfo{Name: "Harbour Grill", Address: "1 Pier Rd", Description: "Window table"},
		Details:          details,
		QRCode:           "eyJ2IjoiMS4wIn0=",
	}
}

func TestPDFRenderer_RendersEveryBookingType(t *testing.T) {
	r := NewPDFRenderer(nil, zap.NewNop())
	at := time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC)

	details := []entity.BookingDetails{
		nil,
		entity.ActivityDetails{ActivityDate: at, Participants: 2},
		entity.EventDetails{EventDate: at, TicketCount: 3, Seat: "B12"},
		entity.RestaurantDetails{ReservationAt: at, PartySize: 4},
		entity.VehicleDetails{PickupAt: at, ReturnAt: at.Add(48 * time.Hour), PickupLocation: "Airport"},
		entity.AccommodationDetails{CheckIn: at, CheckOut: at.Add(72 * time.Hour), Guests: 2, RoomType: "Double"},
		entity.PackageDetails{StartDate: at, EndDate: at.Add(120 * time.Hour), Travelers: 5},
	}

	for _, d := range details {
		v := sampleVoucher(d)
		t.Run(string(v.BookingType), func(t *testing.T) {
			out, err := r.Render(context.Background(), &port.VoucherDocument{
				Voucher: v,
				Partner: &entity.Partner{ID: "p-1", Name: "Harbour Tours", Phone: "+1 555 0100"},
			})
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
		})
	}
}

func TestPDFRenderer_FallsBackToNumberForQR(t *testing.T) {
	r := NewPDFRenderer(time.UTC, zap.NewNop())
	v := sampleVoucher(nil)
	v.QRCode = ""

	out, err := r.Render(context.Background(), &port.VoucherDocument{Voucher: v})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestPDFRenderer_RequiresVoucher(t *testing.T) {
	r := NewPDFRenderer(nil, zap.NewNop())
	_, err := r.Render(context.Background(), &port.VoucherDocument{})
	assert.Error(t, err)
}

func TestPDFRenderer_DetailLinesUseLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	r := NewPDFRenderer(loc, zap.NewNop())
	at := time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC)

	lines := r.detailLines(entity.RestaurantDetails{ReservationAt: at, PartySize: 4})
	require.Len(t, lines, 2)
	assert.Equal(t, "2025-01-11 02:00 UTC+7", lines[0][1])
	assert.Equal(t, "4", lines[1][1])

	assert.Nil(t, r.detailLines(nil))
}

func TestPDFRenderer_Metadata(t *testing.T) {
	r := NewPDFRenderer(nil, zap.NewNop())
	assert.Equal(t, ".pdf", r.Extension())
	assert.Equal(t, "application/pdf", r.ContentType())
}
