package http

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garyjia/booking-voucher/internal/application/service"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/metrics"
)

const testJWTSecret = "test-jwt-secret-test-jwt-secret!"

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fakeIssuer struct {
	issueFunc func(ctx context.Context, req *service.IssueRequest, actor entity.Actor) (*entity.Voucher, error)
}

func (f *fakeIssuer) Issue(ctx context.Context, req *service.IssueRequest, actor entity.Actor) (*entity.Voucher, error) {
	return f.issueFunc(ctx, req, actor)
}

type fakeLookup struct {
	getByIDFunc     func(ctx context.Context, id string, actor entity.Actor) (*service.VoucherView, error)
	getByNumberFunc func(ctx context.Context, number string, actor entity.Actor) (*service.VoucherView, error)
	getByCodeFunc   func(ctx context.Context, code string, actor entity.Actor) (*service.VoucherView, error)
	verifyFunc      func(ctx context.Context, raw string, actor entity.Actor) (*service.VerificationResult, error)
}

func (f *fakeLookup) GetByID(ctx context.Context, id string, actor entity.Actor) (*service.VoucherView, error) {
	return f.getByIDFunc(ctx, id, actor)
}

func (f *fakeLookup) GetByNumber(ctx context.Context, number string, actor entity.Actor) (*service.VoucherView, error) {
	return f.getByNumberFunc(ctx, number, actor)
}

func (f *fakeLookup) GetByConfirmationCode(ctx context.Context, code string, actor entity.Actor) (*service.VoucherView, error) {
	return f.getByCodeFunc(ctx, code, actor)
}

func (f *fakeLookup) Verify(ctx context.Context, raw string, actor entity.Actor) (*service.VerificationResult, error) {
	return f.verifyFunc(ctx, raw, actor)
}

type fakeRedemption struct {
	issueTokenFunc    func(ctx context.Context, id string, actor entity.Actor) (*service.IssuedToken, error)
	redeemByIDFunc    func(ctx context.Context, id string, actor entity.Actor) (*entity.Voucher, error)
	redeemByTokenFunc func(ctx context.Context, raw string, actor entity.Actor) (*entity.Voucher, error)
	cancelFunc        func(ctx context.Context, id string, actor entity.Actor, reason string) (*entity.Voucher, error)
}

func (f *fakeRedemption) IssueToken(ctx context.Context, id string, actor entity.Actor) (*service.IssuedToken, error) {
	return f.issueTokenFunc(ctx, id, actor)
}

func (f *fakeRedemption) RedeemByID(ctx context.Context, id string, actor entity.Actor) (*entity.Voucher, error) {
	return f.redeemByIDFunc(ctx, id, actor)
}

func (f *fakeRedemption) RedeemByToken(ctx context.Context, raw string, actor entity.Actor) (*entity.Voucher, error) {
	return f.redeemByTokenFunc(ctx, raw, actor)
}

func (f *fakeRedemption) Cancel(ctx context.Context, id string, actor entity.Actor, reason string) (*entity.Voucher, error) {
	return f.cancelFunc(ctx, id, actor, reason)
}

type fakeDocuments struct {
	getDocumentFunc func(ctx context.Context, id string, actor entity.Actor) (*service.Document, error)
	sendEmailFunc   func(ctx context.Context, id string, actor entity.Actor) error
}

func (f *fakeDocuments) GetDocument(ctx context.Context, id string, actor entity.Actor) (*service.Document, error) {
	return f.getDocumentFunc(ctx, id, actor)
}

func (f *fakeDocuments) SendEmail(ctx context.Context, id string, actor entity.Actor) error {
	return f.sendEmailFunc(ctx, id, actor)
}

type fakeUsage struct {
	listFunc   func(ctx context.Context, id string, actor entity.Actor) ([]*entity.UsageLogEntry, error)
	exportFunc func(ctx context.Context, id string, actor entity.Actor) (*service.Document, error)
}

func (f *fakeUsage) ListUsage(ctx context.Context, id string, actor entity.Actor) ([]*entity.UsageLogEntry, error) {
	return f.listFunc(ctx, id, actor)
}

func (f *fakeUsage) ExportUsage(ctx context.Context, id string, actor entity.Actor) (*service.Document, error) {
	return f.exportFunc(ctx, id, actor)
}

type fakeSweeper struct {
	calls int
}

func (f *fakeSweeper) RunOnce(ctx context.Context) (*service.SweepResult, error) {
	f.calls++
	return &service.SweepResult{ExpiredCount: 3}, nil
}

type fakeHealth struct {
	err error
}

func (f fakeHealth) HealthCheck(ctx context.Context) error { return f.err }

var (
	masterUser   = &entity.Identity{UserID: "u-master", Role: entity.RoleMaster}
	employeeUser = &entity.Identity{UserID: "u-employee", Role: entity.RoleEmployee}
	partnerUser  = &entity.Identity{UserID: "u-partner", Role: entity.RolePartner, PartnerID: "partner-a"}
	customerUser = &entity.Identity{UserID: "u-customer", Role: entity.RoleCustomer, Email: "jane@example.com"}
)

func sampleVoucher() *entity.Voucher {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	return &entity.Voucher{
		ID:            "v-1",
		VoucherNumber: "VCH-20250110-0001",
		BookingID:     "b-1",
		BookingType:   entity.BookingTypeActivity,
		Status:        entity.VoucherStatusActive,
		ValidFrom:     now,
		ValidUntil:    now.Add(time.Hour),
		PartnerID:     "partner-a",
	}
}

// testServer bundles the router with the fakes behind it
type testServer struct {
	server     *Server
	auth       *Authenticator
	recorder   *metrics.Recorder
	issuer     *fakeIssuer
	lookup     *fakeLookup
	redemption *fakeRedemption
	documents  *fakeDocuments
	usage      *fakeUsage
	sweeper    *fakeSweeper
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	auth, err := NewAuthenticator(testJWTSecret, "booking-auth")
	require.NoError(t, err)

	ts := &testServer{
		auth:       auth,
		recorder:   metrics.NewRecorder(nil),
		issuer:     &fakeIssuer{},
		lookup:     &fakeLookup{},
		redemption: &fakeRedemption{},
		documents:  &fakeDocuments{},
		usage:      &fakeUsage{},
		sweeper:    &fakeSweeper{},
	}

	ts.server = NewServer(DefaultServerConfig(), Services{
		Issuer:     ts.issuer,
		Lookup:     ts.lookup,
		Redemption: ts.redemption,
		Documents:  ts.documents,
		Usage:      ts.usage,
		Sweeper:    ts.sweeper,
		Health:     fakeHealth{},
	}, auth, ts.recorder, nopLogger{})

	return ts
}

func (ts *testServer) bearer(t *testing.T, id *entity.Identity) string {
	t.Helper()
	raw, err := ts.auth.Sign(id, time.Hour)
	require.NoError(t, err)
	return "Bearer " + raw
}
