package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/application/workflow"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/event"
	"github.com/garyjia/booking-voucher/internal/domain/token"
)

// In-memory collaborators

type memVoucherRepo struct {
	mu       sync.Mutex
	vouchers map[string]*entity.Voucher

	createFunc     func(ctx context.Context, v *entity.Voucher) error
	transitionFunc func(ctx context.Context, t port.StatusTransition) (bool, error)
	listErr        error
}

func newMemVoucherRepo(vouchers ...*entity.Voucher) *memVoucherRepo {
	m := &memVoucherRepo{vouchers: make(map[string]*entity.Voucher)}
	for _, v := range vouchers {
		m.vouchers[v.ID] = v
	}
	return m
}

func (m *memVoucherRepo) Create(ctx context.Context, v *entity.Voucher) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, v); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.vouchers {
		if existing.VoucherNumber == v.VoucherNumber {
			return port.ErrDuplicateVoucherNumber
		}
		if existing.BookingID == v.BookingID && existing.BookingType == v.BookingType &&
			existing.Status != entity.VoucherStatusCancelled {
			return port.ErrDuplicateBooking
		}
	}
	c := *v
	m.vouchers[v.ID] = &c
	return nil
}

func (m *memVoucherRepo) GetByID(ctx context.Context, id string) (*entity.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.vouchers[id]; ok {
		c := *v
		return &c, nil
	}
	return nil, nil
}

func (m *memVoucherRepo) find(match func(v *entity.Voucher) bool) *entity.Voucher {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vouchers {
		if match(v) {
			c := *v
			return &c
		}
	}
	return nil
}

func (m *memVoucherRepo) GetByNumber(ctx context.Context, number string) (*entity.Voucher, error) {
	return m.find(func(v *entity.Voucher) bool { return v.VoucherNumber == number }), nil
}

func (m *memVoucherRepo) GetByConfirmationCode(ctx context.Context, code string) (*entity.Voucher, error) {
	return m.find(func(v *entity.Voucher) bool { return v.ConfirmationCode == code }), nil
}

func (m *memVoucherRepo) FindOpenByBooking(ctx context.Context, bookingID string, bookingType entity.BookingType) (*entity.Voucher, error) {
	return m.find(func(v *entity.Voucher) bool {
		return v.BookingID == bookingID && v.BookingType == bookingType && v.Status != entity.VoucherStatusCancelled
	}), nil
}

func (m *memVoucherRepo) TransitionStatus(ctx context.Context, t port.StatusTransition) (bool, error) {
	if m.transitionFunc != nil {
		return m.transitionFunc(ctx, t)
	}
	return m.applyTransition(t), nil
}

// applyTransition is the compare-and-set used when no override is installed
func (m *memVoucherRepo) applyTransition(t port.StatusTransition) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[t.VoucherID]
	if !ok || v.Status != t.From {
		return false
	}
	at := t.At
	v.Status = t.To
	v.UpdatedAt = at
	switch t.To {
	case entity.VoucherStatusUsed:
		v.UsedAt, v.UsedBy = &at, t.ActorID
	case entity.VoucherStatusCancelled:
		v.CancelledAt, v.CancelledBy, v.CancelReason = &at, t.ActorID, t.Reason
	case entity.VoucherStatusExpired:
		v.ExpiredAt = &at
	}
	return true
}

func (m *memVoucherRepo) SetDocumentRef(ctx context.Context, id, ref string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[id]
	if !ok || v.DocumentRef != "" {
		return false, nil
	}
	v.DocumentRef = ref
	return true, nil
}

func (m *memVoucherRepo) ListLapsedActiveIDs(ctx context.Context, now time.Time, afterID string, limit int) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, v := range m.vouchers {
		if v.Status == entity.VoucherStatusActive && v.ValidUntil.Before(now) && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type memUsageRepo struct {
	mu        sync.Mutex
	entries   []*entity.UsageLogEntry
	appendErr error
}

func (m *memUsageRepo) Append(ctx context.Context, entry *entity.UsageLogEntry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memUsageRepo) ListByVoucher(ctx context.Context, voucherID string, limit int) ([]*entity.UsageLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.UsageLogEntry
	for _, e := range m.entries {
		if e.VoucherID == voucherID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memPartnerRepo struct {
	mu       sync.Mutex
	partners map[string]*entity.Partner
	getErr   error
}

func newMemPartnerRepo(partners ...*entity.Partner) *memPartnerRepo {
	m := &memPartnerRepo{partners: make(map[string]*entity.Partner)}
	for _, p := range partners {
		m.partners[p.ID] = p
	}
	return m
}

func (m *memPartnerRepo) GetByID(ctx context.Context, id string) (*entity.Partner, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partners[id], nil
}

func (m *memPartnerRepo) Upsert(ctx context.Context, p *entity.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.partners[p.ID] = &c
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) ofType(t event.Type) []*event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*event.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingMetrics struct {
	port.NopMetrics
	mu            sync.Mutex
	issued        int
	verifications []string
	usageFailures int
	sweeps        int
}

func (m *recordingMetrics) VoucherIssued(entity.BookingType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
}

func (m *recordingMetrics) Verification(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, outcome)
}

func (m *recordingMetrics) UsageLogFailed(entity.UsageAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usageFailures++
}

func (m *recordingMetrics) SweepCompleted(int, int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
}

type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (s *memStorage) Save(ctx context.Context, path string, content []byte) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	return nil
}

func (s *memStorage) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return content, nil
}

func (s *memStorage) Exists(ctx context.Context, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *memStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *memStorage) GetFullPath(relativePath string) string {
	return "/mem/" + relativePath
}

type countingRenderer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRenderer) Render(ctx context.Context, doc *port.VoucherDocument) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF " + doc.Voucher.VoucherNumber), nil
}

func (r *countingRenderer) Extension() string   { return ".pdf" }
func (r *countingRenderer) ContentType() string { return "application/pdf" }

// Actors

func identityActor(role entity.Role, userID, partnerID, email string) entity.Actor {
	return entity.Actor{
		Identity:  &entity.Identity{UserID: userID, Role: role, PartnerID: partnerID, Email: email},
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	}
}

var (
	masterActor    = identityActor(entity.RoleMaster, "master-1", "", "")
	employeeActor  = identityActor(entity.RoleEmployee, "employee-1", "", "")
	partnerAActor  = identityActor(entity.RolePartner, "partner-user-a", "partner-a", "")
	partnerBActor  = identityActor(entity.RolePartner, "partner-user-b", "partner-b", "")
	customerActor  = identityActor(entity.RoleCustomer, "customer-1", "", "jane@example.com")
	strangerActor  = identityActor(entity.RoleCustomer, "customer-2", "", "john@example.com")
	anonymousActor = entity.Actor{IPAddress: "10.0.0.9"}
)

var (
	testNow    = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	testSecret = []byte("0123456789abcdef0123456789abcdef")
)

func activeVoucher(id, number string) *entity.Voucher {
	return &entity.Voucher{
		ID:               id,
		VoucherNumber:    number,
		BookingID:        "booking-" + id,
		BookingType:      entity.BookingTypeActivity,
		Status:           entity.VoucherStatusActive,
		ValidFrom:        testNow.Add(-time.Hour),
		ValidUntil:       testNow.Add(3 * time.Hour),
		PartnerID:        "partner-a",
		ConfirmationCode: "CONF-" + strings.ToUpper(id),
		Customer:         entity.CustomerInfo{Name: "Jane Doe", Email: "jane@example.com"},
		Asset:            entity.AssetInfo{ID: "asset-1", Name: "Harbour Cruise"},
		CreatedAt:        testNow.Add(-24 * time.Hour),
		UpdatedAt:        testNow.Add(-24 * time.Hour),
	}
}

// fixture wires the services over in-memory collaborators and a real lifecycle engine
type fixture struct {
	vouchers  *memVoucherRepo
	partners  *memPartnerRepo
	publisher *recordingPublisher
	metrics   *recordingMetrics
	clock     *fakeClock
	signer    *token.Signer
	engine    workflow.LifecycleEngine

	lookup     LookupService
	redemption RedemptionService
}

func newFixture(t *testing.T, vouchers ...*entity.Voucher) *fixture {
	t.Helper()

	signer, err := token.NewSigner(testSecret)
	require.NoError(t, err)

	f := &fixture{
		vouchers:  newMemVoucherRepo(vouchers...),
		partners:  newMemPartnerRepo(&entity.Partner{ID: "partner-a", Name: "Harbour Tours"}),
		publisher: &recordingPublisher{},
		metrics:   &recordingMetrics{},
		clock:     &fakeClock{now: testNow},
		signer:    signer,
	}
	f.engine = workflow.NewEngine(f.vouchers, passthroughTx{},
		workflow.WithPublisher(f.publisher),
		workflow.WithClock(f.clock),
	)
	f.lookup = NewLookupService(f.vouchers, f.partners, f.engine, signer, f.publisher, f.clock, f.metrics, NopLogger{})
	f.redemption = NewRedemptionService(f.lookup, f.engine, signer, f.clock, time.Hour, NopLogger{})
	return f
}

func (f *fixture) stored(t *testing.T, id string) *entity.Voucher {
	t.Helper()
	v, err := f.vouchers.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}
