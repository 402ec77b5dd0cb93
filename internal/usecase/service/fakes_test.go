package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rentpay/internal/apperr"
	"rentpay/internal/config"
	"rentpay/internal/entity"
	"rentpay/internal/processor"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Currency = "usd"
	cfg.Stripe.SuccessURL = "https://rentpay.test/success"
	cfg.Stripe.CancelURL = "https://rentpay.test/cancel"
	return cfg
}

type fakePayments struct {
	mu   sync.Mutex
	rows map[string]*entity.Payment
}

func newFakePayments() *fakePayments {
	return &fakePayments{rows: make(map[string]*entity.Payment)}
}

func (f *fakePayments) Create(ctx context.Context, p *entity.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakePayments) GetByID(ctx context.Context, paymentID string) (*entity.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", paymentID, apperr.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) GetByPaymentIntent(ctx context.Context, intentID string) (*entity.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.PaymentIntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("payment for intent %s: %w", intentID, apperr.ErrNotFound)
}

func (f *fakePayments) FindOrCreatePendingBookingPayment(ctx context.Context, p *entity.Payment) (*entity.Payment, bool, error) {
	if err := p.Validate(); err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.Type == entity.TypeBooking && existing.BookingID == p.BookingID && existing.Status == entity.StatusPending {
			cp := *existing
			return &cp, false, nil
		}
	}
	cp := *p
	f.rows[p.ID] = &cp
	out := cp
	return &out, true, nil
}

func (f *fakePayments) AttachCheckoutSession(ctx context.Context, paymentID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[paymentID]
	if !ok {
		return apperr.ErrNotFound
	}
	p.CheckoutSessionID = sessionID
	return nil
}

func (f *fakePayments) MarkPaid(ctx context.Context, paymentID, paymentIntentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[paymentID]
	if !ok || p.Status != entity.StatusPending {
		return false, nil
	}
	p.Status = entity.StatusPaid
	if paymentIntentID != "" {
		p.PaymentIntentID = paymentIntentID
	}
	return true, nil
}

func (f *fakePayments) MarkFailed(ctx context.Context, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[paymentID]
	if !ok || p.Status != entity.StatusPending {
		return false, nil
	}
	p.Status = entity.StatusFailed
	return true, nil
}

func (f *fakePayments) AppendRefund(ctx context.Context, paymentID string, entry entity.RefundEntry, status entity.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[paymentID]
	if !ok {
		return apperr.ErrNotFound
	}
	p.Refunds = append(p.Refunds, entry)
	p.Status = status
	return nil
}

func (f *fakePayments) byBooking(bookingID string) []*entity.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Payment
	for _, p := range f.rows {
		if p.BookingID == bookingID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fakePayments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeBookings struct {
	mu          sync.Mutex
	rows        map[string]*entity.Booking
	statusCalls int
	statusErr   error // returned by the next SetPaymentStatus, then cleared
}

func newFakeBookings(bookings ...*entity.Booking) *fakeBookings {
	f := &fakeBookings{rows: make(map[string]*entity.Booking)}
	for _, b := range bookings {
		f.rows[b.ID] = b
	}
	return f
}

func (f *fakeBookings) GetByID(ctx context.Context, bookingID string) (*entity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[bookingID]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) SetPaymentStatus(ctx context.Context, bookingID string, status entity.BookingPaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		err := f.statusErr
		f.statusErr = nil
		return err
	}
	b, ok := f.rows[bookingID]
	if !ok {
		return apperr.ErrNotFound
	}
	b.PaymentStatus = status
	f.statusCalls++
	return nil
}

type fakeUsers struct {
	mu               sync.Mutex
	rows             map[string]*entity.User
	entitlementCalls int
	entitlementErr   error // returned by the next SetEntitlement, then cleared
}

func newFakeUsers(users ...*entity.User) *fakeUsers {
	f := &fakeUsers{rows: make(map[string]*entity.User)}
	for _, u := range users {
		f.rows[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, userID string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByStripeAccount(ctx context.Context, accountID string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.StripeAccountID == accountID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user for account %s: %w", accountID, apperr.ErrNotFound)
}

func (f *fakeUsers) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	u.StripeCustomerID = customerID
	return nil
}

func (f *fakeUsers) SetOnboarding(ctx context.Context, userID string, flags entity.OnboardingFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	u.OnboardingFlags = flags
	return nil
}

func (f *fakeUsers) SetEntitlement(ctx context.Context, userID, planID string, startsAt, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entitlementErr != nil {
		err := f.entitlementErr
		f.entitlementErr = nil
		return err
	}
	u, ok := f.rows[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	u.SubscriptionActive = true
	u.SubscriptionPlanID = planID
	u.SubscriptionStartsAt = &startsAt
	u.SubscriptionExpiresAt = &expiresAt
	f.entitlementCalls++
	return nil
}

type fakePlans struct {
	rows map[string]*entity.SubscriptionPlan
}

func newFakePlans(plans ...*entity.SubscriptionPlan) *fakePlans {
	f := &fakePlans{rows: make(map[string]*entity.SubscriptionPlan)}
	for _, p := range plans {
		f.rows[p.ID] = p
	}
	return f
}

func (f *fakePlans) GetByID(ctx context.Context, planID string) (*entity.SubscriptionPlan, error) {
	p, ok := f.rows[planID]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", planID, apperr.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

type fakeListings struct {
	rows map[string]*entity.Listing
}

func newFakeListings(listings ...*entity.Listing) *fakeListings {
	f := &fakeListings{rows: make(map[string]*entity.Listing)}
	for _, l := range listings {
		f.rows[l.ID] = l
	}
	return f
}

func (f *fakeListings) GetByID(ctx context.Context, listingID string) (*entity.Listing, error) {
	l, ok := f.rows[listingID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", listingID, apperr.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

type fakeDisputes struct {
	mu   sync.Mutex
	rows map[string]*entity.Dispute
}

func newFakeDisputes(disputes ...*entity.Dispute) *fakeDisputes {
	f := &fakeDisputes{rows: make(map[string]*entity.Dispute)}
	for _, d := range disputes {
		f.rows[d.ID] = d
	}
	return f
}

func (f *fakeDisputes) GetByID(ctx context.Context, disputeID string) (*entity.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[disputeID]
	if !ok {
		return nil, fmt.Errorf("dispute %s: %w", disputeID, apperr.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDisputes) AppendTimeline(ctx context.Context, disputeID string, entry entity.TimelineEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[disputeID]
	if !ok {
		return apperr.ErrNotFound
	}
	d.Timeline = append(d.Timeline, entry)
	return nil
}

// fakeProcessor records calls and hands back canned responses. Sessions are
// keyed by idempotency key so retried creates resolve to the same session,
// mirroring the real processor contract.
type fakeProcessor struct {
	mu            sync.Mutex
	sessionsByKey map[string]*processor.Session
	checkoutCalls []processor.CheckoutParams
	setupCalls    []processor.SetupParams
	subCalls      []processor.SubscriptionParams
	customerCalls int
	methods       []processor.PaymentMethod
	methodsErr    error
	chargeResult  *processor.ChargeResult
	chargeErr     error
	chargeCalls   []processor.OffSessionCharge
	account       *processor.Account
	accountErr    error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{sessionsByKey: make(map[string]*processor.Session)}
}

func (f *fakeProcessor) sessionFor(key string) *processor.Session {
	if s, ok := f.sessionsByKey[key]; ok {
		return s
	}
	s := &processor.Session{
		ID:  fmt.Sprintf("cs_%d", len(f.sessionsByKey)+1),
		URL: fmt.Sprintf("https://checkout.test/%s", key),
	}
	f.sessionsByKey[key] = s
	return s
}

func (f *fakeProcessor) CreateCheckoutSession(ctx context.Context, p processor.CheckoutParams) (*processor.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkoutCalls = append(f.checkoutCalls, p)
	return f.sessionFor(p.IdempotencyKey), nil
}

func (f *fakeProcessor) CreateSetupSession(ctx context.Context, p processor.SetupParams) (*processor.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupCalls = append(f.setupCalls, p)
	return &processor.Session{ID: "cs_setup", URL: "https://checkout.test/setup"}, nil
}

func (f *fakeProcessor) CreateSubscriptionSession(ctx context.Context, p processor.SubscriptionParams) (*processor.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCalls = append(f.subCalls, p)
	return f.sessionFor(p.IdempotencyKey), nil
}

func (f *fakeProcessor) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerCalls++
	return fmt.Sprintf("cus_%s", userID), nil
}

func (f *fakeProcessor) ListPaymentMethods(ctx context.Context, customerID string) ([]processor.PaymentMethod, error) {
	return f.methods, f.methodsErr
}

func (f *fakeProcessor) ChargeOffSession(ctx context.Context, p processor.OffSessionCharge) (*processor.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chargeCalls = append(f.chargeCalls, p)
	return f.chargeResult, f.chargeErr
}

func (f *fakeProcessor) GetAccount(ctx context.Context, accountID string) (*processor.Account, error) {
	return f.account, f.accountErr
}

func (f *fakeProcessor) VerifyEvent(payload []byte, sigHeader string, endpoint processor.Endpoint) (*processor.Event, error) {
	return nil, fmt.Errorf("not used in service tests")
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, userID, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}
