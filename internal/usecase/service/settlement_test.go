package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"rentpay/internal/entity"
)

func newSettlementFixture(t *testing.T) (*SettlementService, *fakePayments, *fakeBookings, *fakeUsers, *fakeNotifier) {
	t.Helper()
	payments := newFakePayments()
	bookings := newFakeBookings(&entity.Booking{
		ID:            "bkg-1",
		ListingID:     "lst-1",
		CustomerID:    "usr-cust",
		LenderID:      "usr-lend",
		PaymentStatus: entity.BookingUnpaid,
	})
	users := newFakeUsers(&entity.User{ID: "usr-lend", Role: entity.RoleLender})
	plans := newFakePlans(&entity.SubscriptionPlan{
		ID: "plan-pro", Name: "Pro", Price: 29.99, Currency: "usd",
		BillingCycle: entity.CycleYearly, IsActive: true,
	})
	notifier := &fakeNotifier{}

	svc := NewSettlementService(payments, bookings, users, plans, notifier, zap.NewNop())
	return svc, payments, bookings, users, notifier
}

func pendingBookingPayment(t *testing.T, payments *fakePayments) *entity.Payment {
	t.Helper()
	p := &entity.Payment{
		ID:         "pay-1",
		Type:       entity.TypeBooking,
		BookingID:  "bkg-1",
		CustomerID: "usr-cust",
		Amount:     115,
		Currency:   "usd",
		Status:     entity.StatusPending,
	}
	assert.NoError(t, payments.Create(context.Background(), p))
	return p
}

func TestSettleBookingPayment_ReplayConverges(t *testing.T) {
	svc, payments, bookings, _, _ := newSettlementFixture(t)
	ctx := context.Background()
	pendingBookingPayment(t, payments)

	assert.NoError(t, svc.SettleBookingPayment(ctx, "pay-1", "pi_1"))
	assert.NoError(t, svc.SettleBookingPayment(ctx, "pay-1", "pi_1"))

	p, _ := payments.GetByID(ctx, "pay-1")
	assert.Equal(t, entity.StatusPaid, p.Status)
	assert.Equal(t, "pi_1", p.PaymentIntentID)
	assert.Equal(t, entity.BookingPaid, bookings.rows["bkg-1"].PaymentStatus)
	assert.Equal(t, 1, bookings.statusCalls, "replay must not rewrite the booking")
}

func TestActivateSubscription_AtMostOnce(t *testing.T) {
	svc, payments, _, users, notifier := newSettlementFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	assert.NoError(t, payments.Create(ctx, &entity.Payment{
		ID: "pay-sub", Type: entity.TypeSubscription, PlanID: "plan-pro",
		CustomerID: "usr-lend", Amount: 29.99, Currency: "usd", Status: entity.StatusPending,
	}))

	assert.NoError(t, svc.ActivateSubscription(ctx, "pay-sub", "plan-pro", "usr-lend", "pi_sub"))
	assert.NoError(t, svc.ActivateSubscription(ctx, "pay-sub", "plan-pro", "usr-lend", "pi_sub"))

	user := users.rows["usr-lend"]
	assert.True(t, user.SubscriptionActive)
	assert.Equal(t, now.Add(365*24*time.Hour), *user.SubscriptionExpiresAt)
	assert.Equal(t, 1, users.entitlementCalls, "activation happens at most once")
	assert.Equal(t, 1, notifier.calls)
}

func TestSettleBookingPayment_RedeliveryAfterLostBookingWrite(t *testing.T) {
	svc, payments, bookings, _, _ := newSettlementFixture(t)
	ctx := context.Background()
	pendingBookingPayment(t, payments)

	// First delivery wins the Pending->Paid transition but loses the booking
	// write mid-handler; the processor redelivers.
	bookings.statusErr = assert.AnError
	assert.Error(t, svc.SettleBookingPayment(ctx, "pay-1", "pi_1"))
	assert.Equal(t, entity.BookingUnpaid, bookings.rows["bkg-1"].PaymentStatus)

	assert.NoError(t, svc.SettleBookingPayment(ctx, "pay-1", "pi_1"))
	p, _ := payments.GetByID(ctx, "pay-1")
	assert.Equal(t, entity.StatusPaid, p.Status)
	assert.Equal(t, entity.BookingPaid, bookings.rows["bkg-1"].PaymentStatus)
}

func TestActivateSubscription_RedeliveryAfterLostEntitlement(t *testing.T) {
	svc, payments, _, users, notifier := newSettlementFixture(t)
	ctx := context.Background()

	assert.NoError(t, payments.Create(ctx, &entity.Payment{
		ID: "pay-sub", Type: entity.TypeSubscription, PlanID: "plan-pro",
		CustomerID: "usr-lend", Amount: 29.99, Currency: "usd", Status: entity.StatusPending,
	}))

	users.entitlementErr = assert.AnError
	assert.Error(t, svc.ActivateSubscription(ctx, "pay-sub", "plan-pro", "usr-lend", "pi_sub"))
	assert.False(t, users.rows["usr-lend"].SubscriptionActive)

	// The payment is Paid but the grant was lost; the replay re-applies it.
	assert.NoError(t, svc.ActivateSubscription(ctx, "pay-sub", "plan-pro", "usr-lend", "pi_sub"))
	assert.True(t, users.rows["usr-lend"].SubscriptionActive)
	assert.Equal(t, 1, users.entitlementCalls)
	assert.Equal(t, 1, notifier.calls)
}

func TestFailPayment_OnlyTransitionsPending(t *testing.T) {
	svc, payments, _, _, _ := newSettlementFixture(t)
	ctx := context.Background()
	pendingBookingPayment(t, payments)

	assert.NoError(t, svc.FailPayment(ctx, "pay-1"))
	p, _ := payments.GetByID(ctx, "pay-1")
	assert.Equal(t, entity.StatusFailed, p.Status)

	// Failing again, or after settlement, is a no-op.
	assert.NoError(t, svc.FailPayment(ctx, "pay-1"))
	p, _ = payments.GetByID(ctx, "pay-1")
	assert.Equal(t, entity.StatusFailed, p.Status)
}

func TestFailPaymentByIntent_UnknownIntentIgnored(t *testing.T) {
	svc, _, _, _, _ := newSettlementFixture(t)
	assert.NoError(t, svc.FailPaymentByIntent(context.Background(), "pi_foreign"))
}

func TestRecordRefund_AppendsAndDeduplicates(t *testing.T) {
	svc, payments, bookings, _, _ := newSettlementFixture(t)
	ctx := context.Background()
	pendingBookingPayment(t, payments)
	assert.NoError(t, svc.SettleBookingPayment(ctx, "pay-1", "pi_1"))

	assert.NoError(t, svc.RecordRefund(ctx, "pi_1", "re_1", 15))
	assert.NoError(t, svc.RecordRefund(ctx, "pi_1", "re_1", 15))

	p, _ := payments.GetByID(ctx, "pay-1")
	assert.Len(t, p.Refunds, 1, "replayed refund must not append twice")
	assert.Equal(t, entity.StatusPaid, p.Status, "partial refund keeps Paid")
	assert.Equal(t, entity.BookingPaid, bookings.rows["bkg-1"].PaymentStatus)
}

func TestRecordRefund_FullRefundFlipsStatus(t *testing.T) {
	svc, payments, bookings, _, _ := newSettlementFixture(t)
	ctx := context.Background()
	pendingBookingPayment(t, payments)
	_, err := payments.MarkPaid(ctx, "pay-1", "pi_1")
	assert.NoError(t, err)

	assert.NoError(t, svc.RecordRefund(ctx, "pi_1", "re_1", 15))
	assert.NoError(t, svc.RecordRefund(ctx, "pi_1", "re_2", 100))

	p, _ := payments.GetByID(ctx, "pay-1")
	assert.Len(t, p.Refunds, 2)
	assert.Equal(t, entity.StatusRefunded, p.Status)
	assert.Equal(t, entity.BookingRefunded, bookings.rows["bkg-1"].PaymentStatus)
}

func TestRecordRefund_RedeliveryAfterLostBookingWrite(t *testing.T) {
	svc, payments, bookings, _, _ := newSettlementFixture(t)
	ctx := context.Background()
	pendingBookingPayment(t, payments)
	assert.NoError(t, svc.SettleBookingPayment(ctx, "pay-1", "pi_1"))

	// The append lands but the booking write is lost; the replay must not be
	// swallowed by the refund-id dedup.
	bookings.statusErr = assert.AnError
	assert.Error(t, svc.RecordRefund(ctx, "pi_1", "re_1", 115))
	assert.Equal(t, entity.BookingPaid, bookings.rows["bkg-1"].PaymentStatus)

	assert.NoError(t, svc.RecordRefund(ctx, "pi_1", "re_1", 115))
	p, _ := payments.GetByID(ctx, "pay-1")
	assert.Len(t, p.Refunds, 1, "replay converges the booking without a second append")
	assert.Equal(t, entity.StatusRefunded, p.Status)
	assert.Equal(t, entity.BookingRefunded, bookings.rows["bkg-1"].PaymentStatus)
}

func TestRecordRefund_UnknownIntentIgnored(t *testing.T) {
	svc, payments, _, _, _ := newSettlementFixture(t)
	assert.NoError(t, svc.RecordRefund(context.Background(), "pi_foreign", "re_x", 10))
	assert.Zero(t, payments.count())
}
