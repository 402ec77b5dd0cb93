package webhook

// EventKind is the closed set of processor events this core reacts to.
// Anything that maps to KindUnknown is acknowledged and ignored, never
// retried.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindCheckoutSessionCompleted
	KindCheckoutSessionExpired
	KindPaymentIntentFailed
	KindChargeRefunded
	KindAccountUpdated
	KindCapabilityUpdated
)

func (k EventKind) String() string {
	switch k {
	case KindCheckoutSessionCompleted:
		return "checkout.session.completed"
	case KindCheckoutSessionExpired:
		return "checkout.session.expired"
	case KindPaymentIntentFailed:
		return "payment_intent.payment_failed"
	case KindChargeRefunded:
		return "charge.refunded"
	case KindAccountUpdated:
		return "account.updated"
	case KindCapabilityUpdated:
		return "capability.updated"
	default:
		return "unknown"
	}
}

// KindOf classifies a processor event type string.
func KindOf(eventType string) EventKind {
	switch eventType {
	case "checkout.session.completed":
		return KindCheckoutSessionCompleted
	case "checkout.session.expired":
		return KindCheckoutSessionExpired
	case "payment_intent.payment_failed":
		return KindPaymentIntentFailed
	case "charge.refunded":
		return KindChargeRefunded
	case "account.updated":
		return KindAccountUpdated
	case "capability.updated":
		return KindCapabilityUpdated
	default:
		return KindUnknown
	}
}
