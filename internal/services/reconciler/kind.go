package reconciler

// Kind закрытый набор событий, которые понимает сервис.
// Любой другой тип события попадает в KindIgnored.
type Kind int

const (
	KindIgnored Kind = iota
	KindCheckoutCompleted
	KindSubscriptionUpdated
	KindSubscriptionDeleted
	KindInvoicePaid
	KindInvoicePaymentFailed
)

var kindByType = map[string]Kind{
	"checkout.session.completed":    KindCheckoutCompleted,
	"customer.subscription.updated": KindSubscriptionUpdated,
	"customer.subscription.deleted": KindSubscriptionDeleted,
	"invoice.paid":                  KindInvoicePaid,
	"invoice.payment_failed":        KindInvoicePaymentFailed,
}

// Classify возвращает вид события по его типу.
func Classify(eventType string) Kind {
	if k, ok := kindByType[eventType]; ok {
		return k
	}
	return KindIgnored
}

func (k Kind) String() string {
	switch k {
	case KindCheckoutCompleted:
		return "checkout_completed"
	case KindSubscriptionUpdated:
		return "subscription_updated"
	case KindSubscriptionDeleted:
		return "subscription_deleted"
	case KindInvoicePaid:
		return "invoice_paid"
	case KindInvoicePaymentFailed:
		return "invoice_payment_failed"
	default:
		return "ignored"
	}
}
