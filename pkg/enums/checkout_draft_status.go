package enums

// CheckoutDraftStatus tracks an in-progress checkout session.
type CheckoutDraftStatus string

const (
	CheckoutDraftStatusActive    CheckoutDraftStatus = "active"
	CheckoutDraftStatusCompleted CheckoutDraftStatus = "completed"
	CheckoutDraftStatusExpired   CheckoutDraftStatus = "expired"
)

var validCheckoutDraftStatuses = []CheckoutDraftStatus{
	CheckoutDraftStatusActive,
	CheckoutDraftStatusCompleted,
	CheckoutDraftStatusExpired,
}

func (s CheckoutDraftStatus) String() string {
	return string(s)
}

func (s CheckoutDraftStatus) IsValid() bool {
	return oneOf(s, validCheckoutDraftStatuses)
}

func ParseCheckoutDraftStatus(value string) (CheckoutDraftStatus, error) {
	return parse("checkout draft status", value, validCheckoutDraftStatuses)
}
