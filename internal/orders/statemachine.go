package orders

import (
	"fmt"

	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusCreated:        {enums.OrderStatusPlaced, enums.OrderStatusCancelled, enums.OrderStatusFailed},
	enums.OrderStatusPlaced:         {enums.OrderStatusConfirmed, enums.OrderStatusCancelled, enums.OrderStatusOnHold, enums.OrderStatusFailed},
	enums.OrderStatusConfirmed:      {enums.OrderStatusShipped, enums.OrderStatusCancelled, enums.OrderStatusOnHold},
	enums.OrderStatusShipped:        {enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered, enums.OrderStatusReturned},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered, enums.OrderStatusReturned, enums.OrderStatusOnHold},
	enums.OrderStatusDelivered:      {enums.OrderStatusReturned, enums.OrderStatusRefunded},
	enums.OrderStatusReturned:       {enums.OrderStatusRefunded},
	enums.OrderStatusOnHold:         {enums.OrderStatusPlaced, enums.OrderStatusConfirmed, enums.OrderStatusCancelled, enums.OrderStatusFailed},
	enums.OrderStatusCancelled:      {enums.OrderStatusRefunded},
}

// CanTransition reports whether from -> to is a legal order status move.
// Staying in the same state is always allowed and treated as a no-op.
func CanTransition(from, to enums.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to enums.OrderStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot move from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

// cancellable lists the states a customer may cancel from.
var cancellable = map[enums.OrderStatus]struct{}{
	enums.OrderStatusCreated:   {},
	enums.OrderStatusPlaced:    {},
	enums.OrderStatusConfirmed: {},
}
