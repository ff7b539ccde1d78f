package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	"github.com/angelmondragon/partsdirect-backend/pkg/types"
)

// Order inserts a placed, unpaid card order of 10000 cents. mutate may adjust
// any field before the insert; totals must keep satisfying the grand total check.
func Order(t testing.TB, conn *gorm.DB, mutate func(*models.Order)) *models.Order {
	t.Helper()
	now := time.Now().UTC()
	id := uuid.New()
	order := &models.Order{
		ID:                id,
		OrderNumber:       "ORD-TEST-" + id.String()[:8],
		UserID:            uuid.New(),
		ShippingAddressID: uuid.New(),
		BillingAddressID:  uuid.New(),
		ShippingAddress:   types.Address{Name: "Test", Line1: "1 Main St", City: "Bengaluru", State: "KA", PostalCode: "560001", Country: "IN"},
		SubtotalCents:     10000,
		GrandTotalCents:   10000,
		PaymentMethod:     enums.PaymentMethodCard,
		PaymentStatus:     enums.PaymentStatusPending,
		OrderStatus:       enums.OrderStatusPlaced,
		PlacedAt:          now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if mutate != nil {
		mutate(order)
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}
