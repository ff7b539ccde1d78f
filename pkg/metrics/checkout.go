package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckoutMetrics tracks order placement, coupon decisions and payment webhooks.
type CheckoutMetrics struct {
	ordersPlaced   *prometheus.CounterVec
	couponRejected *prometheus.CounterVec
	webhooks       *prometheus.CounterVec
	paymentStatus  *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	c := &collectors{reg: reg}
	m := &CheckoutMetrics{
		ordersPlaced:   c.counter("checkout_orders_placed_total", "Orders persisted by checkout, by payment method.", "payment_method"),
		couponRejected: c.counter("checkout_coupon_rejections_total", "Coupon previews rejected, by reason.", "reason"),
		webhooks:       c.counter("payments_webhook_requests_total", "Payment webhook deliveries, by result.", "result"),
		paymentStatus:  c.counter("payments_status_updates_total", "Order payment status updates, by resulting status.", "status"),
	}
	c.register()
	return m
}

func (m *CheckoutMetrics) IncOrderPlaced(paymentMethod string) {
	if m != nil {
		bump(m.ordersPlaced, 1, paymentMethod)
	}
}

func (m *CheckoutMetrics) IncCouponRejected(reason string) {
	if m != nil {
		bump(m.couponRejected, 1, reason)
	}
}

func (m *CheckoutMetrics) IncWebhook(result string) {
	if m != nil {
		bump(m.webhooks, 1, result)
	}
}

func (m *CheckoutMetrics) IncPaymentStatus(status string) {
	if m != nil {
		bump(m.paymentStatus, 1, status)
	}
}
