// File: internal/infra/markers/gateway_marker.go
package markers

import (
	"context"

	"stripe-invoice-bridge/internal/domain/ports/adapter"
	"stripe-invoice-bridge/internal/domain/ports/repository"
)

var _ repository.MarkerStore = (*GatewayMarkerStore)(nil)

// GatewayMarkerStore keeps idempotency markers in the payment record's
// metadata bag at the gateway. Markers ride along with the payment itself,
// so they survive anything short of the gateway losing the payment — which
// is exactly the durability the "marker before mirror" contract needs.
type GatewayMarkerStore struct {
	gateway adapter.PaymentGateway
}

func NewGatewayMarkerStore(gateway adapter.PaymentGateway) *GatewayMarkerStore {
	return &GatewayMarkerStore{gateway: gateway}
}

// Get re-fetches the payment; the metadata bag on a cached snapshot may be
// stale relative to a concurrent invocation's write.
func (s *GatewayMarkerStore) Get(ctx context.Context, paymentID, key string) (string, bool, error) {
	pay, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return "", false, err
	}
	v, ok := pay.Metadata[key]
	return v, ok && v != "", nil
}

// Set merges the single marker into the bag; the gateway preserves keys not
// named in the update. Last-writer-wins, no conditional write.
func (s *GatewayMarkerStore) Set(ctx context.Context, paymentID, key, value string) error {
	return s.gateway.SetMetadata(ctx, paymentID, map[string]string{key: value})
}
