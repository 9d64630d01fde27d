package ledger

// Keyspace layout:
// - gis/c/{customerId}  per-account quantity, decimal ASCII
// - gis/cache/fill      cached overall fill level
// - gis/cache/max       cached maximum fill level

var (
	quantityPrefix = []byte("gis/c/")
	keyCachedFill  = []byte("gis/cache/fill")
	keyCachedMax   = []byte("gis/cache/max")
)

func keyQuantity(customerID string) []byte {
	k := make([]byte, 0, len(quantityPrefix)+len(customerID))
	k = append(k, quantityPrefix...)
	k = append(k, customerID...)
	return k
}
