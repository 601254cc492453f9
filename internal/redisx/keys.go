package redisx

import "time"

const (
	// Status cache for request/order GET fast path:
	// request_status:{id} / order_status:{id} -> JSON blob with status + owner ids.
	KeyRequestStatus = "request_status:%d"
	KeyOrderStatus   = "order_status:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
