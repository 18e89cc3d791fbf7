package cache

import "time"

// Entry is a captured response.
//
// Entries are immutable once stored. The Store hands out copies, so callers
// may modify what they receive without affecting the stored record.
type Entry struct {
	// Payload is the response body exactly as the handler wrote it.
	Payload []byte

	// CapturedAt is when the entry was stored. It carries the monotonic
	// clock reading from time.Now, so wall clock adjustments do not move it.
	CapturedAt time.Time

	// Headers holds the allow-listed response headers, one value each.
	Headers map[string]string

	// Route is the routePath passed to Set. It labels expiration metrics
	// and is otherwise informational; expiry is decided by the routePath
	// passed to Get. The Middleware stores the route pattern here, not the
	// raw request path.
	Route string
}

// Age returns how long ago the entry was captured, relative to now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CapturedAt)
}

func (e Entry) clone() Entry {
	out := e
	if e.Payload != nil {
		out.Payload = append([]byte(nil), e.Payload...)
	}
	out.Headers = cloneHeaders(e.Headers)
	return out
}

func cloneHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
