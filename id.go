package mqadapter

import "github.com/google/uuid"

// randomHex16 returns a 16 hex-character random token, used for request_id
// (spec §4.6), the reply queue's random suffix (spec §4.4), and auto-created
// event-processor queue names (spec §9). Built on google/uuid rather than a
// hand-rolled crypto/rand+hex helper, matching the rest of the retrieval
// pack's preference for a vetted id library.
func randomHex16() string {
	raw := uuid.New().String()
	hex := make([]byte, 0, 32)
	for _, r := range raw {
		if r == '-' {
			continue
		}
		hex = append(hex, byte(r))
	}
	return string(hex[:16])
}
