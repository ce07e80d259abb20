// pdp/model/cache.go
package model

import "time"

// CachedDecision is the portion of an evaluation that is safe to replay for
// an identical request within the TTL window. DENY results are never cached.
type CachedDecision struct {
	Decision    Decision      `json:"decision"`
	Band        Band          `json:"band"`
	Reasons     []string      `json:"reasons,omitempty"`
	Obligations ObligationSet `json:"obligations"`
}

type CacheEntry struct {
	KeyHash    string         `json:"key_hash"`
	Value      CachedDecision `json:"value"`
	InsertedAt time.Time      `json:"inserted_at"`
	TTL        time.Duration  `json:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed at the given time.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.After(e.InsertedAt.Add(e.TTL))
}
