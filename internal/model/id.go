package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CanonicalID derives the stable, provenance-prefixed identifier used across
// all three stores. It is a pure function of (prefix, sourceKey): re-ingesting
// the same row always yields the same ID, which makes every upsert idempotent.
func CanonicalID(prefix, sourceKey string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(sourceKey))))
	return prefix + ":" + hex.EncodeToString(sum[:])[:16]
}

// CompanyID derives a company's canonical ID from its source tag and key.
func CompanyID(source, sourceKey string) string {
	return CanonicalID("co-"+source, sourceKey)
}

// PersonID derives a person's canonical ID from its source tag and key.
func PersonID(source, sourceKey string) string {
	return CanonicalID("pe-"+source, sourceKey)
}

// SignalID derives a signal's canonical ID from its company, type, and
// source URL + date. Re-detecting the same signal upserts the same point.
func SignalID(companyID string, t SignalType, sourceURL, sourceDate string) string {
	return CanonicalID("sig", companyID+"|"+string(t)+"|"+sourceURL+"|"+sourceDate)
}
