// Package fingerprint derives stable cache keys from generation requests.
// Two requests a contractor would consider "the same kind of project in the
// same place" must always hash to the same fingerprint; that equivalence is
// the cache's core deduplication guarantee.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// ErrInvalidRequest indicates the request is missing a project type or
// region and cannot be fingerprinted.
var ErrInvalidRequest = errors.New("invalid request: project type and region are required")

// Build computes the fingerprint for a generation request. Project type and
// scope parameters are normalized (lower-cased, trimmed, inner whitespace
// collapsed), the region is folded to its canonical code, and scope
// parameters are sorted by key before hashing. Pairs with an empty key or
// value after normalization are dropped; keys that collide after
// normalization are hashed once, keeping the smallest value.
func Build(projectType, region string, scope map[string]string) (string, error) {
	pt := Normalize(projectType)
	rc := CanonicalRegion(region)
	if pt == "" || rc == "" {
		return "", ErrInvalidRequest
	}

	var b strings.Builder
	b.WriteString(pt)
	b.WriteByte('\n')
	b.WriteString(rc)
	b.WriteByte('\n')

	// Raw keys can collide after normalization ("Material" and "material").
	// Each normalized key is hashed exactly once, and a collision resolves to
	// the lexicographically smallest value so the winner never depends on map
	// iteration order.
	norm := make(map[string]string, len(scope))
	for k, v := range scope {
		nk, nv := Normalize(k), Normalize(v)
		if nk == "" || nv == "" {
			continue
		}
		if prev, ok := norm[nk]; ok && prev <= nv {
			continue
		}
		norm[nk] = nv
	}
	keys := make([]string, 0, len(norm))
	for k := range norm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(norm[k])
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

// Normalize lower-cases, trims, and collapses runs of whitespace to a
// single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
