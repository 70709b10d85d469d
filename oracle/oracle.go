// Package oracle implements the kernel's multi-source median exchange-rate
// aggregator: a true median across every fresh source, rather than a
// priority-fallback chain.
package oracle

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"vaultbridge/fixedpoint"
	"vaultbridge/kernelerrors"
)

// Key names an oracle-tracked value: an exchange rate between two assets, or
// a fee-estimation bucket. Keys are opaque strings so the kernel can track
// both kinds uniformly, following the usual BASE:QUOTE pair-key idiom.
type Key string

// RateKey builds the canonical key for an exchange rate from `from` to `to`.
func RateKey(from, to string) Key {
	return Key(strings.ToUpper(strings.TrimSpace(from)) + ":" + strings.ToUpper(strings.TrimSpace(to)))
}

// FeeKey builds the canonical key for a named fee-estimation bucket.
func FeeKey(bucket string) Key {
	return Key("FEE:" + strings.ToUpper(strings.TrimSpace(bucket)))
}

type sourceReading struct {
	value     fixedpoint.Ratio
	timestamp time.Time
}

// Aggregator tracks, per key, the most recent reading from each authorized
// source and the last-computed aggregate (the median of fresh readings).
type Aggregator struct {
	maxDelay  time.Duration
	sources   map[string]struct{}
	readings  map[Key]map[string]sourceReading
	aggregate map[Key]fixedpoint.Ratio
	aggTime   map[Key]time.Time
}

// New constructs an aggregator with the given freshness window and initial
// authorized source list.
func New(maxDelay time.Duration, authorized []string) *Aggregator {
	a := &Aggregator{
		maxDelay:  maxDelay,
		sources:   make(map[string]struct{}, len(authorized)),
		readings:  make(map[Key]map[string]sourceReading),
		aggregate: make(map[Key]fixedpoint.Ratio),
		aggTime:   make(map[Key]time.Time),
	}
	for _, s := range authorized {
		a.sources[canonicalSource(s)] = struct{}{}
	}
	return a
}

func canonicalSource(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}

// InsertAuthorizedSource adds a source to the authorized list. Gated by a
// root-only capability at the kernel command layer; the aggregator itself
// performs no authorization check.
func (a *Aggregator) InsertAuthorizedSource(source string) {
	a.sources[canonicalSource(source)] = struct{}{}
}

// RemoveAuthorizedSource drops a source from the authorized list. Existing
// readings from the removed source remain in history until overwritten but
// are excluded from future aggregation passes since IsAuthorized now reports
// false for it.
func (a *Aggregator) RemoveAuthorizedSource(source string) {
	delete(a.sources, canonicalSource(source))
}

// IsAuthorized reports whether the source is currently authorized to feed
// values.
func (a *Aggregator) IsAuthorized(source string) bool {
	_, ok := a.sources[canonicalSource(source)]
	return ok
}

// FeedValues records (value, now) for each (key, value) pair from an
// authorized source. Unauthorized sources are rejected outright.
func (a *Aggregator) FeedValues(source string, now time.Time, values map[Key]fixedpoint.Ratio) error {
	if !a.IsAuthorized(source) {
		return fmt.Errorf("%w: %s", kernelerrors.ErrUnauthorizedSource, source)
	}
	canon := canonicalSource(source)
	for key, value := range values {
		if _, overflow := uint256.FromBig(value.Inner); overflow || value.Inner.Sign() < 0 {
			return fmt.Errorf("%w: reading for %s from %s exceeds the 256-bit reporting bound", kernelerrors.ErrArithmeticOverflow, key, source)
		}
		bucket, ok := a.readings[key]
		if !ok {
			bucket = make(map[string]sourceReading)
			a.readings[key] = bucket
		}
		bucket[canon] = sourceReading{value: value, timestamp: now}
	}
	return nil
}

// Aggregate recomputes the median for every tracked key given the current
// time, keeping only readings from authorized sources within the freshness
// window. This is the per-tick hook spec.md §4.3 describes; it is called
// once per block by the kernel's tick handler, not per command.
func (a *Aggregator) Aggregate(now time.Time) {
	for key, bucket := range a.readings {
		fresh := make([]fixedpoint.Ratio, 0, len(bucket))
		for source, reading := range bucket {
			if !a.IsAuthorized(source) {
				continue
			}
			if a.maxDelay > 0 && now.Sub(reading.timestamp) > a.maxDelay {
				continue
			}
			fresh = append(fresh, reading.value)
		}
		if len(fresh) == 0 {
			delete(a.aggregate, key)
			delete(a.aggTime, key)
			continue
		}
		a.aggregate[key] = median(fresh)
		a.aggTime[key] = now
	}
}

// median computes the deterministic median of the supplied ratios. Ties on
// an even count take the lower middle element, per spec.md §4.3's
// determinism rule (the source original left this unspecified; SPEC_FULL
// documents the resolution in DESIGN.md).
func median(values []fixedpoint.Ratio) fixedpoint.Ratio {
	sorted := make([]fixedpoint.Ratio, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) < 0
	})
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1]
}

// Get resolves the current aggregate for a key. Every consumer fails with
// ErrMissingExchangeRate if the aggregate is absent (no fresh sources, or a
// key never fed).
func (a *Aggregator) Get(key Key) (fixedpoint.Ratio, error) {
	agg, ok := a.aggregate[key]
	if !ok {
		return fixedpoint.Ratio{}, fmt.Errorf("%w: %s", kernelerrors.ErrMissingExchangeRate, key)
	}
	return agg, nil
}

// AggregatedAt returns the timestamp of the last successful aggregation for
// the key, if any.
func (a *Aggregator) AggregatedAt(key Key) (time.Time, bool) {
	ts, ok := a.aggTime[key]
	return ts, ok
}
