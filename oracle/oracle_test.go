package oracle

import (
	"errors"
	"testing"
	"time"

	"vaultbridge/fixedpoint"
	"vaultbridge/kernelerrors"
)

func TestMedianThreeSources(t *testing.T) {
	a := New(time.Minute, []string{"s1", "s2", "s3"})
	now := time.Now()
	key := RateKey("DOT", "WBTC")
	if err := a.FeedValues("s1", now, map[Key]fixedpoint.Ratio{key: fixedpoint.FromInt(100)}); err != nil {
		t.Fatalf("feed s1: %v", err)
	}
	if err := a.FeedValues("s2", now, map[Key]fixedpoint.Ratio{key: fixedpoint.FromInt(101)}); err != nil {
		t.Fatalf("feed s2: %v", err)
	}
	if err := a.FeedValues("s3", now, map[Key]fixedpoint.Ratio{key: fixedpoint.FromInt(1000)}); err != nil {
		t.Fatalf("feed s3: %v", err)
	}
	a.Aggregate(now)
	got, err := a.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Cmp(fixedpoint.FromInt(101)) != 0 {
		t.Fatalf("expected median 101, got %s", got.String())
	}

	// Drop s2: two values {100, 1000}; aggregate must take the lower middle (100).
	a.RemoveAuthorizedSource("s2")
	a.Aggregate(now)
	got, err = a.Get(key)
	if err != nil {
		t.Fatalf("Get after drop: %v", err)
	}
	if got.Cmp(fixedpoint.FromInt(100)) != 0 {
		t.Fatalf("expected lower-middle tie-break 100, got %s", got.String())
	}
}

func TestMissingExchangeRateWithNoFreshSources(t *testing.T) {
	a := New(time.Minute, []string{"s1"})
	key := RateKey("DOT", "WBTC")
	if _, err := a.Get(key); err == nil {
		t.Fatalf("expected missing exchange rate before any feed")
	}
	now := time.Now()
	if err := a.FeedValues("s1", now.Add(-time.Hour), map[Key]fixedpoint.Ratio{key: fixedpoint.FromInt(1)}); err != nil {
		t.Fatalf("feed: %v", err)
	}
	a.Aggregate(now)
	if _, err := a.Get(key); err == nil {
		t.Fatalf("expected stale reading to be excluded")
	} else if err.Error() == "" {
		t.Fatalf("expected descriptive error")
	}
}

func TestFeedValuesRejectsUnauthorizedSource(t *testing.T) {
	a := New(time.Minute, []string{"s1"})
	err := a.FeedValues("intruder", time.Now(), map[Key]fixedpoint.Ratio{RateKey("DOT", "WBTC"): fixedpoint.FromInt(1)})
	if err == nil {
		t.Fatalf("expected unauthorized source rejection")
	}
	if !errors.Is(err, kernelerrors.ErrUnauthorizedSource) {
		t.Fatalf("expected wrapped ErrUnauthorizedSource, got %v", err)
	}
}
