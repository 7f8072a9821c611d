package analytics

import (
	"fmt"

	"swipestats/internal/messages"
	"swipestats/internal/timeframe"
	"swipestats/internal/usage"
)

// Bucket is the usage and match subset of one calendar month or year.
type Bucket struct {
	Range   Range
	Records []usage.Record
	Matches []messages.Match
}

func bucketSize(kind PeriodKind) (timeframe.TimeFrameBucketSize, error) {
	switch kind {
	case PeriodMonth:
		return timeframe.TimeFrameBucketSizeMonth, nil
	case PeriodYear:
		return timeframe.TimeFrameBucketSizeYear, nil
	}
	return "", fmt.Errorf("period %q has no calendar buckets", kind)
}

// Buckets partitions records and matches into calendar buckets of the given kind.
// The buckets run without holes from the earlier of the first usage day and the
// first conversation to the later of the last usage day and the last conversation
// start, and every bucket exists even when empty. Bucket ranges are clamped to that
// span. A match goes to the bucket of its first message, and ghosted matches go
// nowhere.
func Buckets(kind PeriodKind, period usage.Period, records []usage.Record, matches []messages.Match) ([]Bucket, error) {
	size, err := bucketSize(kind)
	if err != nil {
		return nil, err
	}

	// Conversations can start outside the recorded usage days.
	first, last := period.First, period.Last
	for _, m := range matches {
		if m.FirstMessageSentAt == nil {
			continue
		}
		day := timeframe.StartOfDay(*m.FirstMessageSentAt)
		if day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}

	keys := timeframe.BucketKeys(first, last, size)
	out := make([]Bucket, len(keys))
	index := make(map[string]*Bucket, len(keys))
	for i, key := range keys {
		from, to, err := timeframe.BucketBounds(key, size)
		if err != nil {
			return nil, err
		}
		from, to = timeframe.ClampRange(from, to, first, last)
		out[i] = Bucket{Range: Range{Kind: kind, Key: key, From: from, To: to}}
		index[key] = &out[i]
	}

	for _, rec := range records {
		b, ok := index[timeframe.BucketKey(rec.Date, size)]
		if !ok {
			return nil, fmt.Errorf("usage day %s outside the profile period", rec.DateStamp)
		}
		b.Records = append(b.Records, rec)
	}

	for _, m := range matches {
		if m.FirstMessageSentAt == nil {
			continue
		}
		b, ok := index[timeframe.BucketKey(*m.FirstMessageSentAt, size)]
		if !ok {
			return nil, fmt.Errorf("match %s outside the bucket span", m.MatchID)
		}
		b.Matches = append(b.Matches, m)
	}

	return out, nil
}

// ComposeBuckets composes one ProfileMeta per bucket, in bucket order.
func ComposeBuckets(buckets []Bucket) []ProfileMeta {
	metas := make([]ProfileMeta, len(buckets))
	for i, b := range buckets {
		metas[i] = Compose(b.Range, b.Records, b.Matches)
	}
	return metas
}

// AllTime composes the ProfileMeta of the whole profile period, ghosted matches included.
func AllTime(period usage.Period, records []usage.Record, matches []messages.Match) ProfileMeta {
	return Compose(Range{Kind: PeriodAll, Key: string(PeriodAll), From: period.First, To: period.Last}, records, matches)
}
