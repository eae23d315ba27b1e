package analytics

import "errors"

var (
	// ErrZeroTimestamp is returned when a sample is built without a timestamp.
	ErrZeroTimestamp = errors.New("analytics: zero timestamp")
	// ErrInvalidBandRange is returned when a band range has min > max.
	ErrInvalidBandRange = errors.New("analytics: invalid band range")
	// ErrBandRangesDisjoint is returned when the normal range is not contained in the warning range.
	ErrBandRangesDisjoint = errors.New("analytics: normal range not within warning range")
	// ErrUnknownMetric is returned when a band table names an untracked metric.
	ErrUnknownMetric = errors.New("analytics: unknown metric")
)
