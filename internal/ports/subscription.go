package ports

import "github.com/ghalamif/SafeDetector/internal/domain"

// Subscription is a non-blocking, copy-on-read view of a most-recent-value stream.
type Subscription[T any] interface {
	// Updated reports whether a value newer than the last one read exists.
	Updated() bool
	// Update copies the latest value into dst only if it is newer than the
	// last one read, and reports whether it did.
	Update(dst *T) bool
}

// StatusPublisher emits the safety status produced on every tick.
type StatusPublisher = Publisher[domain.SafetyStatus]

// ParamReloader is invoked when a parameter update notification is observed.
type ParamReloader interface {
	ReloadParams() error
}

// Clock returns monotonic time in microseconds.
type Clock interface {
	NowMicros() uint64
}
