package ports

import "github.com/ghalamif/SafeDetector/internal/domain"

// Publisher accepts the latest value for a stream. Implementations must not block.
type Publisher[T any] interface {
	Publish(v T)
}

// InputPublishers are the streams a collector feeds. DistanceSensors is
// indexed by sensor instance.
type InputPublishers struct {
	VehicleStatus   Publisher[domain.VehicleStatus]
	DistanceSensors []Publisher[domain.DistanceSample]
}

type Collector interface {
	Start(in InputPublishers) error
	Stop() error
}
