package ports

import "github.com/ghalamif/SafeDetector/internal/domain"

type Sink interface {
	WriteBatch(statuses []domain.SafetyStatus) error
	Name() string
}
