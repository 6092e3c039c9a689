package ports

import "github.com/ghalamif/SafeDetector/internal/domain"

type StatusQueue interface {
	Enqueue(s domain.SafetyStatus) bool
	DropOldest() bool
	DequeueBatch(max int) []domain.SafetyStatus
	Len() int
}
