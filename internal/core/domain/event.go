package domain

import "time"

type ChangeAction string

const (
	ProductCreated ChangeAction = "created"
	ProductUpdated ChangeAction = "updated"
	ProductRemoved ChangeAction = "removed"
)

// A ProductChange describes one fulfilled mutation of the catalog. Product is
// zero valued for removals.
type ProductChange struct {
	Action     ChangeAction
	ProductID  int64
	Product    Product
	OccurredAt time.Time
}
