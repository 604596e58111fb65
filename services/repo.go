package services

import (
	"errors"

	"unieats/db"

	"github.com/google/uuid"
)

var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrMenuItemInUse      = errors.New("menu item is part of past orders")
)

// Repo is the storefront's view of the hosted database: catalog reads,
// order writes and customer identities.
type Repo struct {
	pool db.Querier
}

func NewRepo(pool db.Querier) *Repo {
	return &Repo{pool: pool}
}

// parseID returns the canonical form of a uuid id. Ids that do not parse
// cannot match any row, so callers report them as not found without a query.
func parseID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
