package storage

import (
	"context"
	"errors"
)

// ErrNoRecord reports an update or delete whose where clause matched
// nothing.
var ErrNoRecord = errors.New("record not found")

// Record is one persisted entity row in its wire shape.
type Record map[string]interface{}

// Query carries the read-side options accepted by FindMany/FindUnique.
type Query struct {
	Where   map[string]interface{}
	Include map[string]interface{}
	OrderBy interface{}
	Select  map[string]interface{}
	Take    *int
	Skip    *int
}

// Mutation carries the write-side options accepted by Create/Update.
type Mutation struct {
	Where   map[string]interface{}
	Data    map[string]interface{}
	Include map[string]interface{}
	Select  map[string]interface{}
}

// Delegate is the opaque persistence handle for one entity type. FindUnique
// returns a nil Record (and nil error) when no row matches; Update and
// Delete return ErrNoRecord instead.
type Delegate interface {
	FindMany(ctx context.Context, q Query) ([]Record, error)
	FindUnique(ctx context.Context, q Query) (Record, error)
	Count(ctx context.Context, where map[string]interface{}) (int, error)
	Create(ctx context.Context, m Mutation) (Record, error)
	Update(ctx context.Context, m Mutation) (Record, error)
	Delete(ctx context.Context, where map[string]interface{}) (Record, error)
}
