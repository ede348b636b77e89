package user

import "context"

// Directory is the keyed store of user records.
//
// Implementations return ErrNotFound when a lookup misses and ErrDuplicateEmail
// when an insert collides on email. Email matching is exact: no case folding or
// trimming. Insert assigns ID (when empty), CreatedAt and UpdatedAt; Update
// refreshes UpdatedAt. Concurrent updates to one record are last-write-wins.
type Directory interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindAll(ctx context.Context) ([]User, error)
	Insert(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
}
