// Package lock serializes work per key. The cart service takes one lock per
// session so operations on the same cart never interleave.
package lock

import "context"

// Locker acquires an exclusive lock on key. Lock blocks until the lock is
// held or ctx is done. The returned func releases the lock and is safe to
// call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
