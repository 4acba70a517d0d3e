// Package blob defines the key-value blob store the engine persists into.
// Implementations live in infrastructure/persistence.
package blob

import (
	"context"
	"errors"
)

// Stable keys, one per persisted collection or scalar.
const (
	KeyFriends       = "friends"
	KeyChallenges    = "challenges"
	KeyWeeklyStats   = "weeklyStats"
	KeyUserProfile   = "userProfile"
	KeyTotalPoints   = "totalPoints"
	KeyPrivacyMode   = "privateChillMode"
	KeyActiveSession = "activeSession"
)

// AllKeys lists every key the engine writes.
var AllKeys = []string{
	KeyFriends,
	KeyChallenges,
	KeyWeeklyStats,
	KeyUserProfile,
	KeyTotalPoints,
	KeyPrivacyMode,
	KeyActiveSession,
}

var (
	// ErrNotFound is returned by Get for an absent key.
	ErrNotFound = errors.New("blob not found")

	// ErrKeyEmpty is returned for an empty key.
	ErrKeyEmpty = errors.New("blob key is empty")
)

// Store is a get/set/delete blob store.
type Store interface {
	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous blob.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
