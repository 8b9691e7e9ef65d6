package simpleserial

import (
	"errors"

	"github.com/coastalwhite/simpleserial/internal/jumphash"
	"github.com/zeebo/xxh3"
)

// ErrNoTargets is returned when the target list is empty.
var ErrNoTargets = errors.New("simpleserial: no targets available")

// SelectTargetFunc picks which target handles a request key.
// It receives the key and the current target list from Targets.List().
type SelectTargetFunc func(key string, targets []string) (string, error)

// DefaultSelectTarget uses Jump Hash over xxh3 for consistent selection.
// Keys move as little as possible when targets are appended. A single
// target is returned without hashing.
func DefaultSelectTarget(key string, targets []string) (string, error) {
	switch len(targets) {
	case 0:
		return "", ErrNoTargets
	case 1:
		return targets[0], nil
	}
	return targets[jumphash.Hash(xxh3.HashString(key), len(targets))], nil
}
