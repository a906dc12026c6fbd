package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

var (
	ErrEmptyPath   = errors.New("path cannot be empty")
	ErrInvalidPath = errors.New("path contains an invalid segment")
)

// ServerTimestamp is a placeholder value. Any write containing it gets the
// placeholder replaced with the store's write time in epoch milliseconds.
var ServerTimestamp = serverTimestamp{}

type serverTimestamp struct{}

// TreeStore is a hierarchical key-value store addressed by slash-delimited
// paths. Values are trees of map[string]any, slices and scalars.
//
// Update applies every path in one atomic multi-path write; a nil value
// deletes that path. Only Update carries an atomicity guarantee across
// paths, Set and Remove touch a single path each.
type TreeStore interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, values map[string]any) error
	Remove(ctx context.Context, path string) error

	// Subscribe opens a live feed of full-subtree snapshots for path. The
	// first snapshot is the current state; each later one wholesale
	// replaces it. The caller owns the returned Subscription and must
	// Close it.
	Subscribe(ctx context.Context, path string) (*Subscription, error)
}

// Snapshot is one full read of a subtree at a point in time.
type Snapshot struct {
	Path  string
	Value any
}

// Exists reports whether anything is stored at the snapshot's path.
func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Decode unmarshals the snapshot value into out, tolerating the loose
// typing of tree values (numbers arrive as int64 or float64 depending on
// the backing store).
func (s Snapshot) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to build snapshot decoder: %w", err)
	}
	if err := dec.Decode(s.Value); err != nil {
		return fmt.Errorf("failed to decode snapshot at %s: %w", s.Path, err)
	}
	return nil
}

// Subscription is a live snapshot feed owned by whoever opened it.
type Subscription struct {
	path      string
	ch        chan Snapshot
	closeOnce sync.Once
	closeFn   func()
}

func newSubscription(path string, buffer int, closeFn func()) *Subscription {
	return &Subscription{
		path:    path,
		ch:      make(chan Snapshot, buffer),
		closeFn: closeFn,
	}
}

func (s *Subscription) Path() string { return s.path }

// Snapshots returns the feed channel. It is closed after Close.
func (s *Subscription) Snapshots() <-chan Snapshot { return s.ch }

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.closeFn != nil {
			s.closeFn()
		}
	})
}

// deliver pushes a snapshot, displacing the oldest undelivered one when the
// receiver lags. Only the latest snapshot matters to subscribers.
func (s *Subscription) deliver(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, ErrEmptyPath
	}
	segs := strings.Split(trimmed, "/")
	for _, seg := range segs {
		if seg == "" || strings.ContainsAny(seg, ".$#[]") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// resolveTimestamps replaces every ServerTimestamp placeholder in value with
// now (epoch millis), returning a rewritten copy.
func resolveTimestamps(value any, now int64) any {
	switch v := value.(type) {
	case serverTimestamp:
		return now
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = resolveTimestamps(elem, now)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = resolveTimestamps(elem, now)
		}
		return out
	default:
		return value
	}
}

// deepCopy clones a tree value so snapshots stay immutable once handed out.
func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = deepCopy(elem)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = deepCopy(elem)
		}
		return out
	default:
		return value
	}
}

// pathsRelated reports whether a write at wrote is visible from a
// subscription rooted at sub (one path is a prefix of the other).
func pathsRelated(sub, wrote []string) bool {
	n := len(sub)
	if len(wrote) < n {
		n = len(wrote)
	}
	for i := 0; i < n; i++ {
		if sub[i] != wrote[i] {
			return false
		}
	}
	return true
}
