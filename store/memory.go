package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process TreeStore. It backs the test suites and local
// development runs; the semantics match the Mongo-backed store.
type MemoryStore struct {
	mu     sync.RWMutex
	root   map[string]any
	subs   map[int]*memorySub
	nextID int
	now    func() int64
}

type memorySub struct {
	segs []string
	sub  *Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root: make(map[string]any),
		subs: make(map[int]*memorySub),
		now:  func() int64 { return time.Now().UnixMilli() },
	}
}

// SetNowFunc overrides the write-time clock. Tests use it to get
// deterministic server timestamps.
func (m *MemoryStore) SetNowFunc(now func() int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Get(_ context.Context, path string) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{Path: path, Value: deepCopy(m.valueAt(segs))}, nil
}

func (m *MemoryStore) Set(_ context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeAt(segs, resolveTimestamps(value, m.now()))
	m.notify([][]string{segs})
	return nil
}

func (m *MemoryStore) Update(_ context.Context, values map[string]any) error {
	type write struct {
		segs  []string
		value any
	}
	writes := make([]write, 0, len(values))
	for path, value := range values {
		segs, err := splitPath(path)
		if err != nil {
			return err
		}
		writes = append(writes, write{segs: segs, value: value})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	touched := make([][]string, 0, len(writes))
	for _, w := range writes {
		m.writeAt(w.segs, resolveTimestamps(w.value, now))
		touched = append(touched, w.segs)
	}
	m.notify(touched)
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeAt(segs, nil)
	m.notify([][]string{segs})
	return nil
}

func (m *MemoryStore) Subscribe(_ context.Context, path string) (*Subscription, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	sub := newSubscription(path, 16, func() { m.unsubscribe(id) })
	m.subs[id] = &memorySub{segs: segs, sub: sub}

	// Initial snapshot is the current state.
	sub.deliver(Snapshot{Path: path, Value: deepCopy(m.valueAt(segs))})
	return sub, nil
}

func (m *MemoryStore) unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms, ok := m.subs[id]; ok {
		delete(m.subs, id)
		close(ms.sub.ch)
	}
}

// valueAt walks the tree; callers hold at least the read lock.
func (m *MemoryStore) valueAt(segs []string) any {
	var cur any = m.root
	for _, seg := range segs {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = node[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

// writeAt stores value at segs, creating intermediate maps on the way down.
// A nil value deletes the leaf and prunes any maps it leaves empty.
func (m *MemoryStore) writeAt(segs []string, value any) {
	if value == nil {
		removeAt(m.root, segs)
		return
	}

	node := m.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}
	node[segs[len(segs)-1]] = value
}

func removeAt(node map[string]any, segs []string) {
	if len(segs) == 1 {
		delete(node, segs[0])
		return
	}
	child, ok := node[segs[0]].(map[string]any)
	if !ok {
		return
	}
	removeAt(child, segs[1:])
	if len(child) == 0 {
		delete(node, segs[0])
	}
}

// notify re-reads and delivers the subscribed subtree for every subscriber
// affected by the given writes. Callers hold the write lock.
func (m *MemoryStore) notify(touched [][]string) {
	for _, ms := range m.subs {
		affected := false
		for _, segs := range touched {
			if pathsRelated(ms.segs, segs) {
				affected = true
				break
			}
		}
		if !affected {
			continue
		}
		ms.sub.deliver(Snapshot{Path: ms.sub.path, Value: deepCopy(m.valueAt(ms.segs))})
	}
}
