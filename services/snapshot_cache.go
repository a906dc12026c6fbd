package services

import (
	"context"
	"log"
	"sync"

	"studyhub/models"
	"studyhub/store"
)

// SnapshotCache mirrors the catalog store in memory. It holds the public
// colleges subtree plus the private subtree of each user it was asked to
// follow, replacing a subtree wholesale whenever its subscription delivers a
// new snapshot. Reads never touch the network.
type SnapshotCache struct {
	store store.TreeStore

	mu            sync.RWMutex
	colleges      map[string]models.College
	users         map[string]models.UserNode
	collegesReady bool
	userReady     map[string]bool
	userFirst     map[string]chan struct{}
	userSubs      map[string]*store.Subscription
	collegesSub   *store.Subscription
	closed        bool
}

// NewSnapshotCache opens the colleges subscription and starts applying its
// snapshots. Callers must Close the cache when done with it.
func NewSnapshotCache(ctx context.Context, st store.TreeStore) (*SnapshotCache, error) {
	sub, err := st.Subscribe(ctx, "colleges")
	if err != nil {
		return nil, err
	}

	c := &SnapshotCache{
		store:       st,
		colleges:    make(map[string]models.College),
		users:       make(map[string]models.UserNode),
		userReady:   make(map[string]bool),
		userFirst:   make(map[string]chan struct{}),
		userSubs:    make(map[string]*store.Subscription),
		collegesSub: sub,
	}
	go c.applyColleges(sub)
	return c, nil
}

// FollowUser subscribes the cache to a user's private subtree and waits for
// the first snapshot, so a Tree call right after returns the user's data.
// Following an already-followed user only waits. The previous behavior of
// the auth-bound client (one user at a time) generalizes to one subscription
// per active user on the server.
func (c *SnapshotCache) FollowUser(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.userReady[userID] {
		c.mu.Unlock()
		return nil
	}
	if _, ok := c.userSubs[userID]; ok {
		first := c.userFirst[userID]
		c.mu.Unlock()
		return c.waitFirst(ctx, first)
	}
	c.mu.Unlock()

	sub, err := c.store.Subscribe(ctx, "users/"+userID)
	if err != nil {
		return err
	}

	first := make(chan struct{})
	c.mu.Lock()
	if c.closed || c.userSubs[userID] != nil {
		c.mu.Unlock()
		sub.Close()
		return nil
	}
	c.userSubs[userID] = sub
	c.userFirst[userID] = first
	c.mu.Unlock()

	go c.applyUser(userID, sub)
	return c.waitFirst(ctx, first)
}

func (c *SnapshotCache) waitFirst(ctx context.Context, first chan struct{}) error {
	if first == nil {
		return nil
	}
	select {
	case <-first:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closeFirst releases anyone blocked in FollowUser for this user.
func (c *SnapshotCache) closeFirst(userID string) {
	if first, ok := c.userFirst[userID]; ok {
		close(first)
		delete(c.userFirst, userID)
	}
}

// UnfollowUser drops a user's subscription and discards their subtree.
func (c *SnapshotCache) UnfollowUser(userID string) {
	c.mu.Lock()
	sub := c.userSubs[userID]
	delete(c.userSubs, userID)
	delete(c.users, userID)
	delete(c.userReady, userID)
	c.closeFirst(userID)
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// Tree returns the current merged snapshot.
func (c *SnapshotCache) Tree() models.Database {
	c.mu.RLock()
	defer c.mu.RUnlock()

	users := make(map[string]models.UserNode, len(c.users))
	for id, node := range c.users {
		users[id] = node
	}
	return models.Database{Colleges: c.colleges, Users: users}
}

// Loading is true until every active subscription has delivered its first
// snapshot.
func (c *SnapshotCache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.collegesReady {
		return true
	}
	for id := range c.userSubs {
		if !c.userReady[id] {
			return true
		}
	}
	return false
}

// Close tears down every subscription.
func (c *SnapshotCache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	collegesSub := c.collegesSub
	subs := make([]*store.Subscription, 0, len(c.userSubs))
	for _, sub := range c.userSubs {
		subs = append(subs, sub)
	}
	c.userSubs = make(map[string]*store.Subscription)
	for id := range c.userFirst {
		c.closeFirst(id)
	}
	c.mu.Unlock()

	collegesSub.Close()
	for _, sub := range subs {
		sub.Close()
	}
}

func (c *SnapshotCache) applyColleges(sub *store.Subscription) {
	for snap := range sub.Snapshots() {
		colleges := make(map[string]models.College)
		if snap.Exists() {
			if err := snap.Decode(&colleges); err != nil {
				log.Printf("[SnapshotCache] failed to decode colleges snapshot: %v", err)
				continue
			}
		}
		c.mu.Lock()
		c.colleges = colleges
		c.collegesReady = true
		c.mu.Unlock()
	}
}

func (c *SnapshotCache) applyUser(userID string, sub *store.Subscription) {
	defer func() {
		c.mu.Lock()
		c.closeFirst(userID)
		c.mu.Unlock()
	}()

	for snap := range sub.Snapshots() {
		var node models.UserNode
		if snap.Exists() {
			if err := snap.Decode(&node); err != nil {
				log.Printf("[SnapshotCache] failed to decode user %s snapshot: %v", userID, err)
				continue
			}
		}
		c.mu.Lock()
		if _, active := c.userSubs[userID]; active {
			c.users[userID] = node
			c.userReady[userID] = true
			c.closeFirst(userID)
		}
		c.mu.Unlock()
	}
}
