package cache

import (
	"strings"
	"sync"
	"time"
)

// Store is an in-memory entity cache.
//
// Entries live in an arena (a slice of slots with a free list) indexed by
// canonical key ID, so prefix invalidation is a linear scan of the index.
// Subscriptions are tracked per key independently of entries and survive
// Remove.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use and atomic with
// respect to each other.
// - Errors: no method fails. Read returns (Entry{}, false) on miss.
// - Listeners and the refetch hook run after the store lock is released.
type Store struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	slots   []slot
	free    []int
	index   map[string]int
	subs    map[string]*subscription
	nextSub uint64
	gen     uint64
	refetch func(Key)
}

type slot struct {
	used    bool
	id      string
	segs    []string
	entry   Entry
	touched time.Time

	// gen changes whenever the entry is replaced or invalidated outside a
	// fetch. Store-wide unique, so a recreated slot never reuses one.
	gen uint64
}

type subscription struct {
	listeners map[uint64]Listener
}

type notification struct {
	listeners []Listener
	entry     Entry
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now as the store's time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store with the given policy.
func NewStore(policy Policy, opts ...StoreOption) *Store {
	s := &Store{
		policy: policy,
		now:    time.Now,
		index:  make(map[string]int),
		subs:   make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the staleness policy of the store.
func (s *Store) Policy() Policy {
	return s.policy
}

// Now returns the current time according to the store's clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// OnRefetch registers the hook invoked for every invalidated key that has
// active subscribers. Only one hook is kept; a later call replaces it.
func (s *Store) OnRefetch(fn func(Key)) {
	s.mu.Lock()
	s.refetch = fn
	s.mu.Unlock()
}

// Read returns the entry at key.
func (s *Store) Read(key Key) (Entry, bool) {
	id := key.ID()

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return Entry{}, false
	}
	s.slots[i].touched = s.now()
	return s.snapshotLocked(i), true
}

// IsStale reports whether e should be refreshed before it is trusted.
// Entries without data and invalidated entries are always stale.
func (s *Store) IsStale(e Entry) bool {
	if !e.HasData || e.Invalidated {
		return true
	}
	return s.policy.IsStale(e.Key.EntityType(), e.LastUpdated, s.now())
}

// Write replaces or creates the entry at key with status success.
func (s *Store) Write(key Key, value any) {
	s.mu.Lock()
	i := s.upsertLocked(key)
	n := s.writeLocked(i, key, value)
	s.mu.Unlock()

	n.deliver()
}

// WriteIfCurrent is Write for the result of a fetch started by MarkLoading.
// It only writes when the entry is still at generation gen, that is when
// nothing invalidated, removed or overwrote it while the fetch was in
// flight. Otherwise the entry is left untouched apart from leaving the
// loading state, and false is returned.
func (s *Store) WriteIfCurrent(key Key, value any, gen uint64) bool {
	s.mu.Lock()
	i, ok := s.index[key.ID()]
	if ok && s.slots[i].gen == gen {
		n := s.writeLocked(i, key, value)
		s.mu.Unlock()
		n.deliver()
		return true
	}

	var ns []notification
	if ok && s.slots[i].entry.Status == StatusLoading {
		s.slots[i].entry.Status = StatusIdle
		ns = append(ns, s.notificationLocked(i))
	}
	s.mu.Unlock()

	deliverAll(ns)
	return false
}

// MarkLoading records that a fetch for key is in flight and returns the
// entry's generation for WriteIfCurrent. The previous value, if any, is kept.
func (s *Store) MarkLoading(key Key) uint64 {
	s.mu.Lock()
	i := s.upsertLocked(key)
	s.slots[i].entry.Status = StatusLoading
	s.slots[i].touched = s.now()
	gen := s.slots[i].gen
	n := s.notificationLocked(i)
	s.mu.Unlock()

	n.deliver()
	return gen
}

// Fail records a failed fetch for key. The previous value, if any, is kept
// and keeps its LastUpdated timestamp.
//
// An entry without data is dropped instead, so a failed first fetch leaves
// the key absent. Listeners still receive one notification carrying
// StatusError and err.
func (s *Store) Fail(key Key, err error) {
	s.mu.Lock()
	i := s.upsertLocked(key)
	var n notification
	if s.slots[i].entry.HasData {
		s.slots[i].entry.Status = StatusError
		s.slots[i].entry.Err = err
		s.slots[i].touched = s.now()
		n = s.notificationLocked(i)
	} else {
		n = s.removeLocked(i)
		n.entry.Status = StatusError
		n.entry.Err = err
	}
	s.mu.Unlock()

	n.deliver()
}

// Restore puts e back into the store exactly as it was captured, including
// its status, timestamp and error. Used to roll back optimistic updates.
func (s *Store) Restore(e Entry) {
	s.mu.Lock()
	i := s.upsertLocked(e.Key)
	e.Subscribers = 0
	s.slots[i].entry = e
	s.bumpLocked(i)
	s.slots[i].touched = s.now()
	n := s.notificationLocked(i)
	s.mu.Unlock()

	n.deliver()
}

// Remove deletes exactly the entry at key. Idempotent.
func (s *Store) Remove(key Key) {
	s.mu.Lock()
	var ns []notification
	if i, ok := s.index[key.ID()]; ok {
		ns = append(ns, s.removeLocked(i))
	}
	s.mu.Unlock()

	deliverAll(ns)
}

// RemovePrefix deletes every entry whose key has prefix as a prefix and
// returns the number of removed entries.
func (s *Store) RemovePrefix(prefix Key) int {
	want := prefix.segments()

	s.mu.Lock()
	var ns []notification
	for _, i := range s.matchLocked(func(sl *slot) bool { return hasPrefix(sl.segs, want) }) {
		ns = append(ns, s.removeLocked(i))
	}
	s.mu.Unlock()

	deliverAll(ns)
	return len(ns)
}

// Invalidate marks every entry whose key has prefix as a prefix as stale and
// returns the number of affected entries.
//
// Affected entries become idle. Entries with active subscribers are then
// handed to the refetch hook so they are refreshed immediately; the others
// are refreshed on next access.
func (s *Store) Invalidate(prefix Key) int {
	want := prefix.segments()
	return s.invalidate(func(sl *slot) bool { return hasPrefix(sl.segs, want) })
}

// InvalidateMatching is Invalidate for an arbitrary key predicate. It is used
// for coarse scans such as "every key mentioning attachments".
func (s *Store) InvalidateMatching(match func(Key) bool) int {
	return s.invalidate(func(sl *slot) bool { return match(sl.entry.Key) })
}

func (s *Store) invalidate(match func(*slot) bool) int {
	s.mu.Lock()
	matched := s.matchLocked(match)

	ns := make([]notification, 0, len(matched))
	var refetch []Key
	for _, i := range matched {
		sl := &s.slots[i]
		sl.entry.Invalidated = true
		s.bumpLocked(i)
		if sl.entry.Status != StatusLoading {
			sl.entry.Status = StatusIdle
		}
		if sub, ok := s.subs[sl.id]; ok && len(sub.listeners) > 0 {
			refetch = append(refetch, sl.entry.Key)
		}
		ns = append(ns, s.notificationLocked(i))
	}
	hook := s.refetch
	s.mu.Unlock()

	deliverAll(ns)
	if hook != nil {
		for _, k := range refetch {
			hook(k)
		}
	}
	return len(matched)
}

// Subscribe registers l for changes to the entry at key and returns a
// function that removes it. The returned function is idempotent.
func (s *Store) Subscribe(key Key, l Listener) func() {
	id := key.ID()

	s.mu.Lock()
	sub, ok := s.subs[id]
	if !ok {
		sub = &subscription{listeners: make(map[uint64]Listener)}
		s.subs[id] = sub
	}
	s.nextSub++
	token := s.nextSub
	sub.listeners[token] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(sub.listeners, token)
				if len(sub.listeners) == 0 {
					delete(s.subs, id)
				}
			}
		})
	}
}

// Subscribers returns the number of active listeners on key.
func (s *Store) Subscribers(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[key.ID()]; ok {
		return len(sub.listeners)
	}
	return 0
}

// Keys returns the keys of all entries in the store, in arena order.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]Key, 0, len(s.index))
	for i := range s.slots {
		if s.slots[i].used {
			keys = append(keys, s.slots[i].entry.Key)
		}
	}
	return keys
}

// Entries returns snapshots of all entries, in arena order.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.index))
	for i := range s.slots {
		if s.slots[i].used {
			entries = append(entries, s.snapshotLocked(i))
		}
	}
	return entries
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Collect drops entries that have no subscribers, no fetch in flight, and
// have not been accessed within Policy.GCTime. It returns the number of
// dropped entries.
func (s *Store) Collect() int {
	if s.policy.GCTime <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.policy.GCTime)
	dropped := 0
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.used || sl.entry.Status == StatusLoading || sl.touched.After(cutoff) {
			continue
		}
		if sub, ok := s.subs[sl.id]; ok && len(sub.listeners) > 0 {
			continue
		}
		// No listeners, so the notification is empty and can be dropped.
		s.removeLocked(i)
		dropped++
	}
	return dropped
}

func (s *Store) upsertLocked(key Key) int {
	segs := key.segments()
	id := strings.Join(segs, keySeparator)
	if i, ok := s.index[id]; ok {
		return i
	}

	var i int
	if n := len(s.free); n > 0 {
		i = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.slots = append(s.slots, slot{})
		i = len(s.slots) - 1
	}
	s.slots[i] = slot{
		used:  true,
		id:    id,
		segs:  segs,
		entry: Entry{Key: key, Status: StatusIdle},
	}
	s.index[id] = i
	s.bumpLocked(i)
	return i
}

func (s *Store) writeLocked(i int, key Key, value any) notification {
	now := s.now()
	s.slots[i].entry = Entry{
		Key:         key,
		Value:       value,
		HasData:     true,
		Status:      StatusSuccess,
		LastUpdated: now,
	}
	s.slots[i].touched = now
	s.bumpLocked(i)
	return s.notificationLocked(i)
}

func (s *Store) bumpLocked(i int) {
	s.gen++
	s.slots[i].gen = s.gen
}

func (s *Store) removeLocked(i int) notification {
	sl := s.slots[i]
	delete(s.index, sl.id)
	s.slots[i] = slot{}
	s.free = append(s.free, i)

	n := notification{entry: Entry{Key: sl.entry.Key, Status: StatusIdle}}
	if sub, ok := s.subs[sl.id]; ok {
		n.entry.Subscribers = len(sub.listeners)
		n.listeners = sub.listenerList()
	}
	return n
}

func (s *Store) matchLocked(match func(*slot) bool) []int {
	var out []int
	for i := range s.slots {
		if s.slots[i].used && match(&s.slots[i]) {
			out = append(out, i)
		}
	}
	return out
}

func (s *Store) snapshotLocked(i int) Entry {
	e := s.slots[i].entry
	if sub, ok := s.subs[s.slots[i].id]; ok {
		e.Subscribers = len(sub.listeners)
	}
	return e
}

func (s *Store) notificationLocked(i int) notification {
	n := notification{entry: s.snapshotLocked(i)}
	if sub, ok := s.subs[s.slots[i].id]; ok {
		n.listeners = sub.listenerList()
	}
	return n
}

func (sub *subscription) listenerList() []Listener {
	out := make([]Listener, 0, len(sub.listeners))
	for _, l := range sub.listeners {
		out = append(out, l)
	}
	return out
}

func (n notification) deliver() {
	for _, l := range n.listeners {
		l(n.entry)
	}
}

func deliverAll(ns []notification) {
	for _, n := range ns {
		n.deliver()
	}
}
