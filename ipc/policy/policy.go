// Package policy is a concrete, storage-backed implementation of the
// ipc.NameValidator hook: exact (PID, allowed name) pairs persisted in
// a tidwall/buntdb key-value store, fronted by a seiflotfy/cuckoofilter
// negative cache of denied pairs, so that a repeated probe for a name
// already denied never touches the store. Allowed names are looked up
// in the store on every call.
package policy

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
	"github.com/tidwall/buntdb"
)

// Store binds process identities (by PID) to the component names they
// are allowed to claim. A mapping is registered once, typically by the
// embedding daemon at process-launch time (it knows which PID it just
// spawned for which component), then consulted on every auth exchange.
type Store struct {
	db     *buntdb.DB
	mu     sync.Mutex
	filter *cuckoo.Filter // negative cache: "pid:name" known-denied pairs
}

// Open creates or opens a policy store at path (":memory:" for a
// purely in-process store, used by tests and single-daemon setups with
// no need to survive a restart).
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("policy: opening store: %w", err)
	}
	return &Store{db: db, filter: cuckoo.NewFilter(1024)}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Allow records that pid is authorized to claim name.
func (s *Store) Allow(pid int, name string) error {
	key := allowKey(pid, name)
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, "1", nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("policy: recording allow for pid=%d name=%q: %w", pid, name, err)
	}
	s.mu.Lock()
	s.filter.Delete([]byte(denyKey(pid, name))) // an explicit allow supersedes any cached denial
	s.mu.Unlock()
	return nil
}

// ValidateName implements ipc.NameValidator: a PID may claim name only
// if Allow was previously called for that exact (pid, name) pair.
func (s *Store) ValidateName(pid int, claimedName string) (bool, error) {
	dk := []byte(denyKey(pid, claimedName))
	s.mu.Lock()
	cached := s.filter.Lookup(dk)
	s.mu.Unlock()
	if cached {
		return false, nil
	}

	var allowed bool
	err := s.db.View(func(tx *buntdb.Tx) error {
		_, err := tx.Get(allowKey(pid, claimedName))
		if err == buntdb.ErrNotFound {
			allowed = false
			return nil
		}
		if err != nil {
			return err
		}
		allowed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("policy: checking pid=%d name=%q: %w", pid, claimedName, err)
	}
	if !allowed {
		s.mu.Lock()
		s.filter.InsertUnique(dk)
		s.mu.Unlock()
	}
	return allowed, nil
}

func allowKey(pid int, name string) string {
	return "allow:" + strconv.Itoa(pid) + ":" + name
}

func denyKey(pid int, name string) string {
	var b strings.Builder
	b.WriteString("deny:")
	b.WriteString(strconv.Itoa(pid))
	b.WriteByte(':')
	b.WriteString(name)
	return b.String()
}
