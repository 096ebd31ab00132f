package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
)

// Store parks serialized flow controllers between requests. Entries expire
// with the flow lifetime, which is what destroys abandoned flows; nothing is
// shared across flows and nothing survives a process restart.
//
// Submission claims go through the Begin* methods, which hold a per-flow
// lock across load, claim and save. The cache itself has no compare-and-swap,
// so without the lock two concurrent submissions would each claim the latch
// on their own loaded copy.
type Store struct {
	cache *bigcache.BigCache
	locks [lockStripes]sync.Mutex
}

const lockStripes = 64

func (s *Store) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.locks[h.Sum32()%lockStripes]
}

// DefaultTTL is the flow lifetime. A flow older than this starts over.
const DefaultTTL = 10 * time.Minute

// NewStore builds a store with the given flow lifetime (DefaultTTL when
// zero).
func NewStore(ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = time.Minute
	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("init flow cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

func (s *Store) put(kind, id string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s flow: %w", kind, err)
	}
	return s.cache.Set(kind+":"+id, raw)
}

func (s *Store) get(kind, id string, v interface{}) error {
	raw, err := s.cache.Get(kind + ":" + id)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(raw, v)
}

func (s *Store) SaveSignIn(f *SignIn) error { return s.put("signin", f.ID, f) }

func (s *Store) LoadSignIn(id string) (*SignIn, error) {
	var f SignIn
	if err := s.get("signin", id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) SaveSignUp(f *SignUp) error { return s.put("signup", f.ID, f) }

func (s *Store) LoadSignUp(id string) (*SignUp, error) {
	var f SignUp
	if err := s.get("signup", id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) SaveEnroll(f *Enroll) error { return s.put("enroll", f.ID, f) }

func (s *Store) LoadEnroll(id string) (*Enroll, error) {
	var f Enroll
	if err := s.get("enroll", id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// BeginSignIn atomically loads the flow and claims its submission slot, so
// only one of any number of concurrent resubmissions reaches the provider.
// On ErrSubmitInFlight the stored flow is still returned for re-rendering.
func (s *Store) BeginSignIn(id string) (*SignIn, uint64, error) {
	l := s.lockFor("signin:" + id)
	l.Lock()
	defer l.Unlock()

	f, err := s.LoadSignIn(id)
	if err != nil {
		return nil, 0, err
	}
	seq, err := f.Begin()
	if err != nil {
		return f, 0, err
	}
	if err := s.SaveSignIn(f); err != nil {
		return nil, 0, err
	}
	return f, seq, nil
}

// BeginSignUp is the sign-up counterpart of BeginSignIn.
func (s *Store) BeginSignUp(id string) (*SignUp, uint64, error) {
	l := s.lockFor("signup:" + id)
	l.Lock()
	defer l.Unlock()

	f, err := s.LoadSignUp(id)
	if err != nil {
		return nil, 0, err
	}
	seq, err := f.Begin()
	if err != nil {
		return f, 0, err
	}
	if err := s.SaveSignUp(f); err != nil {
		return nil, 0, err
	}
	return f, seq, nil
}

// BeginEnroll is the enrollment counterpart of BeginSignIn.
func (s *Store) BeginEnroll(id string) (*Enroll, uint64, error) {
	l := s.lockFor("enroll:" + id)
	l.Lock()
	defer l.Unlock()

	f, err := s.LoadEnroll(id)
	if err != nil {
		return nil, 0, err
	}
	seq, err := f.Begin()
	if err != nil {
		return f, 0, err
	}
	if err := s.SaveEnroll(f); err != nil {
		return nil, 0, err
	}
	return f, seq, nil
}
