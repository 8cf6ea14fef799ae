package retrieval

import (
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/scryer-dev/scryer/pkg/util"
)

// QuerySession correlates a query id with its ranked results so a later
// detail fetch can name a result by (query id, rank) instead of repeating
// the document id.
type QuerySession struct {
	ID      string    `json:"id"`
	Query   string    `json:"query"`
	Intent  string    `json:"intent"`
	DocIDs  []string  `json:"doc_ids"`         // index 0 is rank 1
	Repos   []string  `json:"repos,omitempty"` // parallel to DocIDs for federated queries
	Created time.Time `json:"created"`
}

// DocAt returns the document id at a 1-based rank.
func (s *QuerySession) DocAt(rank int) (string, error) {
	if rank < 1 || rank > len(s.DocIDs) {
		return "", fmt.Errorf("%w: %d of %d", ErrRankOutOfRange, rank, len(s.DocIDs))
	}
	return s.DocIDs[rank-1], nil
}

// RepoAt returns the owning repo name at a 1-based rank, empty for
// single-repo sessions.
func (s *QuerySession) RepoAt(rank int) string {
	if rank < 1 || rank > len(s.Repos) {
		return ""
	}
	return s.Repos[rank-1]
}

// NewQueryID mints a session id: a timestamp for humans scanning logs plus
// a uuid fragment for uniqueness.
func NewQueryID(now time.Time) string {
	frag := uuid.NewString()[:8]
	return fmt.Sprintf("q_%s_%s", now.Format("20060102_150405"), frag)
}

// SessionCache stores query sessions for later detail fetches. Entries
// expire; a miss surfaces as ErrUnknownQuery at the engine level.
type SessionCache interface {
	Get(id string) (*QuerySession, bool)
	Put(s *QuerySession) error
	Close() error
}

// MemorySessionCache keeps sessions in process memory. The default for the
// one-shot CLI and for tests.
type MemorySessionCache struct {
	cache *util.TTLCache
}

func NewMemorySessionCache(capacity int, ttl time.Duration) *MemorySessionCache {
	return &MemorySessionCache{cache: util.NewTTLCache(capacity, ttl)}
}

func (m *MemorySessionCache) Get(id string) (*QuerySession, bool) {
	v := m.cache.Get(id)
	if v == nil {
		return nil, false
	}
	return v.(*QuerySession), true
}

func (m *MemorySessionCache) Put(s *QuerySession) error {
	m.cache.Set(s.ID, s)
	return nil
}

func (m *MemorySessionCache) Close() error { return nil }

// BadgerSessionCache persists sessions so detail fetches survive daemon
// restarts. Values are small JSON blobs with badger-native TTL.
type BadgerSessionCache struct {
	db  *badger.DB
	ttl time.Duration
}

func NewBadgerSessionCache(path string, ttl time.Duration) (*BadgerSessionCache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session cache: %w", err)
	}
	return &BadgerSessionCache{db: db, ttl: ttl}, nil
}

func (b *BadgerSessionCache) Get(id string) (*QuerySession, bool) {
	var s QuerySession
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if err != nil {
		return nil, false
	}
	return &s, true
}

func (b *BadgerSessionCache) Put(s *QuerySession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(s.ID), data).WithTTL(b.ttl)
		return txn.SetEntry(entry)
	})
}

func (b *BadgerSessionCache) Close() error {
	return b.db.Close()
}
