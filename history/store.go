package history

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketOfferings  = []byte("offerings")
	bucketPayerIndex = []byte("payer-index")

	// ErrClosed is returned when using a store after Close.
	ErrClosed = errors.New("history: store closed")
)

// Record is one persisted offering outcome. It mirrors the emitted event so
// indexers and the RPC history query read the same shape.
type Record struct {
	ID        string `json:"id"`
	Payer     string `json:"payer"`
	Amount    string `json:"amount"`
	MonthID   uint32 `json:"monthId"`
	Minted    bool   `json:"minted"`
	Timestamp int64  `json:"timestamp"`
}

// Store persists the offering audit trail in a Bolt database, with a
// secondary index per payer.
type Store struct {
	db *bolt.DB
}

// NewStore initialises (and migrates) the BoltDB-backed store.
func NewStore(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketOfferings, bucketPayerIndex} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizePayer(payer string) string {
	return strings.ToLower(strings.TrimSpace(payer))
}

func sequenceKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

func payerIndexKey(payer string, seq uint64) []byte {
	key := make([]byte, 0, len(payer)+9)
	key = append(key, payer...)
	key = append(key, ':')
	key = append(key, sequenceKey(seq)...)
	return key
}

// Append persists a record, assigning it a fresh ID when absent, and returns
// the stored record.
func (s *Store) Append(record Record) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, ErrClosed
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Payer = normalizePayer(record.Payer)
	err := s.db.Update(func(tx *bolt.Tx) error {
		offerings := tx.Bucket(bucketOfferings)
		index := tx.Bucket(bucketPayerIndex)
		seq, err := offerings.NextSequence()
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := offerings.Put(sequenceKey(seq), encoded); err != nil {
			return err
		}
		return index.Put(payerIndexKey(record.Payer, seq), sequenceKey(seq))
	})
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

// ByPayer returns all records for the payer in append order, up to limit
// (0 means no limit).
func (s *Store) ByPayer(payer string, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	normalized := normalizePayer(payer)
	prefix := append([]byte(normalized), ':')
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		offerings := tx.Bucket(bucketOfferings)
		cursor := tx.Bucket(bucketPayerIndex).Cursor()
		for key, seq := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, seq = cursor.Next() {
			encoded := offerings.Get(seq)
			if encoded == nil {
				continue
			}
			var record Record
			if err := json.Unmarshal(encoded, &record); err != nil {
				return err
			}
			records = append(records, record)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MintedMonths returns the month identifiers of the payer's minted
// collectibles in ascending issuance order.
func (s *Store) MintedMonths(payer string) ([]uint32, error) {
	records, err := s.ByPayer(payer, 0)
	if err != nil {
		return nil, err
	}
	var months []uint32
	for _, record := range records {
		if record.Minted {
			months = append(months, record.MonthID)
		}
	}
	return months, nil
}

// Count returns the total number of persisted records.
func (s *Store) Count() (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketOfferings).Stats().KeyN
		return nil
	})
	return count, err
}
