// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tradelog

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcwallet/walletdb"

	// The bolt backend registers itself with walletdb.
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
)

const (
	// DBName is the file name of the journal database.
	DBName = "trades.db"

	// DefaultDBTimeout is how long opening the database waits for the
	// file lock.
	DefaultDBTimeout = 10 * time.Second
)

var (
	// tradesBucketKey is the top level bucket holding one value per
	// trade attempt keyed by its big endian sequence number.
	tradesBucketKey = []byte("trades")

	// ErrNoBucket is returned when the journal database lacks the trades
	// bucket.
	ErrNoBucket = errors.New("trades bucket not found")
)

// Journal is an append-only record of trade attempts.
type Journal struct {
	db walletdb.DB
}

// Open opens the journal in dir, creating the directory and the database if
// they do not exist.
func Open(dir string, timeout time.Duration) (*Journal, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, DBName)
	exists, err := fileExists(dbPath)
	if err != nil {
		return nil, err
	}

	var db walletdb.DB
	if exists {
		db, err = walletdb.Open("bdb", dbPath, false, timeout)
	} else {
		db, err = walletdb.Create("bdb", dbPath, false, timeout)
	}
	if err != nil {
		log.Errorf("Failed to open journal %s: %v", dbPath, err)
		return nil, err
	}

	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(tradesBucketKey)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debugf("Opened trade journal %s", dbPath)

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends the entry and returns its sequence number, which is also
// stored in entry.Seq.
func (j *Journal) Record(entry *Entry) (uint64, error) {
	value, err := encodeEntry(entry)
	if err != nil {
		return 0, err
	}

	var seq uint64
	err = walletdb.Update(j.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(tradesBucketKey)
		if bucket == nil {
			return ErrNoBucket
		}

		seq, err = bucket.NextSequence()
		if err != nil {
			return err
		}

		return bucket.Put(seqKey(seq), value)
	})
	if err != nil {
		return 0, err
	}

	entry.Seq = seq
	log.Debugf("Recorded trade %s for artifact %s as entry %d (%s)",
		entry.TradeID, entry.ArtifactID, seq, entry.State)

	return seq, nil
}

// ForEach calls f with every entry in recording order. Iteration stops at
// the first error f returns.
func (j *Journal) ForEach(f func(*Entry) error) error {
	return walletdb.View(j.db, func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(tradesBucketKey)
		if bucket == nil {
			return ErrNoBucket
		}

		return bucket.ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return nil
			}
			entry, err := decodeEntry(binary.BigEndian.Uint64(k), v)
			if err != nil {
				return err
			}
			return f(entry)
		})
	})
}

// Reset drops every entry. Sequence numbers start over.
func (j *Journal) Reset() error {
	return walletdb.Update(j.db, func(tx walletdb.ReadWriteTx) error {
		err := tx.DeleteTopLevelBucket(tradesBucketKey)
		if err != nil && !errors.Is(err, walletdb.ErrBucketNotFound) {
			return err
		}
		_, err = tx.CreateTopLevelBucket(tradesBucketKey)
		return err
	})
}

// Entries returns every recorded entry in recording order.
func (j *Journal) Entries() ([]*Entry, error) {
	var entries []*Entry
	err := j.ForEach(func(e *Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

// fileExists reports whether the named file or directory exists.
func fileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
