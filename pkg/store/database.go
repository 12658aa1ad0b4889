/*
 * Copyright (c) 2021. Ant Financial. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package store is the persistence layer backing iorapd's six relational
// tables (packages, activities, app_launch_histories, raw_traces,
// prefetch_files, plus the schema_version marker), kept as nested bbolt
// buckets instead of a SQL engine. See SPEC_FULL.md §11 and
// db/models.h/clean_up.cc in the original implementation for the schema
// this mirrors.
package store

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/containerd/containerd/log"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/iorap-project/iorapd/pkg/errdefs"
	"github.com/iorap-project/iorapd/pkg/models"
)

const (
	databaseFileName = "iorapd.db"

	// schemaVersion bumps whenever the bucket layout below changes
	// incompatibly; initDatabase wipes and recreates the whole v1
	// root bucket when the stored value doesn't match (SPEC_FULL.md §11,
	// grounded on db/clean_up.cc's wipe-on-mismatch behavior).
	schemaVersion = 2
)

// Bucket hierarchy:
//
//	- v1:
//		- packages
//		- activities
//		- histories
//		- raw_traces
//		- prefetch_files
var (
	v1RootBucket     = []byte("v1")
	versionKey       = []byte("schema_version")
	packagesBucket   = []byte("packages")
	activitiesBucket = []byte("activities")
	historiesBucket  = []byte("histories")
	rawTracesBucket  = []byte("raw_traces")
	prefetchFiles    = []byte("prefetch_files")
)

// Database is the bbolt-backed store for iorapd's package/activity/launch
// history/trace bookkeeping. It survives daemon restarts; see
// SPEC_FULL.md's persistence section for the cascade-delete rules enforced
// by the methods in this package.
type Database struct {
	db *bolt.DB
}

// NewDatabase opens (or creates) the database file under rootDir.
func NewDatabase(rootDir string) (*Database, error) {
	f := filepath.Join(rootDir, databaseFileName)
	if err := ensureDirectory(filepath.Dir(f)); err != nil {
		return nil, err
	}

	opts := bolt.Options{Timeout: time.Second * 4}
	bdb, err := bolt.Open(f, 0600, &opts)
	if err != nil {
		return nil, err
	}

	d := &Database{db: bdb}
	if err := d.initDatabase(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}
	return d, nil
}

func ensureDirectory(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0700)
	}
	return nil
}

func (db *Database) Close() error {
	if err := db.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close boltdb")
	}
	return nil
}

func (db *Database) initDatabase() error {
	var storedVersion []byte
	err := db.db.View(func(tx *bolt.Tx) error {
		if bk := tx.Bucket(v1RootBucket); bk != nil {
			storedVersion = bk.Get(versionKey)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if storedVersion != nil && string(storedVersion) != versionString() {
		db.cleanUpFilesForWipe()
		if err := db.wipeRootBucket(); err != nil {
			return errors.Wrap(err, "wipe stale-schema database")
		}
	}

	return db.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(v1RootBucket)
		if err != nil {
			return err
		}

		for _, name := range [][]byte{packagesBucket, activitiesBucket, historiesBucket, rawTracesBucket, prefetchFiles} {
			if _, err := bk.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "bucket %s", name)
			}
		}

		return bk.Put(versionKey, []byte(versionString()))
	})
}

func (db *Database) wipeRootBucket() error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket(v1RootBucket)
	})
}

// cleanUpFilesForWipe removes every raw-trace and compiled-trace file
// referenced by the about-to-be-dropped v1 bucket, walking it while it is
// still readable. Grounded on clean_up.cc's CleanUpFilesForDb, which
// db/models.h's SchemaModel::GetOrCreate calls in exactly this spot: right
// before the stale-schema database is dropped and recreated (spec.md §4.6).
// Lives here rather than in pkg/maintenance (which already imports this
// package) to avoid an import cycle.
func (db *Database) cleanUpFilesForWipe() {
	_ = db.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(v1RootBucket)
		if root == nil {
			return nil
		}
		removeFilesInBucket(root.Bucket(rawTracesBucket), func(v []byte) string {
			var rt models.RawTrace
			if err := unmarshalInto(v, &rt); err != nil {
				return ""
			}
			return rt.FilePath
		})
		removeFilesInBucket(root.Bucket(prefetchFiles), func(v []byte) string {
			var pf models.PrefetchFile
			if err := unmarshalInto(v, &pf); err != nil {
				return ""
			}
			return pf.FilePath
		})
		return nil
	})
}

func removeFilesInBucket(b *bolt.Bucket, filePath func(v []byte) string) {
	if b == nil {
		return
	}
	_ = b.ForEach(func(_, v []byte) error {
		path := filePath(v)
		if path == "" {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.L.Warnf("store: remove trace file %s: %v", path, err)
		}
		return nil
	})
}

func versionString() string {
	return strconv.Itoa(schemaVersion)
}

func bucket(tx *bolt.Tx, name []byte) *bolt.Bucket {
	return tx.Bucket(v1RootBucket).Bucket(name)
}

func putObject(b *bolt.Bucket, key uint64, obj interface{}) error {
	value, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrapf(err, "marshal key %d", key)
	}
	return b.Put(itobKey(key), value)
}

func getObject(b *bolt.Bucket, key uint64, obj interface{}) error {
	value := b.Get(itobKey(key))
	if value == nil {
		return errdefs.ErrNotFound
	}
	if err := json.Unmarshal(value, obj); err != nil {
		return errors.Wrapf(err, "unmarshal key %d", key)
	}
	return nil
}

func itobKey(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoiKey(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func unmarshalInto(value []byte, obj interface{}) error {
	if err := json.Unmarshal(value, obj); err != nil {
		return errors.Wrap(err, "unmarshal row")
	}
	return nil
}
