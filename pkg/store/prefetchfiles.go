/*
 * Copyright (c) 2021. Ant Financial. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package store

import (
	bolt "go.etcd.io/bbolt"

	"github.com/iorap-project/iorapd/pkg/errdefs"
	"github.com/iorap-project/iorapd/pkg/models"
)

// UpsertPrefetchFile inserts or replaces the prefetch_files row for
// activityID: at most one row exists per activity, so a recompile
// overwrites the previous file path (spec.md §3 "PrefetchFile").
func (db *Database) UpsertPrefetchFile(activityID int64, filePath string) (*models.PrefetchFile, error) {
	var pf models.PrefetchFile
	err := db.db.Update(func(tx *bolt.Tx) error {
		b := bucket(tx, prefetchFiles)

		var existingKey uint64
		var existingID int64
		found := false
		err := b.ForEach(func(k, v []byte) error {
			var existing models.PrefetchFile
			if err := unmarshalInto(v, &existing); err != nil {
				return err
			}
			if existing.ActivityID == activityID {
				existingKey = btoiKey(k)
				existingID = existing.ID
				found = true
			}
			return nil
		})
		if err != nil {
			return err
		}

		if found {
			pf = models.PrefetchFile{ID: existingID, ActivityID: activityID, FilePath: filePath}
			return putObject(b, existingKey, pf)
		}

		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		pf = models.PrefetchFile{ID: int64(id), ActivityID: activityID, FilePath: filePath}
		return putObject(b, id, pf)
	})
	if err != nil {
		return nil, err
	}
	return &pf, nil
}

// SelectPrefetchFileByVersionedComponentName joins through activities and
// packages to find the prefetch file compiled for (package, activity,
// version).
func (db *Database) SelectPrefetchFileByVersionedComponentName(vcn models.VersionedComponentName) (*models.PrefetchFile, error) {
	var found *models.PrefetchFile
	err := db.db.View(func(tx *bolt.Tx) error {
		_, activityIDs, err := resolveActivityIDsForVCN(tx, vcn)
		if err != nil {
			return err
		}
		return bucket(tx, prefetchFiles).ForEach(func(_, v []byte) error {
			var pf models.PrefetchFile
			if err := unmarshalInto(v, &pf); err != nil {
				return err
			}
			if activityIDs[pf.ActivityID] {
				found = &pf
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errdefs.ErrNotFound
	}
	return found, nil
}

// SelectAllPrefetchFiles returns every row of the prefetch_files table.
func (db *Database) SelectAllPrefetchFiles() ([]models.PrefetchFile, error) {
	var result []models.PrefetchFile
	err := db.db.View(func(tx *bolt.Tx) error {
		return bucket(tx, prefetchFiles).ForEach(func(_, v []byte) error {
			var pf models.PrefetchFile
			if err := unmarshalInto(v, &pf); err != nil {
				return err
			}
			result = append(result, pf)
			return nil
		})
	})
	return result, err
}

// DeletePrefetchFile removes a prefetch_files row.
func (db *Database) DeletePrefetchFile(id int64) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return bucket(tx, prefetchFiles).Delete(itobKey(uint64(id)))
	})
}
