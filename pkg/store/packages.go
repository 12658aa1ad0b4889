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

// InsertPackage creates a new packages row. Uniqueness of (Name, Version)
// is the caller's responsibility; use SelectOrInsertActivity for the
// select-or-create path the launch pipeline actually uses.
func (db *Database) InsertPackage(name string, version int) (*models.Package, error) {
	var p models.Package
	err := db.db.Update(func(tx *bolt.Tx) error {
		b := bucket(tx, packagesBucket)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		p = models.Package{ID: int64(id), Name: name, Version: version}
		return putObject(b, id, p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SelectPackageByID returns the packages row with the given id.
func (db *Database) SelectPackageByID(id int64) (*models.Package, error) {
	var p models.Package
	err := db.db.View(func(tx *bolt.Tx) error {
		return getObject(bucket(tx, packagesBucket), uint64(id), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SelectPackagesByName returns every packages row with the given name,
// across all versions.
func (db *Database) SelectPackagesByName(name string) ([]models.Package, error) {
	var result []models.Package
	err := db.db.View(func(tx *bolt.Tx) error {
		return bucket(tx, packagesBucket).ForEach(func(_, v []byte) error {
			var p models.Package
			if err := unmarshalInto(v, &p); err != nil {
				return err
			}
			if p.Name == name {
				result = append(result, p)
			}
			return nil
		})
	})
	return result, err
}

// SelectPackageByNameAndVersion returns the unique packages row for
// (name, version), or ErrNotFound.
func (db *Database) SelectPackageByNameAndVersion(name string, version int) (*models.Package, error) {
	var found *models.Package
	err := db.db.View(func(tx *bolt.Tx) error {
		return bucket(tx, packagesBucket).ForEach(func(_, v []byte) error {
			var p models.Package
			if err := unmarshalInto(v, &p); err != nil {
				return err
			}
			if p.Name == name && p.Version == version {
				found = &p
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

// SelectAllPackages returns every row in the packages table.
func (db *Database) SelectAllPackages() ([]models.Package, error) {
	var result []models.Package
	err := db.db.View(func(tx *bolt.Tx) error {
		return bucket(tx, packagesBucket).ForEach(func(_, v []byte) error {
			var p models.Package
			if err := unmarshalInto(v, &p); err != nil {
				return err
			}
			result = append(result, p)
			return nil
		})
	})
	return result, err
}

// DeletePackage removes the packages row and cascades to every Activity
// (and, transitively, their histories/raw traces/prefetch files).
func (db *Database) DeletePackage(id int64) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		activities := bucket(tx, activitiesBucket)
		var toDelete []int64
		err := activities.ForEach(func(_, v []byte) error {
			var a models.Activity
			if err := unmarshalInto(v, &a); err != nil {
				return err
			}
			if a.PackageID == id {
				toDelete = append(toDelete, a.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, activityID := range toDelete {
			if err := deleteActivityTx(tx, activityID); err != nil {
				return err
			}
		}

		return bucket(tx, packagesBucket).Delete(itobKey(uint64(id)))
	})
}

// InsertActivity creates a new activities row.
func (db *Database) InsertActivity(name string, packageID int64) (*models.Activity, error) {
	var a models.Activity
	err := db.db.Update(func(tx *bolt.Tx) error {
		b := bucket(tx, activitiesBucket)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		a = models.Activity{ID: int64(id), Name: name, PackageID: packageID}
		return putObject(b, id, a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SelectActivityByNameAndPackageID returns the unique activities row for
// (name, packageID), or ErrNotFound.
func (db *Database) SelectActivityByNameAndPackageID(name string, packageID int64) (*models.Activity, error) {
	var found *models.Activity
	err := db.db.View(func(tx *bolt.Tx) error {
		return bucket(tx, activitiesBucket).ForEach(func(_, v []byte) error {
			var a models.Activity
			if err := unmarshalInto(v, &a); err != nil {
				return err
			}
			if a.Name == name && a.PackageID == packageID {
				found = &a
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

// SelectActivitiesByPackageID returns every activities row for packageID.
func (db *Database) SelectActivitiesByPackageID(packageID int64) ([]models.Activity, error) {
	var result []models.Activity
	err := db.db.View(func(tx *bolt.Tx) error {
		return bucket(tx, activitiesBucket).ForEach(func(_, v []byte) error {
			var a models.Activity
			if err := unmarshalInto(v, &a); err != nil {
				return err
			}
			if a.PackageID == packageID {
				result = append(result, a)
			}
			return nil
		})
	})
	return result, err
}

// SelectOrInsertActivity finds the (package, activity) row pair, creating
// whichever half is missing. The package is looked up by (name, version),
// so a new version gets its own Package row and its own Activity row.
func (db *Database) SelectOrInsertActivity(packageName string, packageVersion int, activityName string) (*models.Activity, error) {
	pkg, err := db.SelectPackageByNameAndVersion(packageName, packageVersion)
	if errdefs.IsNotFound(err) {
		pkg, err = db.InsertPackage(packageName, packageVersion)
	}
	if err != nil {
		return nil, err
	}

	activity, err := db.SelectActivityByNameAndPackageID(activityName, pkg.ID)
	if errdefs.IsNotFound(err) {
		return db.InsertActivity(activityName, pkg.ID)
	}
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// deleteActivityTx removes an activities row and cascades to its
// histories and prefetch file, within an already-open transaction.
func deleteActivityTx(tx *bolt.Tx, activityID int64) error {
	histories := bucket(tx, historiesBucket)
	var historyIDs []int64
	err := histories.ForEach(func(_, v []byte) error {
		var h models.AppLaunchHistory
		if err := unmarshalInto(v, &h); err != nil {
			return err
		}
		if h.ActivityID == activityID {
			historyIDs = append(historyIDs, h.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, historyID := range historyIDs {
		if err := deleteHistoryTx(tx, historyID); err != nil {
			return err
		}
	}

	prefetch := bucket(tx, prefetchFiles)
	var prefetchIDs []int64
	err = prefetch.ForEach(func(k, v []byte) error {
		var pf models.PrefetchFile
		if err := unmarshalInto(v, &pf); err != nil {
			return err
		}
		if pf.ActivityID == activityID {
			prefetchIDs = append(prefetchIDs, pf.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range prefetchIDs {
		if err := prefetch.Delete(itobKey(uint64(id))); err != nil {
			return err
		}
	}

	return bucket(tx, activitiesBucket).Delete(itobKey(uint64(activityID)))
}

// DeleteActivity removes an activities row and cascades to its histories,
// raw traces, and prefetch file.
func (db *Database) DeleteActivity(activityID int64) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return deleteActivityTx(tx, activityID)
	})
}
