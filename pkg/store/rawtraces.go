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

// InsertRawTrace creates a new raw_traces row.
func (db *Database) InsertRawTrace(historyID int64, filePath string) (*models.RawTrace, error) {
	var rt models.RawTrace
	err := db.db.Update(func(tx *bolt.Tx) error {
		b := bucket(tx, rawTracesBucket)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		rt = models.RawTrace{ID: int64(id), HistoryID: historyID, FilePath: filePath}
		return putObject(b, id, rt)
	})
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// SelectRawTraceByHistoryID returns the raw_traces row for historyID, or
// ErrNotFound. There is at most one in practice.
func (db *Database) SelectRawTraceByHistoryID(historyID int64) (*models.RawTrace, error) {
	var found *models.RawTrace
	err := db.db.View(func(tx *bolt.Tx) error {
		return bucket(tx, rawTracesBucket).ForEach(func(_, v []byte) error {
			var rt models.RawTrace
			if err := unmarshalInto(v, &rt); err != nil {
				return err
			}
			if rt.HistoryID == historyID {
				found = &rt
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

// SelectRawTracesByVersionedComponentName joins through activities and
// packages to return every raw trace recorded for (package, activity,
// version), ordered ascending by id (mirrors
// RawTraceModel::SelectByVersionedComponentName).
func (db *Database) SelectRawTracesByVersionedComponentName(vcn models.VersionedComponentName) ([]models.RawTrace, error) {
	var result []models.RawTrace
	err := db.db.View(func(tx *bolt.Tx) error {
		pkg, activityIDs, err := resolveActivityIDsForVCN(tx, vcn)
		if err != nil || pkg == nil {
			return err
		}

		return bucket(tx, rawTracesBucket).ForEach(func(_, v []byte) error {
			var rt models.RawTrace
			if err := unmarshalInto(v, &rt); err != nil {
				return err
			}
			hist, err := selectHistoryTx(tx, rt.HistoryID)
			if err != nil {
				return nil // orphaned row; skip rather than fail the whole scan
			}
			if activityIDs[hist.ActivityID] {
				result = append(result, rt)
			}
			return nil
		})
	})
	sortRawTracesByID(result)
	return result, err
}

func sortRawTracesByID(traces []models.RawTrace) {
	for i := 1; i < len(traces); i++ {
		for j := i; j > 0 && traces[j].ID < traces[j-1].ID; j-- {
			traces[j], traces[j-1] = traces[j-1], traces[j]
		}
	}
}

func selectHistoryTx(tx *bolt.Tx, historyID int64) (*models.AppLaunchHistory, error) {
	var h models.AppLaunchHistory
	if err := getObject(bucket(tx, historiesBucket), uint64(historyID), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// resolveActivityIDsForVCN finds the package row for (vcn.Package,
// vcn.Version) and the set of activity ids under it named vcn.Activity.
func resolveActivityIDsForVCN(tx *bolt.Tx, vcn models.VersionedComponentName) (*models.Package, map[int64]bool, error) {
	var pkg *models.Package
	err := bucket(tx, packagesBucket).ForEach(func(_, v []byte) error {
		var p models.Package
		if err := unmarshalInto(v, &p); err != nil {
			return err
		}
		if p.Name == vcn.Package && p.Version == vcn.Version {
			pkg = &p
		}
		return nil
	})
	if err != nil || pkg == nil {
		return nil, nil, err
	}

	activityIDs := map[int64]bool{}
	err = bucket(tx, activitiesBucket).ForEach(func(_, v []byte) error {
		var a models.Activity
		if err := unmarshalInto(v, &a); err != nil {
			return err
		}
		if a.PackageID == pkg.ID && a.Name == vcn.Activity {
			activityIDs[a.ID] = true
		}
		return nil
	})
	return pkg, activityIDs, err
}

// DeleteRawTrace removes a raw_traces row.
func (db *Database) DeleteRawTrace(id int64) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return bucket(tx, rawTracesBucket).Delete(itobKey(uint64(id)))
	})
}
