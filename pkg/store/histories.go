/*
 * Copyright (c) 2021. Ant Financial. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package store

import (
	bolt "go.etcd.io/bbolt"

	"github.com/iorap-project/iorapd/pkg/models"
)

// InsertAppLaunchHistory creates a new app_launch_histories row.
func (db *Database) InsertAppLaunchHistory(h models.AppLaunchHistory) (*models.AppLaunchHistory, error) {
	err := db.db.Update(func(tx *bolt.Tx) error {
		b := bucket(tx, historiesBucket)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		h.ID = int64(id)
		return putObject(b, id, h)
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// SelectHistoryByID returns the app_launch_histories row with the given id.
func (db *Database) SelectHistoryByID(id int64) (*models.AppLaunchHistory, error) {
	var h models.AppLaunchHistory
	err := db.db.View(func(tx *bolt.Tx) error {
		return getObject(bucket(tx, historiesBucket), uint64(id), &h)
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// SelectActivityHistoryForCompile returns the histories for activityID that
// are eligible for compilation: cold, trace-enabled, with a recorded
// intent-start timestamp (mirrors
// AppLaunchHistoryModel::SelectActivityHistoryForCompile).
func (db *Database) SelectActivityHistoryForCompile(activityID int64) ([]models.AppLaunchHistory, error) {
	var result []models.AppLaunchHistory
	err := db.db.View(func(tx *bolt.Tx) error {
		return bucket(tx, historiesBucket).ForEach(func(_, v []byte) error {
			var h models.AppLaunchHistory
			if err := unmarshalInto(v, &h); err != nil {
				return err
			}
			if h.ActivityID == activityID && h.EligibleForCompile() {
				result = append(result, h)
			}
			return nil
		})
	})
	return result, err
}

// UpdateReportFullyDrawn sets ReportFullyDrawnNs on an existing history row.
func (db *Database) UpdateReportFullyDrawn(historyID int64, reportFullyDrawnNs uint64) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		b := bucket(tx, historiesBucket)
		var h models.AppLaunchHistory
		if err := getObject(b, uint64(historyID), &h); err != nil {
			return err
		}
		h.ReportFullyDrawnNs = &reportFullyDrawnNs
		return putObject(b, uint64(historyID), h)
	})
}

func deleteHistoryTx(tx *bolt.Tx, historyID int64) error {
	rawTraces := bucket(tx, rawTracesBucket)
	var traceIDs []int64
	err := rawTraces.ForEach(func(_, v []byte) error {
		var rt models.RawTrace
		if err := unmarshalInto(v, &rt); err != nil {
			return err
		}
		if rt.HistoryID == historyID {
			traceIDs = append(traceIDs, rt.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range traceIDs {
		if err := rawTraces.Delete(itobKey(uint64(id))); err != nil {
			return err
		}
	}

	return bucket(tx, historiesBucket).Delete(itobKey(uint64(historyID)))
}

// DeleteHistory removes an app_launch_histories row and cascades to its
// raw trace.
func (db *Database) DeleteHistory(historyID int64) error {
	return db.db.Update(func(tx *bolt.Tx) error {
		return deleteHistoryTx(tx, historyID)
	})
}
