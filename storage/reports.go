package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AvaProtocol/ap-oracle/model"
	"github.com/AvaProtocol/ap-oracle/storage/schema"
)

var ErrReportNotFound = errors.New("cycle report not found")

// SaveReport persists a cycle report, moves the latest pointer of its chain
// to it and bumps the chain cycle counter.
func SaveReport(db Storage, report *model.CycleReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("cannot encode cycle report: %w", err)
	}

	if err := db.BatchWrite(map[string][]byte{
		string(schema.ReportStorageKey(report.ChainID, report.CycleID)): data,
		string(schema.LatestReportStorageKey(report.ChainID)):           []byte(report.CycleID),
	}); err != nil {
		return err
	}

	_, err = db.IncCounter(schema.CycleCounterStorageKey(report.ChainID))
	return err
}

// LatestReport returns the most recent report of a chain.
func LatestReport(db Storage, chainID string) (*model.CycleReport, error) {
	cycleID, err := db.GetKey(schema.LatestReportStorageKey(chainID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return GetReport(db, chainID, string(cycleID))
}

func GetReport(db Storage, chainID, cycleID string) (*model.CycleReport, error) {
	data, err := db.GetKey(schema.ReportStorageKey(chainID, cycleID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	report := &model.CycleReport{}
	if err := json.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("cannot decode cycle report %s: %w", cycleID, err)
	}
	return report, nil
}

// CycleCount returns how many reports were saved for a chain.
func CycleCount(db Storage, chainID string) (uint64, error) {
	return db.GetCounter(schema.CycleCounterStorageKey(chainID), 0)
}

// PruneReports keeps only the newest keep reports of a chain.
func PruneReports(db Storage, chainID string, keep int) (int, error) {
	keys, err := db.GetKeyHasPrefix(schema.ReportByChainStoragePrefix(chainID))
	if err != nil {
		return 0, err
	}
	if len(keys) <= keep {
		return 0, nil
	}

	// keys come back sorted and cycle ids are ulids, so the oldest come first
	stale := keys[:len(keys)-keep]
	if err := db.Delete(stale...); err != nil {
		return 0, err
	}
	return len(stale), nil
}
