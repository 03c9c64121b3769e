package service

import (
	"fmt"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/util/storage"
)

// DepositStore persists one DepositRecord per publication. The
// date, state and status document are one value, so every write
// replaces all three together.
type DepositStore struct {
	db *storage.BoltDB
}

func NewDepositStore(db *storage.BoltDB) *DepositStore {
	return &DepositStore{db: db}
}

func recordKey(publicationId int64) string {
	return fmt.Sprintf("%d", publicationId)
}

// GetRecord returns the record for publicationId, or nil if the
// publication has never been deposited.
func (store *DepositStore) GetRecord(publicationId int64) (*models.DepositRecord, error) {
	record := &models.DepositRecord{}
	found, err := store.db.Get(storage.DepositRecordsBucket, recordKey(publicationId), record)
	if err != nil || !found {
		return nil, err
	}
	return record, nil
}

// SaveRecord replaces the record for record.PublicationId.
func (store *DepositStore) SaveRecord(record *models.DepositRecord) error {
	if record.PublicationId <= 0 {
		return fmt.Errorf("Deposit record has no publication id")
	}
	return store.db.Save(storage.DepositRecordsBucket, recordKey(record.PublicationId), record)
}

// DeleteRecord removes the record for publicationId, so the
// publication counts as not deposited again. Deleting a missing
// record is not an error.
func (store *DepositStore) DeleteRecord(publicationId int64) error {
	return store.db.Delete(storage.DepositRecordsBucket, recordKey(publicationId))
}

// Find returns the records for which match returns true.
func (store *DepositStore) Find(match func(*models.DepositRecord) bool) ([]*models.DepositRecord, error) {
	records := make([]*models.DepositRecord, 0)
	err := store.db.ForEach(storage.DepositRecordsBucket, func(k, v []byte) error {
		record := &models.DepositRecord{}
		if err := storage.Decode(v, record); err != nil {
			return err
		}
		if match(record) {
			records = append(records, record)
		}
		return nil
	})
	return records, err
}

// InProgress returns records whose last known state is accepted,
// inProgress or inWorkflow.
func (store *DepositStore) InProgress() ([]*models.DepositRecord, error) {
	return store.Find(func(record *models.DepositRecord) bool {
		return record.IsInProgress()
	})
}

// Counts tallies the records of contextId. publicationIds lists the
// published publications of the context; those with no record are
// counted as not deposited. Records for publications missing from
// the list still count by state.
func (store *DepositStore) Counts(contextId int64, publicationIds []int64) (*models.DepositCounts, error) {
	records, err := store.Find(func(record *models.DepositRecord) bool {
		return record.ContextId == contextId
	})
	if err != nil {
		return nil, err
	}
	counts := &models.DepositCounts{}
	seen := make(map[int64]bool, len(records))
	for _, record := range records {
		counts.Add(record)
		seen[record.PublicationId] = true
	}
	for _, id := range publicationIds {
		if !seen[id] {
			counts.Add(nil)
		}
	}
	return counts, nil
}
