package database

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go-omegaloops/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// JournalKeyPrefix prefixes every upload journal key.
const JournalKeyPrefix = "upload_"

// JournalKey returns the key under which the upload of a file with the given
// fingerprint is recorded.
func JournalKey(fingerprint string) string {
	return JournalKeyPrefix + strings.ToLower(fingerprint)
}

// PutEntry records a pinned upload. ID and UploadedAt are filled in when
// empty. An entry without a fingerprint is keyed by its ID.
func (d *DB) PutEntry(entry models.JournalEntry) (models.JournalEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.UploadedAt.IsZero() {
		entry.UploadedAt = time.Now().UTC()
	}
	if entry.Fingerprint == "" {
		entry.Fingerprint = entry.ID
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return entry, fmt.Errorf("error marshalling journal entry for %s: %w", entry.FileName, err)
	}
	if err := d.Put([]byte(JournalKey(entry.Fingerprint)), data); err != nil {
		return entry, err
	}
	log.WithFields(log.Fields{"file": entry.FileName, "cid": entry.CID}).Debug("Recorded upload in journal")
	return entry, nil
}

// FindByFingerprint returns the journal entry of a previously pinned file.
func (d *DB) FindByFingerprint(fingerprint string) (models.JournalEntry, error) {
	raw, err := d.Get([]byte(JournalKey(fingerprint)))
	if err != nil {
		return models.JournalEntry{}, err
	}
	var entry models.JournalEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.JournalEntry{}, fmt.Errorf("error decoding journal entry %s: %w", fingerprint, err)
	}
	return entry, nil
}

// SetTxHash attaches the ledger transaction that registered an upload.
func (d *DB) SetTxHash(fingerprint, txHash string) error {
	entry, err := d.FindByFingerprint(fingerprint)
	if err != nil {
		return err
	}
	entry.TxHash = txHash
	_, err = d.PutEntry(entry)
	return err
}

// ListEntries returns every journal entry, oldest first. Entries that do not
// decode are skipped with a warning.
func (d *DB) ListEntries() ([]models.JournalEntry, error) {
	var entries []models.JournalEntry
	err := d.Fold(func(key, value []byte) error {
		if !strings.HasPrefix(string(key), JournalKeyPrefix) {
			return nil
		}
		var entry models.JournalEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			log.WithError(err).Warnf("Skipping undecodable journal entry %s", string(key))
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error listing journal: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UploadedAt.Before(entries[j].UploadedAt)
	})
	return entries, nil
}

// DeleteEntry removes an entry by full key or by fingerprint.
func (d *DB) DeleteEntry(keyOrFingerprint string) error {
	key := keyOrFingerprint
	if !strings.HasPrefix(key, JournalKeyPrefix) {
		key = JournalKey(key)
	}
	return d.Delete([]byte(key))
}
