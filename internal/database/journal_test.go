package database

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal_db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDB_PutGetDelete(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put([]byte("k"), []byte("some value some value some value")))
	assert.True(t, db.Has([]byte("k")))

	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "some value some value some value", string(v))

	require.NoError(t, db.Delete([]byte("k")))
	_, err = db.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.Delete([]byte("k")), ErrNotFound)
}

func TestJournal_PutAndFind(t *testing.T) {
	db := openTestDB(t)

	saved, err := db.PutEntry(models.JournalEntry{
		Fingerprint: "ABCDEF",
		FileName:    "kick.mp3",
		MediaType:   "audio/mpeg",
		Size:        5000000,
		CID:         "QmKick",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.UploadedAt.IsZero())

	found, err := db.FindByFingerprint("abcdef")
	require.NoError(t, err)
	assert.Equal(t, "QmKick", found.CID)
	assert.Equal(t, saved.ID, found.ID)

	_, err = db.FindByFingerprint("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournal_RealFingerprintKey(t *testing.T) {
	db := openTestDB(t)
	fp, err := helpers.Fingerprint(strings.NewReader("snare"))
	require.NoError(t, err)
	require.Len(t, fp, 64)
	require.Greater(t, len(JournalKey(fp)), 64, "key is longer than bitcask's default limit")

	_, err = db.PutEntry(models.JournalEntry{Fingerprint: fp, FileName: "snare.mp3", CID: "QmSnare"})
	require.NoError(t, err)
	require.NoError(t, db.SetTxHash(fp, "0xfeed"))

	found, err := db.FindByFingerprint(fp)
	require.NoError(t, err)
	assert.Equal(t, "QmSnare", found.CID)
	assert.Equal(t, "0xfeed", found.TxHash)

	entries, err := db.ListEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snare.mp3", entries[0].FileName)
}

func TestJournal_SetTxHash(t *testing.T) {
	db := openTestDB(t)
	_, err := db.PutEntry(models.JournalEntry{Fingerprint: "fp", CID: "QmX"})
	require.NoError(t, err)

	require.NoError(t, db.SetTxHash("fp", "0xabc"))
	entry, err := db.FindByFingerprint("fp")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", entry.TxHash)

	assert.ErrorIs(t, db.SetTxHash("nope", "0x1"), ErrNotFound)
}

func TestJournal_ListAndDelete(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.PutEntry(models.JournalEntry{Fingerprint: "b", CID: "QmB", UploadedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = db.PutEntry(models.JournalEntry{Fingerprint: "a", CID: "QmA", UploadedAt: base})
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("unrelated"), []byte("x")))

	entries, err := db.ListEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "QmA", entries[0].CID, "oldest first")
	assert.Equal(t, "QmB", entries[1].CID)

	require.NoError(t, db.DeleteEntry("a"))
	require.NoError(t, db.DeleteEntry(JournalKey("b")))
	entries, err = db.ListEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
