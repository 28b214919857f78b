package submission

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go-omegaloops/internal/api"
	"go-omegaloops/internal/ledger"
	"go-omegaloops/internal/models"
	"go-omegaloops/internal/uploader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	calls int
	cid   string
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, asset models.MediaAsset, onProgress uploader.ProgressFunc) (string, error) {
	f.calls++
	return f.cid, f.err
}

type fakeJournal struct {
	entries []models.JournalEntry
	txs     map[string]string
}

func (j *fakeJournal) PutEntry(e models.JournalEntry) (models.JournalEntry, error) {
	j.entries = append(j.entries, e)
	return e, nil
}

func (j *fakeJournal) SetTxHash(fp, tx string) error {
	if j.txs == nil {
		j.txs = map[string]string{}
	}
	j.txs[fp] = tx
	return nil
}

func validForm() models.Submission {
	return models.Submission{
		Artist:         "DJ Test",
		Title:          "Amen Break",
		Category:       "Jungle",
		Description:    "classic",
		NumberOfCopies: 10,
		PriceEth:       "0.05",
	}
}

func validAsset() models.MediaAsset {
	return models.MediaAsset{Name: "kick.mp3", MediaType: "audio/mpeg", Size: 4, Content: strings.NewReader("kick")}
}

func TestValidateForm(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *models.Submission)
		wantField string
	}{
		{"valid", func(s *models.Submission) {}, ""},
		{"missing artist", func(s *models.Submission) { s.Artist = "  " }, "artist"},
		{"missing title", func(s *models.Submission) { s.Title = "" }, "title"},
		{"missing description", func(s *models.Submission) { s.Description = "" }, "description"},
		{"unknown category", func(s *models.Submission) { s.Category = "Polka" }, "category"},
		{"zero copies", func(s *models.Submission) { s.NumberOfCopies = 0 }, "numberOfCopies"},
		{"too many copies", func(s *models.Submission) { s.NumberOfCopies = models.MaxCopies + 1 }, "numberOfCopies"},
		{"max copies", func(s *models.Submission) { s.NumberOfCopies = models.MaxCopies }, ""},
		{"price too low", func(s *models.Submission) { s.PriceEth = "0.009" }, "price"},
		{"price too high", func(s *models.Submission) { s.PriceEth = "1.01" }, "price"},
		{"price at bounds", func(s *models.Submission) { s.PriceEth = "1" }, ""},
		{"price not a number", func(s *models.Submission) { s.PriceEth = "cheap" }, "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)
			err := ValidateForm(form)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	err := Validate(models.Submission{}, models.MediaAsset{Name: "a.wav", Size: 1})
	require.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, uploader.ErrUnsupportedType)
	for _, field := range []string{"artist", "title", "category", "description", "numberOfCopies", "price", "file"} {
		assert.Contains(t, err.Error(), field)
	}
}

// Scenario: numberOfCopies = 0 is rejected before any upload or ledger call.
func TestSubmit_ZeroCopiesRejectedBeforeIO(t *testing.T) {
	up := &fakeUploader{cid: "QmShouldNotHappen"}
	led := ledger.NewMemory()
	form := validForm()
	form.NumberOfCopies = 0

	res, err := NewService(up, led, nil).Submit(context.Background(), Request{Form: form, Asset: validAsset()}, nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, res.CID)
	assert.Zero(t, up.calls)
	assert.Empty(t, led.Created())
}

func TestSubmit_OversizedFileRejectedBeforeIO(t *testing.T) {
	up := &fakeUploader{cid: "QmX"}
	asset := validAsset()
	asset.Size = models.MaxUploadSize + 1

	_, err := NewService(up, ledger.NewMemory(), nil).Submit(context.Background(), Request{Form: validForm(), Asset: asset}, nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, uploader.ErrTooLarge)
	assert.Zero(t, up.calls)
}

func TestSubmit_Success(t *testing.T) {
	up := &fakeUploader{cid: "QmKick"}
	led := ledger.NewMemory()
	j := &fakeJournal{}

	res, err := NewService(up, led, j).Submit(context.Background(), Request{
		Form: validForm(), Asset: validAsset(), Fingerprint: "fp1",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "QmKick", res.CID)
	assert.NotEmpty(t, res.TxHash)

	require.Len(t, led.Created(), 1)
	events, err := led.CreationEvents(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "QmKick", events[0].CID)

	require.Len(t, j.entries, 1)
	assert.Equal(t, "kick.mp3", j.entries[0].FileName)
	assert.Equal(t, res.TxHash, j.txs["fp1"])
}

func TestSubmit_UploadFailureNeverReachesLedger(t *testing.T) {
	up := &fakeUploader{err: &api.UploadError{Kind: api.KindMalformedResponse}}
	led := ledger.NewMemory()
	j := &fakeJournal{}

	res, err := NewService(up, led, j).Submit(context.Background(), Request{Form: validForm(), Asset: validAsset()}, nil)
	assert.ErrorIs(t, err, api.ErrMalformedResponse)
	assert.Empty(t, res.CID)
	assert.Empty(t, led.Created())
	assert.Empty(t, j.entries)
}

func TestSubmit_LedgerFailureKeepsCID(t *testing.T) {
	up := &fakeUploader{cid: "QmPinned"}
	led := ledger.NewMemory()
	led.FailCreate(errors.New("reverted"))
	j := &fakeJournal{}

	res, err := NewService(up, led, j).Submit(context.Background(), Request{Form: validForm(), Asset: validAsset(), Fingerprint: "fp"}, nil)
	assert.ErrorIs(t, err, ledger.ErrLedger)
	assert.Equal(t, "QmPinned", res.CID, "the pin is reported so registration can be retried")
	assert.Empty(t, res.TxHash)
	require.Len(t, j.entries, 1)
	assert.Empty(t, j.txs)
}

func TestRegister(t *testing.T) {
	svc := NewService(&fakeUploader{}, ledger.NewMemory(), nil)

	_, err := svc.Register(context.Background(), validForm(), "")
	assert.ErrorIs(t, err, ErrValidation)

	tx, err := svc.Register(context.Background(), validForm(), "QmExisting")
	require.NoError(t, err)
	assert.NotEmpty(t, tx)
}
