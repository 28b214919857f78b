package submission

import (
	"context"
	"fmt"

	"go-omegaloops/internal/ledger"
	"go-omegaloops/internal/models"
	"go-omegaloops/internal/uploader"

	log "github.com/sirupsen/logrus"
)

// Uploader moves a file into content-addressed storage.
// *uploader.Pipeline satisfies it.
type Uploader interface {
	Upload(ctx context.Context, asset models.MediaAsset, onProgress uploader.ProgressFunc) (string, error)
}

// Journal records pinned uploads. *database.DB satisfies it.
type Journal interface {
	PutEntry(entry models.JournalEntry) (models.JournalEntry, error)
	SetTxHash(fingerprint, txHash string) error
}

// Request is one share-sample submission.
type Request struct {
	Form  models.Submission
	Asset models.MediaAsset
	// Fingerprint identifies the file in the journal. Optional.
	Fingerprint string
}

// Result is what a submission produced. CID is set as soon as the upload
// succeeded, even when the ledger write failed afterwards.
type Result struct {
	CID    string
	TxHash string
}

// Service runs the submission flow: validate, upload, register.
type Service struct {
	uploader Uploader
	ledger   ledger.Ledger
	journal  Journal
}

// NewService wires a submission flow. journal may be nil.
func NewService(u Uploader, l ledger.Ledger, j Journal) *Service {
	return &Service{uploader: u, ledger: l, journal: j}
}

// Submit validates everything before any I/O, uploads the file and then
// registers it with the ledger. A failed upload never reaches the ledger.
func (s *Service) Submit(ctx context.Context, req Request, onProgress uploader.ProgressFunc) (Result, error) {
	if err := Validate(req.Form, req.Asset); err != nil {
		return Result{}, err
	}

	cid, err := s.uploader.Upload(ctx, req.Asset, onProgress)
	if err != nil {
		return Result{}, fmt.Errorf("uploading %s: %w", req.Asset.Name, err)
	}
	res := Result{CID: cid}
	s.record(req, cid)

	txHash, err := s.Register(ctx, req.Form, cid)
	if err != nil {
		return res, err
	}
	res.TxHash = txHash
	if s.journal != nil && req.Fingerprint != "" {
		if err := s.journal.SetTxHash(req.Fingerprint, txHash); err != nil {
			log.WithError(err).Warn("Could not attach transaction to journal entry")
		}
	}
	return res, nil
}

// Register writes an already uploaded file to the ledger. It is the retry
// path after a failed ledger write, so the file is not pinned twice.
func (s *Service) Register(ctx context.Context, form models.Submission, cid string) (string, error) {
	if err := ValidateForm(form); err != nil {
		return "", err
	}
	if cid == "" {
		return "", &ValidationError{Field: "cid", Reason: "is required"}
	}
	txHash, err := s.ledger.CreateItem(ctx, form, cid)
	if err != nil {
		return "", fmt.Errorf("registering %s on the ledger: %w", cid, err)
	}
	log.WithFields(log.Fields{"cid": cid, "tx": txHash, "title": form.Title}).Info("Sample submitted")
	return txHash, nil
}

func (s *Service) record(req Request, cid string) {
	if s.journal == nil {
		return
	}
	_, err := s.journal.PutEntry(models.JournalEntry{
		Fingerprint: req.Fingerprint,
		FileName:    req.Asset.Name,
		MediaType:   req.Asset.MediaType,
		Size:        req.Asset.Size,
		CID:         cid,
	})
	if err != nil {
		log.WithError(err).Warn("Could not record upload in journal")
	}
}
