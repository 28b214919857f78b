package uploader

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go-omegaloops/internal/api"
	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"

	log "github.com/sirupsen/logrus"
)

// Progress checkpoints. Byte progress reported by the transport is mapped
// into the band between dispatched and responded.
const (
	ProgressStart      = 0
	ProgressDispatched = 25
	ProgressResponded  = 90
	ProgressCompleted  = 100
)

// RejectReason is why Validate refused a file.
type RejectReason string

const (
	ReasonTooLarge        RejectReason = "too_large"
	ReasonUnsupportedType RejectReason = "unsupported_type"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// RejectError is returned by Validate.
type RejectError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectError) Error() string {
	switch e.Reason {
	case ReasonTooLarge:
		return fmt.Sprintf("file too large (%s). Maximum size is %s", e.Detail, helpers.BytesToSize(uint64(models.MaxUploadSize)))
	case ReasonUnsupportedType:
		return fmt.Sprintf("invalid file type %s. Only .mp3 and .mp4 files are allowed", e.Detail)
	}
	return string(e.Reason)
}

// Is matches the reason sentinels.
func (e *RejectError) Is(target error) bool {
	switch target {
	case ErrTooLarge:
		return e.Reason == ReasonTooLarge
	case ErrUnsupportedType:
		return e.Reason == ReasonUnsupportedType
	}
	return false
}

// Pinner is the blob store the pipeline submits to.
type Pinner interface {
	PinFile(ctx context.Context, asset models.MediaAsset, hooks api.PinHooks) (models.PinResponse, error)
}

// Pipeline validates media and moves it into content-addressed storage.
type Pipeline struct {
	pinner Pinner
}

// NewPipeline creates a pipeline backed by pinner.
func NewPipeline(pinner Pinner) *Pipeline {
	return &Pipeline{pinner: pinner}
}

// Validate checks size and type without any I/O. Size is checked first.
func Validate(asset models.MediaAsset) error {
	if asset.Size > models.MaxUploadSize {
		return &RejectError{Reason: ReasonTooLarge, Detail: helpers.BytesToSize(uint64(asset.Size))}
	}

	ext := strings.ToLower(filepath.Ext(asset.Name))
	allowed, ok := models.AcceptedMediaTypes[ext]
	if !ok {
		if ext == "" {
			ext = "(no extension)"
		}
		return &RejectError{Reason: ReasonUnsupportedType, Detail: ext}
	}
	if asset.MediaType == "" {
		return nil
	}
	declared, _, err := mime.ParseMediaType(asset.MediaType)
	if err != nil {
		return &RejectError{Reason: ReasonUnsupportedType, Detail: asset.MediaType}
	}
	for _, mt := range allowed {
		if declared == mt {
			return nil
		}
	}
	return &RejectError{Reason: ReasonUnsupportedType, Detail: asset.MediaType}
}

// Validate is the method form of the package-level Validate.
func (p *Pipeline) Validate(asset models.MediaAsset) error {
	return Validate(asset)
}

// Upload validates asset and pins it, reporting progress to onProgress.
// It returns the content identifier, or an error and no identifier. It never
// retries: every call creates a new store entry.
func (p *Pipeline) Upload(ctx context.Context, asset models.MediaAsset, onProgress ProgressFunc) (string, error) {
	return p.UploadTracked(ctx, asset, NewTracker(onProgress))
}

// UploadTracked is Upload with a caller-owned tracker, so the caller can
// Dispose it when the hosting flow goes away. Cancelling ctx disposes it too.
func (p *Pipeline) UploadTracked(ctx context.Context, asset models.MediaAsset, tr *Tracker) (string, error) {
	if err := Validate(asset); err != nil {
		var re *RejectError
		if errors.As(err, &re) {
			tr.fail(string(re.Reason), re.Error())
		}
		return "", err
	}
	if asset.MediaType == "" {
		asset.MediaType = DefaultMediaType(asset.Name)
	}

	stop := context.AfterFunc(ctx, tr.Dispose)
	defer stop()

	tr.start()

	hooks := api.PinHooks{
		Dispatched: func() {
			tr.advance(ProgressDispatched, "Uploading to IPFS...")
		},
		BodyProgress: func(sent, total int64) {
			if total <= 0 {
				return
			}
			band := int64(ProgressResponded - ProgressDispatched)
			tr.advance(ProgressDispatched+int(band*min(sent, total)/total), "Uploading to IPFS...")
		},
		Responded: func(int) {
			tr.advance(ProgressResponded, "Finalizing upload...")
		},
	}

	resp, err := p.pinner.PinFile(ctx, asset, hooks)
	if err != nil {
		if ctx.Err() != nil {
			// AfterFunc runs asynchronously; a cancelled flow gets no failed event.
			tr.Dispose()
		}
		kind := string(api.KindOf(err))
		if kind == "" {
			kind = string(api.KindNetwork)
		}
		tr.fail(kind, "Upload failed. Please try again.")
		log.WithError(err).WithField("file", asset.Name).Error("IPFS upload failed")
		return "", err
	}
	cid := strings.TrimSpace(resp.IpfsHash)
	if cid == "" {
		// Pinner implementations other than PinataClient get the same guarantee.
		err := &api.UploadError{Kind: api.KindMalformedResponse}
		tr.fail(string(api.KindMalformedResponse), "Upload failed. Please try again.")
		return "", err
	}

	if !tr.complete(cid) && tr.Disposed() {
		log.WithField("cid", cid).Debug("Upload finished after its flow was torn down, result not reported")
	}
	return cid, nil
}

// DefaultMediaType returns the type assumed for a file that declares none.
func DefaultMediaType(name string) string {
	if allowed, ok := models.AcceptedMediaTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return allowed[0]
	}
	return mime.TypeByExtension(filepath.Ext(name))
}

// OpenAsset opens path as a MediaAsset. The caller closes the returned file
// after the upload finished.
func OpenAsset(path string) (models.MediaAsset, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.MediaAsset{}, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return models.MediaAsset{}, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return models.MediaAsset{}, nil, fmt.Errorf("%s is a directory", path)
	}
	return models.MediaAsset{
		Name:      filepath.Base(path),
		MediaType: DefaultMediaType(path),
		Size:      info.Size(),
		Content:   f,
	}, f, nil
}
