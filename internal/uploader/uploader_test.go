package uploader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go-omegaloops/internal/api"
	"go-omegaloops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinner struct {
	calls  int
	resp   models.PinResponse
	err    error
	before func(hooks api.PinHooks)
}

func (f *fakePinner) PinFile(ctx context.Context, asset models.MediaAsset, hooks api.PinHooks) (models.PinResponse, error) {
	f.calls++
	if f.before != nil {
		f.before(hooks)
	}
	return f.resp, f.err
}

type recorder struct {
	mu     sync.Mutex
	states []models.UploadState
}

func (r *recorder) record(s models.UploadState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.states))
	for i, s := range r.states {
		out[i] = s.Progress
	}
	return out
}

func (r *recorder) last() models.UploadState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		asset     models.MediaAsset
		wantErr   error
		wantValid bool
	}{
		{"mp3 audio/mpeg", models.MediaAsset{Name: "kick.mp3", MediaType: "audio/mpeg", Size: 5_000_000}, nil, true},
		{"mp3 audio/mp3", models.MediaAsset{Name: "kick.MP3", MediaType: "audio/mp3", Size: 10}, nil, true},
		{"mp4 video", models.MediaAsset{Name: "loop.mp4", MediaType: "video/mp4", Size: 10}, nil, true},
		{"no declared type", models.MediaAsset{Name: "loop.mp4", Size: 10}, nil, true},
		{"exactly the limit", models.MediaAsset{Name: "big.mp3", MediaType: "audio/mpeg", Size: models.MaxUploadSize}, nil, true},
		{"one byte over", models.MediaAsset{Name: "big.mp3", MediaType: "audio/mpeg", Size: models.MaxUploadSize + 1}, ErrTooLarge, false},
		{"wav", models.MediaAsset{Name: "kick.wav", MediaType: "audio/wav", Size: 10}, ErrUnsupportedType, false},
		{"no extension", models.MediaAsset{Name: "kick", Size: 10}, ErrUnsupportedType, false},
		{"mp3 name with video type", models.MediaAsset{Name: "kick.mp3", MediaType: "video/mp4", Size: 10}, ErrUnsupportedType, false},
		{"garbage type", models.MediaAsset{Name: "kick.mp3", MediaType: ";;", Size: 10}, ErrUnsupportedType, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.asset)
			if tt.wantValid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			var re *RejectError
			require.True(t, errors.As(err, &re))
		})
	}
}

func TestUpload_TooLargeNeverCallsStore(t *testing.T) {
	pinner := &fakePinner{resp: models.PinResponse{IpfsHash: "QmX"}}
	rec := &recorder{}

	cid, err := NewPipeline(pinner).Upload(context.Background(), models.MediaAsset{
		Name: "huge.mp4", MediaType: "video/mp4", Size: models.MaxUploadSize * 2,
	}, rec.record)

	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, cid)
	assert.Zero(t, pinner.calls)
	assert.Equal(t, models.StatusFailed, rec.last().Status)
	assert.Equal(t, string(ReasonTooLarge), rec.last().ErrorKind)
}

func TestUpload_Checkpoints(t *testing.T) {
	pinner := &fakePinner{
		resp: models.PinResponse{IpfsHash: "QmCheckpoint"},
		before: func(h api.PinHooks) {
			h.Dispatched()
			h.Responded(200)
		},
	}
	rec := &recorder{}

	cid, err := NewPipeline(pinner).Upload(context.Background(), models.MediaAsset{
		Name: "kick.mp3", MediaType: "audio/mpeg", Size: 4, Content: strings.NewReader("kick"),
	}, rec.record)

	require.NoError(t, err)
	assert.Equal(t, "QmCheckpoint", cid)
	assert.Equal(t, []int{0, 25, 90, 100}, rec.progress())
	assert.Equal(t, models.StatusCompleted, rec.last().Status)
	assert.Equal(t, "QmCheckpoint", rec.last().CID)
}

func TestUpload_FailureDoesNotClaimCompletion(t *testing.T) {
	storeErr := &api.UploadError{Kind: api.KindStoreRejected, StatusCode: 500, Message: "down"}
	pinner := &fakePinner{
		err:    storeErr,
		before: func(h api.PinHooks) { h.Dispatched() },
	}
	rec := &recorder{}

	cid, err := NewPipeline(pinner).Upload(context.Background(), models.MediaAsset{
		Name: "kick.mp3", Size: 1, Content: strings.NewReader("k"),
	}, rec.record)

	assert.Empty(t, cid)
	assert.ErrorIs(t, err, api.ErrStoreRejected)
	last := rec.last()
	assert.Equal(t, models.StatusFailed, last.Status)
	assert.Equal(t, string(api.KindStoreRejected), last.ErrorKind)
	assert.Less(t, last.Progress, 100)
	for _, p := range rec.progress() {
		assert.NotEqual(t, 100, p)
	}
}

func TestUpload_MissingCredentialsIsConfigurationError(t *testing.T) {
	pinner := &fakePinner{err: api.ErrMissingCredentials}
	rec := &recorder{}

	_, err := NewPipeline(pinner).Upload(context.Background(), models.MediaAsset{
		Name: "kick.mp3", Size: 1, Content: strings.NewReader("k"),
	}, rec.record)

	assert.ErrorIs(t, err, api.ErrMissingCredentials)
	last := rec.last()
	assert.Equal(t, models.StatusFailed, last.Status)
	assert.Equal(t, string(api.KindConfiguration), last.ErrorKind)
}

func TestUpload_EmptyHashIsMalformed(t *testing.T) {
	pinner := &fakePinner{resp: models.PinResponse{IpfsHash: "  "}}
	cid, err := NewPipeline(pinner).Upload(context.Background(), models.MediaAsset{
		Name: "kick.mp3", Size: 1, Content: strings.NewReader("k"),
	}, nil)

	assert.Empty(t, cid)
	assert.ErrorIs(t, err, api.ErrMalformedResponse)
}

func TestUpload_DisposedTrackerIgnoresLateResult(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.record)
	pinner := &fakePinner{
		resp: models.PinResponse{IpfsHash: "QmLate"},
		before: func(h api.PinHooks) {
			h.Dispatched()
			tr.Dispose() // user navigated away mid-upload
			h.Responded(200)
		},
	}

	cid, err := NewPipeline(pinner).UploadTracked(context.Background(), models.MediaAsset{
		Name: "kick.mp3", Size: 1, Content: strings.NewReader("k"),
	}, tr)

	require.NoError(t, err)
	assert.Equal(t, "QmLate", cid)
	assert.Equal(t, []int{0, 25}, rec.progress(), "no progress after dispose")
	assert.Equal(t, models.StatusUploading, tr.State().Status)
	assert.Empty(t, tr.State().CID)
}

func TestUpload_ContextCancelDisposes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	pinner := &fakePinner{
		err: &api.UploadError{Kind: api.KindNetwork, Err: context.Canceled},
		before: func(h api.PinHooks) {
			h.Dispatched()
			cancel()
		},
	}
	tr := NewTracker(rec.record)

	_, err := NewPipeline(pinner).UploadTracked(ctx, models.MediaAsset{
		Name: "kick.mp3", Size: 1, Content: strings.NewReader("k"),
	}, tr)

	assert.ErrorIs(t, err, api.ErrNetwork)
	assert.True(t, tr.Disposed())
	for _, s := range rec.states {
		assert.NotEqual(t, models.StatusFailed, s.Status, "no failed event after teardown")
	}
}

// Scenario: a 5 MB kick.mp3 goes through the real client against a local store.
func TestUpload_EndToEndWithPinataClient(t *testing.T) {
	content := bytes.Repeat([]byte{0xAB}, 5*1000*1000)
	var received int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		received, _ = io.Copy(io.Discard, file)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"IpfsHash":"QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG","PinSize":5000000}`))
	}))
	defer server.Close()

	client := api.NewPinataClient(models.Config{
		PinataJWT:    "jwt",
		PinataApiUrl: server.URL,
		GatewayUrl:   "https://gateway.pinata.cloud/ipfs/",
	}, server.Client())

	asset := models.MediaAsset{Name: "kick.mp3", MediaType: "audio/mpeg", Size: int64(len(content)), Content: bytes.NewReader(content)}
	require.NoError(t, Validate(asset))

	rec := &recorder{}
	cid, err := NewPipeline(client).Upload(context.Background(), asset, rec.record)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(cid, "Qm"))
	assert.Equal(t, int64(len(content)), received)

	progress := rec.progress()
	require.NotEmpty(t, progress)
	assert.Equal(t, 0, progress[0])
	assert.Equal(t, 100, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1], "progress must not decrease")
	}
}

func TestOpenAsset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loop.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))

	asset, f, err := OpenAsset(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "loop.mp4", asset.Name)
	assert.Equal(t, "video/mp4", asset.MediaType)
	assert.Equal(t, int64(5), asset.Size)

	_, _, err = OpenAsset(filepath.Join(dir, "missing.mp3"))
	assert.Error(t, err)
	_, _, err = OpenAsset(dir)
	assert.Error(t, err)
}

func TestDefaultMediaType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", DefaultMediaType("a.mp3"))
	assert.Equal(t, "video/mp4", DefaultMediaType("a.MP4"))
}
