package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-omegaloops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) models.Config {
	return models.Config{
		PinataJWT:           "test-jwt",
		PinataApiUrl:        baseURL,
		GatewayUrl:          "https://gateway.pinata.cloud/ipfs/",
		ApiClientTimeoutSec: 5,
	}
}

func testAsset(content string) models.MediaAsset {
	return models.MediaAsset{
		Name:      "kick.mp3",
		MediaType: "audio/mpeg",
		Size:      int64(len(content)),
		Content:   strings.NewReader(content),
	}
}

func TestPinFile_Success(t *testing.T) {
	var gotMeta models.PinMetadata
	var gotFile []byte
	var gotAuth, gotPartType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, fh, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFile, _ = io.ReadAll(file)
		gotPartType = fh.Header.Get("Content-Type")
		assert.Equal(t, "kick.mp3", fh.Filename)
		assert.NoError(t, json.Unmarshal([]byte(r.FormValue("pinataMetadata")), &gotMeta))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"IpfsHash":"QmTestHash","PinSize":11,"Timestamp":"2026-10-14T00:00:00Z"}`))
	}))
	defer server.Close()

	client := NewPinataClient(testConfig(server.URL), server.Client())
	client.now = func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) }

	var dispatched, responded atomic.Bool
	var lastSent atomic.Int64
	resp, err := client.PinFile(context.Background(), testAsset("hello world"), PinHooks{
		Dispatched:   func() { dispatched.Store(true) },
		BodyProgress: func(sent, total int64) { lastSent.Store(sent) },
		Responded:    func(int) { responded.Store(true) },
	})
	require.NoError(t, err)

	assert.Equal(t, "QmTestHash", resp.IpfsHash)
	assert.Equal(t, "Bearer test-jwt", gotAuth)
	assert.Equal(t, "hello world", string(gotFile))
	assert.Equal(t, "audio/mpeg", gotPartType)
	assert.Equal(t, "kick.mp3", gotMeta.Name)
	assert.Equal(t, "audio/mpeg", gotMeta.KeyValues["fileType"])
	assert.Equal(t, "11", gotMeta.KeyValues["fileSize"])
	assert.Equal(t, "2026-10-14T12:00:00Z", gotMeta.KeyValues["uploadedAt"])
	assert.True(t, dispatched.Load())
	assert.True(t, responded.Load())
	assert.Equal(t, int64(11), lastSent.Load())
}

func TestPinFile_ApiKeyHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "key", r.Header.Get("pinata_api_key"))
		assert.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))
		_, _ = w.Write([]byte(`{"IpfsHash":"QmKey"}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.PinataJWT = ""
	cfg.PinataApiKey = "key"
	cfg.PinataSecretKey = "secret"

	resp, err := NewPinataClient(cfg, server.Client()).PinFile(context.Background(), testAsset("x"), PinHooks{})
	require.NoError(t, err)
	assert.Equal(t, "QmKey", resp.IpfsHash)
}

func TestPinFile_MissingCredentials(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.PinataJWT = ""
	cfg.PinataApiKey = "key-without-secret"

	_, err := NewPinataClient(cfg, server.Client()).PinFile(context.Background(), testAsset("x"), PinHooks{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Zero(t, hits.Load(), "no request may be sent without credentials")
}

func TestPinFile_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   ErrorKind
		wantTarget error
		wantStatus int
		wantMsg    string
	}{
		{"rejected", http.StatusPaymentRequired, "plan limit reached\n", KindStoreRejected, ErrStoreRejected, 402, "plan limit reached"},
		{"server error", http.StatusInternalServerError, "boom", KindStoreRejected, ErrStoreRejected, 500, "boom"},
		{"missing hash", http.StatusOK, `{"PinSize":10}`, KindMalformedResponse, ErrMalformedResponse, 200, ""},
		{"not json", http.StatusOK, `<html>`, KindMalformedResponse, ErrMalformedResponse, 200, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp, err := NewPinataClient(testConfig(server.URL), server.Client()).PinFile(context.Background(), testAsset("data"), PinHooks{})
			require.Error(t, err)
			assert.Empty(t, resp.IpfsHash)
			assert.ErrorIs(t, err, tt.wantTarget)
			assert.Equal(t, tt.wantKind, KindOf(err))

			var ue *UploadError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, tt.wantStatus, ue.StatusCode)
			assert.Equal(t, tt.wantMsg, ue.Message)
		})
	}
}

func TestPinFile_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // nothing listens any more

	_, err := NewPinataClient(testConfig(url), &http.Client{Timeout: time.Second}).PinFile(context.Background(), testAsset("data"), PinHooks{})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestPinFile_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewPinataClient(testConfig(server.URL), &http.Client{Timeout: 50 * time.Millisecond})
	_, err := client.PinFile(context.Background(), testAsset("data"), PinHooks{})
	assert.ErrorIs(t, err, ErrNetwork, "a transport timeout is a network_error")
}

func TestTestAuthentication(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/testAuthentication", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	client := NewPinataClient(testConfig(server.URL), server.Client())
	assert.NoError(t, client.TestAuthentication(context.Background()))

	status = http.StatusUnauthorized
	assert.ErrorIs(t, client.TestAuthentication(context.Background()), ErrUnauthorized)

	status = http.StatusBadGateway
	assert.ErrorIs(t, client.TestAuthentication(context.Background()), ErrStoreRejected)
}

func TestGatewayURL(t *testing.T) {
	client := NewPinataClient(testConfig("http://unused"), nil)
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/QmAbc", client.GatewayURL("QmAbc"))
}

func TestUploadErrorMessages(t *testing.T) {
	assert.Equal(t, "upload failed: 413 - too big", (&UploadError{Kind: KindStoreRejected, StatusCode: 413, Message: "too big"}).Error())
	assert.Equal(t, "upload failed: no IPFS hash returned", (&UploadError{Kind: KindMalformedResponse}).Error())
	assert.Contains(t, (&UploadError{Kind: KindNetwork, Err: errors.New("dial tcp")}).Error(), "dial tcp")
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("other")))
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestLoggingTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"IpfsHash":"QmLogged"}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	lt := newLoggingTransport(http.DefaultTransport, nopCloser{&buf})
	client := NewPinataClient(testConfig(server.URL), &http.Client{Transport: lt})

	resp, err := client.PinFile(context.Background(), testAsset("SECRET-AUDIO-BYTES"), PinHooks{})
	require.NoError(t, err)
	assert.Equal(t, "QmLogged", resp.IpfsHash, "body must still be readable after logging")
	require.NoError(t, lt.Close())

	logged := buf.String()
	assert.Contains(t, logged, "--- Request")
	assert.Contains(t, logged, `"IpfsHash":"QmLogged"`)
	assert.NotContains(t, logged, "SECRET-AUDIO-BYTES", "multipart bodies are not logged")
	assert.NotContains(t, logged, "test-jwt", "credentials are redacted")
}
