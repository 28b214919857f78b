package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	pinFilePath  = "/pinning/pinFileToIPFS"
	testAuthPath = "/data/testAuthentication"

	// maxErrorBody caps how much of a rejection body is kept for display.
	maxErrorBody = 4 << 10
)

// PinHooks receive transport events during PinFile. Any of them may be nil.
type PinHooks struct {
	// Dispatched fires once the request has been handed to the transport.
	Dispatched func()
	// BodyProgress fires as file bytes are consumed by the transport.
	BodyProgress func(sent, total int64)
	// Responded fires when response headers arrive, before the body is read.
	Responded func(statusCode int)
}

// PinataClient talks to the Pinata pinning API. It holds no global state;
// build one per configuration.
type PinataClient struct {
	baseURL    string
	gatewayURL string
	jwt        string
	apiKey     string
	apiSecret  string
	HttpClient *http.Client
	now        func() time.Time
}

// NewPinataClient creates a client from the pinning section of cfg.
// cfg is expected to have gone through config.ApplyDefaults.
func NewPinataClient(cfg models.Config, httpClient *http.Client) *PinataClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.ApiClientTimeoutSec) * time.Second}
	}
	if cfg.PinataJWT == "" && (cfg.PinataApiKey == "" || cfg.PinataSecretKey == "") {
		log.Warn("Pinata credentials not found in configuration or environment")
	}
	return &PinataClient{
		baseURL:    strings.TrimRight(cfg.PinataApiUrl, "/"),
		gatewayURL: cfg.GatewayUrl,
		jwt:        cfg.PinataJWT,
		apiKey:     cfg.PinataApiKey,
		apiSecret:  cfg.PinataSecretKey,
		HttpClient: httpClient,
		now:        time.Now,
	}
}

func (c *PinataClient) hasCredentials() bool {
	return c.jwt != "" || (c.apiKey != "" && c.apiSecret != "")
}

func (c *PinataClient) setAuth(req *http.Request) {
	if c.jwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.jwt)
		return
	}
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.apiSecret)
}

// GatewayURL returns the public retrieval URL of a content identifier.
func (c *PinataClient) GatewayURL(cid string) string {
	return c.gatewayURL + cid
}

// PinFile streams asset to pinFileToIPFS as multipart form data and returns
// the parsed response. Every failure after credentials are checked is an
// *UploadError. A 2xx answer without IpfsHash is never treated as success.
func (c *PinataClient) PinFile(ctx context.Context, asset models.MediaAsset, hooks PinHooks) (models.PinResponse, error) {
	if !c.hasCredentials() {
		return models.PinResponse{}, ErrMissingCredentials
	}

	requestID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"requestId": requestID,
		"file":      asset.Name,
		"size":      helpers.BytesToSize(uint64(max(asset.Size, 0))),
	})

	metadata, err := json.Marshal(models.PinMetadata{
		Name: asset.Name,
		KeyValues: map[string]string{
			"fileType":   asset.MediaType,
			"fileSize":   strconv.FormatInt(asset.Size, 10),
			"uploadedAt": c.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return models.PinResponse{}, fmt.Errorf("encoding pin metadata: %w", err)
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writePinForm(mw, asset, metadata, hooks.BodyProgress))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pinFilePath, pr)
	if err != nil {
		return models.PinResponse{}, &UploadError{Kind: KindNetwork, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Request-Id", requestID)
	c.setAuth(req)

	logger.Info("Uploading to IPFS...")
	if hooks.Dispatched != nil {
		hooks.Dispatched()
	}

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		logger.WithError(err).Error("Pin request failed")
		return models.PinResponse{}, &UploadError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if hooks.Responded != nil {
		hooks.Responded(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		logger.WithField("status", resp.StatusCode).Errorf("Pinata rejected upload: %s", msg)
		return models.PinResponse{}, &UploadError{Kind: KindStoreRejected, StatusCode: resp.StatusCode, Message: msg}
	}

	var result models.PinResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.WithError(err).Error("Error decoding pin response")
		return models.PinResponse{}, &UploadError{Kind: KindMalformedResponse, StatusCode: resp.StatusCode, Err: err}
	}
	if strings.TrimSpace(result.IpfsHash) == "" {
		logger.Error("No IPFS hash returned from Pinata")
		return models.PinResponse{}, &UploadError{Kind: KindMalformedResponse, StatusCode: resp.StatusCode}
	}

	logger.WithField("cid", result.IpfsHash).Info("Upload pinned")
	return result, nil
}

// writePinForm writes the file part followed by the metadata field.
func writePinForm(mw *multipart.Writer, asset models.MediaAsset, metadata []byte, progress func(sent, total int64)) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, asset.Name))
	contentType := asset.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}
	if asset.Content == nil {
		return errors.New("asset has no content")
	}
	counter := &helpers.CounterReader{Reader: asset.Content}
	if progress != nil {
		counter.OnRead = func(total uint64) { progress(int64(total), asset.Size) }
	}
	if _, err := io.Copy(part, counter); err != nil {
		return fmt.Errorf("streaming %s: %w", asset.Name, err)
	}
	if err := mw.WriteField("pinataMetadata", string(metadata)); err != nil {
		return fmt.Errorf("writing metadata field: %w", err)
	}
	return mw.Close()
}

// TestAuthentication checks the configured credentials against the API.
func (c *PinataClient) TestAuthentication(ctx context.Context) error {
	if !c.hasCredentials() {
		return ErrMissingCredentials
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+testAuthPath, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return &UploadError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		log.Debug("Pinata authentication succeeded")
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UploadError{Kind: KindStoreRejected, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
}
