package models

import (
	"io"
	"math/big"
	"strings"
	"time"
)

// Fixed limits for submissions. The copy count bound is the one the form
// enforces; the "1-10 000" label of the old share form is not carried over.
const (
	MaxUploadSize int64 = 100 * 1024 * 1024 // 100 MiB

	MinCopies uint64 = 1
	MaxCopies uint64 = 1000
)

// Price bounds in ETH, as decimal strings so they can be parsed exactly.
const (
	MinPriceEth = "0.01"
	MaxPriceEth = "1"
)

// AcceptedMediaTypes maps an accepted file extension to the MIME types a file
// with that extension may declare. The first entry is used when a file does
// not declare a type itself.
var AcceptedMediaTypes = map[string][]string{
	".mp3": {"audio/mpeg", "audio/mp3"},
	".mp4": {"video/mp4"},
}

// Upload status values.
const (
	StatusPending   = "pending"
	StatusUploading = "uploading"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type (
	Config struct {
		// Pinning service credentials. JWT wins when both are set.
		PinataJWT       string `toml:"PinataJWT"`
		PinataApiKey    string `toml:"PinataApiKey"`
		PinataSecretKey string `toml:"PinataSecretKey"`

		// Pinning service endpoints
		PinataApiUrl string `toml:"PinataApiUrl"`
		GatewayUrl   string `toml:"GatewayUrl"`

		// Ledger
		RpcUrl          string `toml:"RpcUrl"`
		ContractAddress string `toml:"ContractAddress"`
		PrivateKey      string `toml:"PrivateKey"` // hex, only needed for submit
		FromBlock       uint64 `toml:"FromBlock"`

		// Local state
		DatabasePath   string `toml:"DatabasePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`

		// Behaviour
		Concurrency         int `toml:"Concurrency"` // parallel detail reads
		ApiClientTimeoutSec int `toml:"ApiClientTimeoutSec"`
		RpcTimeoutSec       int `toml:"RpcTimeoutSec"`

		// Other
		LogApiRequests bool `toml:"LogApiRequests"`
	}

	// MediaAsset is a file selected for upload. Content is read exactly once.
	MediaAsset struct {
		Name      string
		MediaType string
		Size      int64
		Content   io.Reader
	}

	// UploadState is the observable state of one upload.
	UploadState struct {
		Progress  int    `json:"progress"`
		Status    string `json:"status"`
		Message   string `json:"message,omitempty"`
		CID       string `json:"cid,omitempty"`
		ErrorKind string `json:"errorKind,omitempty"`
	}

	// PinMetadata is sent alongside the file as pinataMetadata.
	PinMetadata struct {
		Name      string            `json:"name"`
		KeyValues map[string]string `json:"keyvalues"`
	}

	// PinResponse is the body returned by pinFileToIPFS.
	PinResponse struct {
		IpfsHash    string `json:"IpfsHash"`
		PinSize     int64  `json:"PinSize"`
		Timestamp   string `json:"Timestamp"`
		IsDuplicate bool   `json:"isDuplicate,omitempty"`
	}

	// CreationEvent is one SampleCreated log entry.
	CreationEvent struct {
		ID             uint64
		Creator        string // 0x address
		Artist         string
		Title          string
		Category       string
		Description    string
		NumberOfCopies uint64
		Price          *big.Int // wei
		CID            string
		BlockNumber    uint64
		TxHash         string
	}

	// ItemDetail is the current on-chain state of one sample.
	ItemDetail struct {
		Title          string
		Artist         string
		Category       string
		Description    string
		NumberOfCopies uint64
		Price          *big.Int
		CID            string
	}

	// CatalogItem is a creation event joined with its detail read.
	CatalogItem struct {
		ID             uint64   `json:"id"`
		Creator        string   `json:"creator"`
		Artist         string   `json:"artist"`
		Title          string   `json:"title"`
		Category       string   `json:"category"`
		Description    string   `json:"description"`
		NumberOfCopies uint64   `json:"numberOfCopies"`
		Price          *big.Int `json:"price"`
		CID            string   `json:"cid,omitempty"`
	}

	// Submission holds the share-sample form fields.
	Submission struct {
		Artist         string
		Title          string
		Category       string
		Description    string
		NumberOfCopies uint64
		PriceEth       string
	}

	// JournalEntry records one successful pin in the local upload journal.
	JournalEntry struct {
		ID          string    `json:"id"`
		Fingerprint string    `json:"fingerprint"`
		FileName    string    `json:"fileName"`
		MediaType   string    `json:"mediaType"`
		Size        int64     `json:"size"`
		CID         string    `json:"cid"`
		UploadedAt  time.Time `json:"uploadedAt"`
		TxHash      string    `json:"txHash,omitempty"`
	}
)

// HasMedia reports whether the item points at uploaded media.
func (c CatalogItem) HasMedia() bool {
	return strings.TrimSpace(c.CID) != ""
}

// Terminal reports whether no further progress can follow.
func (s UploadState) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// MediaKind returns "audio" or "video" for a declared media type, or "" when
// it is neither.
func MediaKind(mediaType string) string {
	switch {
	case strings.HasPrefix(mediaType, "audio/"):
		return "audio"
	case strings.HasPrefix(mediaType, "video/"):
		return "video"
	}
	return ""
}
