package helpers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"os"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// ErrInvalidAmount is returned when a decimal ETH amount cannot be parsed.
var ErrInvalidAmount = errors.New("invalid ETH amount")

// decimalAmount is digits with an optional fraction, e.g. "1" or "0.05".
var decimalAmount = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

var weiPerEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Fingerprint returns the hex BLAKE3 digest of everything read from r.
// It is only used as a local lookup key, never as a content identifier.
func Fingerprint(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintFile hashes the file at path.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for fingerprint: %w", path, err)
	}
	defer f.Close()
	sum, err := Fingerprint(f)
	if err != nil {
		log.WithError(err).Errorf("Error hashing file %s", path)
		return "", err
	}
	return sum, nil
}

// CounterReader tracks the number of bytes read through it and calls OnRead
// after every read that returned data.
type CounterReader struct {
	Total  uint64
	Reader io.Reader
	OnRead func(total uint64)
}

// Read implements the io.Reader interface for CounterReader.
func (cr *CounterReader) Read(p []byte) (int, error) {
	n, err := cr.Reader.Read(p)
	if n > 0 {
		cr.Total += uint64(n)
		if cr.OnRead != nil {
			cr.OnRead(cr.Total)
		}
	}
	return n, err
}

// BytesToSize converts a byte count into a human-readable string (KB, MB, GB, etc.).
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}

// ParseEth converts a decimal ETH amount ("0.05") into wei. Amounts with more
// than 18 decimals are rejected rather than rounded.
func ParseEth(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if !decimalAmount.MatchString(amount) {
		return nil, fmt.Errorf("%w: %q is not a plain decimal", ErrInvalidAmount, amount)
	}
	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEth))
	if !r.IsInt() {
		return nil, fmt.Errorf("%w: %q has more than 18 decimals", ErrInvalidAmount, amount)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FormatWei renders a wei amount as a decimal ETH string without trailing zeros.
func FormatWei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	s := new(big.Rat).SetFrac(wei, weiPerEth).FloatString(18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
