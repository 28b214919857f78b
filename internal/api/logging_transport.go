package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoggingTransport wraps an http.RoundTripper and appends request/response
// dumps to a log file. Multipart request bodies (media uploads) and
// non-JSON response bodies are never written to the log.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   io.WriteCloser
	mu        sync.Mutex
	writer    *bufio.Writer
}

// NewLoggingTransport opens logFilePath for appending and wraps transport.
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", logFilePath, err)
	}
	return newLoggingTransport(transport, f), nil
}

func newLoggingTransport(transport http.RoundTripper, w io.WriteCloser) *LoggingTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{
		Transport: transport,
		logFile:   w,
		writer:    bufio.NewWriter(w),
	}
}

// RoundTrip executes a single HTTP transaction, logging details. The lock is
// only held while writing, so concurrent detail reads are not serialized.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	startTime := time.Now()

	dumpBody := !strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/")
	reqDump, err := httputil.DumpRequestOut(req, dumpBody)
	if err != nil {
		log.WithError(err).Error("Failed to dump API request for logging")
	} else {
		t.writeLog(fmt.Sprintf("--- Request (%s) ---\n%s", startTime.Format(time.RFC3339), redactAuth(string(reqDump))))
	}

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(startTime)

	if err != nil {
		t.writeLog(fmt.Sprintf("--- Response Error (Duration: %v) ---\n%s", duration, err.Error()))
		return resp, err
	}

	contentType := resp.Header.Get("Content-Type")
	headers, dumpErr := httputil.DumpResponse(resp, false)
	if dumpErr != nil {
		log.WithError(dumpErr).Error("Failed to dump response headers for logging")
		headers = []byte("Status: " + resp.Status + "\n")
	}

	if !strings.HasPrefix(contentType, "application/json") {
		t.writeLog(fmt.Sprintf("--- Response Headers (Duration: %v, Type: %s) ---\n%s(Body not logged)", duration, contentType, headers))
		return resp, nil
	}

	bodyBytes, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		log.WithError(readErr).Error("Failed to read response body for logging")
		t.writeLog(fmt.Sprintf("--- Response Headers (Duration: %v) ---\n%s(Body read failed)", duration, headers))
		return nil, readErr
	}
	// Restore the body so the caller can read it.
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	t.writeLog(fmt.Sprintf("--- Response (Duration: %v) ---\n%s--- Body ---\n%s", duration, headers, bodyBytes))
	return resp, nil
}

func (t *LoggingTransport) writeLog(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.WriteString(s + "\n\n"); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to API log file: %v\n", err)
		return
	}
	if err := t.writer.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing API log file: %v\n", err)
	}
}

// Close flushes and closes the underlying log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	errFlush := t.writer.Flush()
	errClose := t.logFile.Close()
	if errFlush != nil {
		return fmt.Errorf("failed to flush API log buffer: %w", errFlush)
	}
	return errClose
}

// redactAuth masks credential headers in a request dump.
func redactAuth(dump string) string {
	lines := strings.Split(dump, "\r\n")
	for i, line := range lines {
		name, _, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		switch strings.ToLower(name) {
		case "authorization", "pinata_api_key", "pinata_secret_api_key":
			lines[i] = name + ": [redacted]"
		}
	}
	return strings.Join(lines, "\r\n")
}
