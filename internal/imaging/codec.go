// Package imaging converts uploaded and remote images to and from the
// transport encodings the model gateway understands.
package imaging

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"autoscapeAi/internal/gateway"
)

// MaxImageBytes caps the size of any single image fed into the pipeline.
const MaxImageBytes = 7 * 1024 * 1024

// EncodeReader reads the full content and returns its base64 payload without
// any data-URI prefix.
func EncodeReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("imaging: read image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("imaging: empty image")
	}
	if len(data) > MaxImageBytes {
		return "", fmt.Errorf("imaging: image exceeds %d bytes", MaxImageBytes)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// StripDataURI returns the content-only base64 payload of a data URI. Plain
// base64 input passes through untouched.
func StripDataURI(raw string) (string, error) {
	if !strings.HasPrefix(raw, "data:") {
		return raw, nil
	}
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("imaging: invalid data URI")
	}
	return parts[1], nil
}

// DataURI builds a fully qualified data URI from raw image bytes.
func DataURI(mime string, data []byte) string {
	if strings.TrimSpace(mime) == "" {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURI is the inverse of DataURI; it returns the raw bytes and the
// declared MIME type.
func DecodeDataURI(uri string) ([]byte, string, error) {
	mime := "image/png"
	payload := uri
	if strings.HasPrefix(uri, "data:") {
		head, rest, ok := strings.Cut(uri, ",")
		if !ok {
			return nil, "", fmt.Errorf("imaging: invalid data URI")
		}
		payload = rest
		head = strings.TrimPrefix(head, "data:")
		if m, _, found := strings.Cut(head, ";"); found && m != "" {
			mime = m
		}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode payload: %w", err)
	}
	return data, mime, nil
}

// ExtractImage scans the response parts for the first inline image and
// returns it as a data URI. Absence is a valid outcome, not an error.
func ExtractImage(resp gateway.Response) (string, bool) {
	for _, part := range resp.Parts {
		if part.InlineImage == nil || len(part.InlineImage.Data) == 0 {
			continue
		}
		return DataURI(part.InlineImage.MIME, part.InlineImage.Data), true
	}
	return "", false
}

// FetchRemote downloads a remote image and returns its bytes and MIME type.
// The error message distinguishes fetch failures from read failures so that
// storage-backend problems stay diagnosable.
func FetchRemote(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("imaging: fetch %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("imaging: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("imaging: fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode image body: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("imaging: image exceeds %d bytes", MaxImageBytes)
	}
	return data, DetectMIME(data, resp.Header.Get("Content-Type")), nil
}

// EncodeRemote fetches a remote image and returns its content-only base64
// payload plus the detected MIME type.
func EncodeRemote(ctx context.Context, client *http.Client, url string) (string, string, error) {
	data, mime, err := FetchRemote(ctx, client, url)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(data), mime, nil
}

// ExtensionFor returns a filename extension for a known image MIME type.
func ExtensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// DetectMIME resolves an image MIME type, favoring the provided header and
// falling back to content sniffing.
func DetectMIME(data []byte, provided string) string {
	mime := strings.TrimSpace(provided)
	if mime == "" || strings.Contains(mime, "octet-stream") {
		mime = http.DetectContentType(data)
	}
	if !strings.Contains(mime, "image/") {
		return "image/jpeg"
	}
	if idx := strings.Index(mime, ";"); idx > 0 {
		mime = mime[:idx]
	}
	return mime
}
