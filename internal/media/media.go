// Package media talks to the remote asset host that stores member profile
// images. The wire protocol is Cloudinary-compatible: signed uploads, destroy
// by public id, and bulk deletion by key prefix. Assets are keyed by the
// explicit contract AssetID(roomID, memberID); nothing else about a room is
// stored remotely.
package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Client is the surface the handlers consume. Implementations must be safe
// for concurrent use.
type Client interface {
	// SignUploadParams produces the signature a browser needs for a direct
	// signed upload of the given params.
	SignUploadParams(params map[string]string) string
	// Upload stores an image under folder/publicID and returns its URL.
	Upload(ctx context.Context, folder, publicID string, file io.Reader) (string, error)
	// Destroy removes a single asset by public id.
	Destroy(ctx context.Context, publicID string) error
	// DeleteFolder removes every asset under the given key prefix, then the
	// folder itself.
	DeleteFolder(ctx context.Context, folder string) error
}

// RoomFolder is the asset-host folder holding a room's images.
func RoomFolder(roomID string) string {
	return fmt.Sprintf("schedule/room/%s", roomID)
}

// AssetID is the (roomID, memberID) -> asset key contract.
func AssetID(roomID, memberID string) string {
	return fmt.Sprintf("schedule/room/%s/%s", roomID, memberID)
}

// HTTPClient implements Client against a Cloudinary-style REST API.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
}

func NewHTTPClient(baseURL, apiKey, apiSecret string) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SignUploadParams implements the asset host's request signing: parameters
// sorted by key, joined as key=value with '&', secret appended, SHA-1 hex.
func (c *HTTPClient) SignUploadParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}

func (c *HTTPClient) Upload(ctx context.Context, folder, publicID string, file io.Reader) (string, error) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature := c.SignUploadParams(map[string]string{
		"folder":    folder,
		"public_id": publicID,
		"timestamp": timestamp,
	})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", publicID)
	if err != nil {
		return "", fmt.Errorf("creating multipart file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}

	fields := map[string]string{
		"api_key":   c.apiKey,
		"timestamp": timestamp,
		"folder":    folder,
		"public_id": publicID,
		"signature": signature,
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return "", fmt.Errorf("writing multipart field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image/upload", &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asset host returned %d: %s", resp.StatusCode, raw)
	}

	secureURL := gjson.GetBytes(raw, "secure_url")
	if !secureURL.Exists() {
		return "", fmt.Errorf("asset host response missing secure_url")
	}
	return secureURL.String(), nil
}

func (c *HTTPClient) Destroy(ctx context.Context, publicID string) error {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature := c.SignUploadParams(map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	})

	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("api_key", c.apiKey)
	form.Set("timestamp", timestamp)
	form.Set("signature", signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image/destroy", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	result := gjson.GetBytes(raw, "result").String()
	// a missing asset counts as deleted
	if resp.StatusCode != http.StatusOK || (result != "ok" && result != "not found") {
		return fmt.Errorf("asset host returned %d: %s", resp.StatusCode, raw)
	}
	return nil
}

func (c *HTTPClient) DeleteFolder(ctx context.Context, folder string) error {
	// Admin API: remove all assets under the prefix, then the empty folder.
	deleteURL := fmt.Sprintf("%s/resources/image/upload?prefix=%s", c.baseURL, url.QueryEscape(folder+"/"))
	if err := c.adminDelete(ctx, deleteURL); err != nil {
		return err
	}
	return c.adminDelete(ctx, fmt.Sprintf("%s/folders/%s", c.baseURL, folder))
}

func (c *HTTPClient) adminDelete(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("asset host returned %d: %s", resp.StatusCode, raw)
	}
	return nil
}
