package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

const recordingsFolder = "recordings"

// StorageService archives recording artifacts pulled from the video
// provider and hands out short-lived download links for them. Holds
// reports whether a URL points into the archive, so callers can tell an
// already-archived recording from a provider-side one.
type StorageService interface {
	Holds(fileURL string) bool
	UploadRecording(ctx context.Context, content io.Reader, objectName string) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
	GetSignedURL(ctx context.Context, fileURL string) (string, error)
}

type SupabaseStorageService struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
}

func NewSupabaseStorageService(baseURL, bucket, serviceKey string) *SupabaseStorageService {
	return &SupabaseStorageService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		httpClient: http.DefaultClient,
	}
}

func (s *SupabaseStorageService) Holds(fileURL string) bool {
	_, err := s.objectPathFromURL(fileURL)
	return err == nil
}

// UploadRecording streams one artifact into the recordings folder and
// returns the canonical object URL stored on the session row. Recordings
// are private; clients reach them only through GetSignedURL.
func (s *SupabaseStorageService) UploadRecording(ctx context.Context, content io.Reader, objectName string) (string, error) {
	objectPath := path.Join(recordingsFolder, strings.Trim(objectName, "/"))

	headers := map[string]string{
		"x-upsert":     "true",
		"Content-Type": "application/octet-stream",
	}
	resp, err := s.send(ctx, http.MethodPost, s.objectURL(objectPath), content, headers, "upload recording")
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	return s.objectURL(objectPath), nil
}

func (s *SupabaseStorageService) DeleteFile(ctx context.Context, fileURL string) error {
	objectPath, err := s.objectPathFromURL(fileURL)
	if err != nil {
		return err
	}

	resp, err := s.send(ctx, http.MethodDelete, s.objectURL(objectPath), nil, nil, "delete file")
	if err != nil {
		var se *storageStatusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil
		}
		return err
	}
	resp.Body.Close()
	return nil
}

// GetSignedURL trades an archive object URL for a link valid one hour,
// long enough for the transcription provider to fetch the audio.
func (s *SupabaseStorageService) GetSignedURL(ctx context.Context, fileURL string) (string, error) {
	objectPath, err := s.objectPathFromURL(fileURL)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]int{"expiresIn": 3600})
	if err != nil {
		return "", fmt.Errorf("marshal signed url payload: %w", err)
	}

	signURL := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.baseURL, s.bucket, objectPath)
	headers := map[string]string{"Content-Type": "application/json"}
	resp, err := s.send(ctx, http.MethodPost, signURL, bytes.NewReader(payload), headers, "get signed url")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var response struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode signed url response: %w", err)
	}
	if response.SignedURL == "" {
		return "", fmt.Errorf("signed url missing from response")
	}
	return fmt.Sprintf("%s/storage/v1%s", s.baseURL, response.SignedURL), nil
}

type storageStatusError struct {
	verb string
	code int
	body string
}

func (e *storageStatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.verb, e.code, e.body)
}

// send issues one authenticated storage call and fails on any non-2xx
// status. The caller owns the response body on success.
func (s *SupabaseStorageService) send(
	ctx context.Context,
	method, callURL string,
	body io.Reader,
	headers map[string]string,
	verb string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, callURL, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", verb, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", verb, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, &storageStatusError{verb: verb, code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	return resp, nil
}

func (s *SupabaseStorageService) objectURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)
}

func (s *SupabaseStorageService) objectPathFromURL(fileURL string) (string, error) {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}
	if parsed.Host == "" || !strings.HasPrefix(fileURL, s.baseURL) {
		return "", fmt.Errorf("file url does not belong to the archive")
	}

	prefix := "/storage/v1/object/" + s.bucket + "/"
	if !strings.HasPrefix(parsed.Path, prefix) {
		return "", fmt.Errorf("file url does not belong to configured bucket")
	}
	return strings.TrimPrefix(parsed.Path, prefix), nil
}
