package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	FileTypeVideo      = "MP4"
	FileTypeTranscript = "TRANSCRIPT"
)

type RecordingFile struct {
	ID             string `json:"id"`
	FileType       string `json:"file_type"`
	RecordingType  string `json:"recording_type"`
	DownloadURL    string `json:"download_url"`
	FileSize       int64  `json:"file_size"`
	RecordingStart string `json:"recording_start"`
	RecordingEnd   string `json:"recording_end"`
}

type Recording struct {
	MeetingID string          `json:"meeting_id"`
	Files     []RecordingFile `json:"files"`
}

// GetRecordings returns only the primary video and transcript artifacts;
// chat logs, audio-only duplicates and the like are discarded.
func (c *Client) GetRecordings(ctx context.Context, sessionID int64, meetingID string) (*Recording, error) {
	var resp struct {
		UUID           string          `json:"uuid"`
		RecordingFiles []RecordingFile `json:"recording_files"`
	}
	meta := callMeta{op: "video.get_recordings", sessionID: sessionID, meetingID: meetingID}
	if err := c.do(ctx, meta, "GET", "/meetings/"+meetingID+"/recordings", nil, &resp); err != nil {
		return nil, err
	}

	recording := &Recording{MeetingID: meetingID}
	for _, file := range resp.RecordingFiles {
		if file.FileType == FileTypeVideo || file.FileType == FileTypeTranscript {
			recording.Files = append(recording.Files, file)
		}
	}
	return recording, nil
}

// DownloadFile streams a recording artifact. The provider expects the
// bearer token as a query parameter on download URLs, and bulk downloads
// run on the long-timeout client.
func (c *Client) DownloadFile(ctx context.Context, downloadURL string) (io.ReadCloser, error) {
	const op = "video.download_file"
	if err := c.ready(op); err != nil {
		return nil, err
	}

	token, err := c.tokens.get(ctx, false)
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(downloadURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse download url: %w", op, err)
	}
	query := parsed.Query()
	query.Set("access_token", token)
	parsed.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}

	resp, err := c.downloader.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: download: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, c.mapStatus(op, resp.StatusCode, body)
	}
	return resp.Body, nil
}
