package transcription

import (
	"context"
	"fmt"
	"io"
	"strings"

	listenapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenclient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
)

// Client transcribes completed session recordings through the Deepgram
// pre-recorded API and renders the result as a speaker-attributed script.
type Client struct {
	api    *listenapi.Client
	model  string
	logger zerolog.Logger
}

func NewClient(apiKey, model string, logger zerolog.Logger) *Client {
	c := &Client{
		model:  model,
		logger: logger.With().Str("component", "transcription_client").Logger(),
	}
	if c.model == "" {
		c.model = "nova-2"
	}
	if apiKey != "" {
		rest := listenclient.NewREST(apiKey, &interfaces.ClientOptions{})
		c.api = listenapi.New(rest)
	}
	return c
}

func (c *Client) ready(op string) error {
	if c.api == nil {
		return faults.New(faults.KindConfiguration, op, "transcription api key is not configured")
	}
	return nil
}

func (c *Client) options() *interfaces.PreRecordedTranscriptionOptions {
	return &interfaces.PreRecordedTranscriptionOptions{
		Model:       c.model,
		SmartFormat: true,
		Punctuate:   true,
		Diarize:     true,
		Utterances:  true,
	}
}

// TranscribeFromURL transcribes a recording the provider can fetch itself.
func (c *Client) TranscribeFromURL(ctx context.Context, recordingURL string) (string, error) {
	const op = "transcription.from_url"
	if err := c.ready(op); err != nil {
		return "", err
	}
	if recordingURL == "" {
		return "", faults.New(faults.KindValidation, op, "recording url is required")
	}

	res, err := c.api.FromURL(ctx, recordingURL, c.options())
	if err != nil {
		return "", faults.Wrap(faults.KindProvider, op, "transcription request failed", err)
	}
	return c.render(res), nil
}

// TranscribeFromStream transcribes audio read from r, for recordings that
// are only reachable through an authenticated download. mimeType names the
// container of the stream; the prerecorded API detects the container from
// the bytes themselves, so it only feeds the request log.
func (c *Client) TranscribeFromStream(ctx context.Context, r io.Reader, mimeType string) (string, error) {
	const op = "transcription.from_stream"
	if err := c.ready(op); err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.logger.Debug().Str("mime_type", mimeType).Msg("transcribing recording stream")

	res, err := c.api.FromStream(ctx, r, c.options())
	if err != nil {
		return "", faults.Wrap(faults.KindProvider, op, "transcription request failed", err)
	}
	return c.render(res), nil
}

// render prefers the diarized utterance list, timestamped and attributed
// per speaker. Without utterances it falls back to the flat transcript.
// An empty result is a valid outcome for a silent recording, not an error.
func (c *Client) render(res *restinterfaces.PreRecordedResponse) string {
	if res == nil || res.Results == nil {
		return ""
	}

	if len(res.Results.Utterances) > 0 {
		var b strings.Builder
		for _, u := range res.Results.Utterances {
			text := strings.TrimSpace(u.Transcript)
			if text == "" {
				continue
			}
			fmt.Fprintf(&b, "[%s] Speaker %d: %s\n", formatOffset(u.Start), u.Speaker, text)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	for _, channel := range res.Results.Channels {
		for _, alt := range channel.Alternatives {
			if text := strings.TrimSpace(alt.Transcript); text != "" {
				return text
			}
		}
	}
	return ""
}

// formatOffset renders a second offset as mm:ss, minutes uncapped.
func formatOffset(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
