package transcription

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
)

func decodeResponse(t *testing.T, raw string) *restinterfaces.PreRecordedResponse {
	t.Helper()
	var res restinterfaces.PreRecordedResponse
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatalf("unmarshal response fixture: %v", err)
	}
	return &res
}

func TestRenderDiarizedUtterances(t *testing.T) {
	client := NewClient("", "", zerolog.Nop())
	res := decodeResponse(t, `{
		"results": {
			"utterances": [
				{"start": 0.4, "speaker": 0, "transcript": "Welcome to the session."},
				{"start": 65.2, "speaker": 1, "transcript": "Thanks, glad to be here."},
				{"start": 70.0, "speaker": 0, "transcript": "   "},
				{"start": 3605.5, "speaker": 1, "transcript": "Let us wrap up."}
			]
		}
	}`)

	got := client.render(res)
	want := strings.Join([]string{
		"[00:00] Speaker 0: Welcome to the session.",
		"[01:05] Speaker 1: Thanks, glad to be here.",
		"[60:05] Speaker 1: Let us wrap up.",
	}, "\n")
	if got != want {
		t.Fatalf("render mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderFallsBackToFlatTranscript(t *testing.T) {
	client := NewClient("", "", zerolog.Nop())
	res := decodeResponse(t, `{
		"results": {
			"channels": [
				{"alternatives": [{"transcript": ""}, {"transcript": "A flat transcript."}]}
			]
		}
	}`)

	if got := client.render(res); got != "A flat transcript." {
		t.Fatalf("expected flat transcript fallback, got %q", got)
	}
}

func TestRenderEmptyResultIsEmptyString(t *testing.T) {
	client := NewClient("", "", zerolog.Nop())

	if got := client.render(nil); got != "" {
		t.Fatalf("nil response: got %q", got)
	}
	if got := client.render(&restinterfaces.PreRecordedResponse{}); got != "" {
		t.Fatalf("empty response: got %q", got)
	}

	silent := decodeResponse(t, `{
		"results": {"channels": [{"alternatives": [{"transcript": "  "}]}]}
	}`)
	if got := client.render(silent); got != "" {
		t.Fatalf("silent recording: got %q", got)
	}
}

func TestTranscribeWithoutKeyFailsFast(t *testing.T) {
	client := NewClient("", "", zerolog.Nop())

	_, err := client.TranscribeFromURL(context.Background(), "https://recordings/abc")
	if !faults.Is(err, faults.KindConfiguration) {
		t.Fatalf("expected configuration fault, got %v", err)
	}
	_, err = client.TranscribeFromStream(context.Background(), strings.NewReader("audio"), "audio/mp4")
	if !faults.Is(err, faults.KindConfiguration) {
		t.Fatalf("expected configuration fault, got %v", err)
	}
}

func TestTranscribeRequiresRecordingURL(t *testing.T) {
	client := NewClient("key", "", zerolog.Nop())

	_, err := client.TranscribeFromURL(context.Background(), "")
	if !faults.Is(err, faults.KindValidation) {
		t.Fatalf("expected validation fault, got %v", err)
	}
}

func TestFormatOffset(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{59.9, "00:59"},
		{60, "01:00"},
		{754.3, "12:34"},
		{3725, "62:05"},
	}
	for _, tc := range cases {
		if got := formatOffset(tc.seconds); got != tc.want {
			t.Errorf("formatOffset(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
