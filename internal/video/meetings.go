package video

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

type Meeting struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	JoinURL   string    `json:"join_url"`
	StartURL  string    `json:"start_url"`
	Password  string    `json:"password"`
	StartTime time.Time `json:"start_time"`
	Duration  int       `json:"duration"`
}

type CreateMeetingInput struct {
	SessionID       int64
	Topic           string
	StartTime       time.Time
	DurationMinutes int
	Timezone        string
}

type meetingSettings struct {
	HostVideo        bool   `json:"host_video"`
	ParticipantVideo bool   `json:"participant_video"`
	JoinBeforeHost   bool   `json:"join_before_host"`
	JBHTime          int    `json:"jbh_time"`
	MuteUponEntry    bool   `json:"mute_upon_entry"`
	WaitingRoom      bool   `json:"waiting_room"`
	AutoRecording    string `json:"auto_recording"`
	RecordingAuth    bool   `json:"recording_authentication"`
	OnDemand         bool   `json:"on_demand"`
	Transcription    bool   `json:"auto_transcription"`
}

// sessionMeetingSettings are invariant business defaults for mentorship
// sessions, not caller-configurable per call.
func sessionMeetingSettings() meetingSettings {
	return meetingSettings{
		HostVideo:        true,
		ParticipantVideo: true,
		JoinBeforeHost:   true,
		JBHTime:          5,
		MuteUponEntry:    true,
		WaitingRoom:      false,
		AutoRecording:    "cloud",
		RecordingAuth:    true,
		OnDemand:         false,
		Transcription:    true,
	}
}

type meetingRequest struct {
	Topic     string          `json:"topic"`
	Type      int             `json:"type"`
	StartTime string          `json:"start_time"`
	Duration  int             `json:"duration"`
	Timezone  string          `json:"timezone,omitempty"`
	Settings  meetingSettings `json:"settings"`
}

type meetingResponse struct {
	ID        int64  `json:"id"`
	Topic     string `json:"topic"`
	JoinURL   string `json:"join_url"`
	StartURL  string `json:"start_url"`
	Password  string `json:"password"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
}

const scheduledMeetingType = 2

func (r meetingResponse) toMeeting() *Meeting {
	startTime, _ := time.Parse(time.RFC3339, r.StartTime)
	return &Meeting{
		ID:        strconv.FormatInt(r.ID, 10),
		Topic:     r.Topic,
		JoinURL:   r.JoinURL,
		StartURL:  r.StartURL,
		Password:  r.Password,
		StartTime: startTime,
		Duration:  r.Duration,
	}
}

func (c *Client) CreateMeeting(ctx context.Context, input CreateMeetingInput) (*Meeting, error) {
	req := meetingRequest{
		Topic:     input.Topic,
		Type:      scheduledMeetingType,
		StartTime: input.StartTime.UTC().Format(time.RFC3339),
		Duration:  input.DurationMinutes,
		Timezone:  input.Timezone,
		Settings:  sessionMeetingSettings(),
	}

	var resp meetingResponse
	meta := callMeta{op: "video.create_meeting", sessionID: input.SessionID}
	if err := c.do(ctx, meta, "POST", "/users/me/meetings", req, &resp); err != nil {
		return nil, err
	}
	return resp.toMeeting(), nil
}

func (c *Client) UpdateMeeting(ctx context.Context, sessionID int64, meetingID string, startTime time.Time, durationMinutes int) error {
	req := meetingRequest{
		Type:      scheduledMeetingType,
		StartTime: startTime.UTC().Format(time.RFC3339),
		Duration:  durationMinutes,
		Settings:  sessionMeetingSettings(),
	}
	meta := callMeta{op: "video.update_meeting", sessionID: sessionID, meetingID: meetingID}
	return c.do(ctx, meta, "PATCH", "/meetings/"+meetingID, req, nil)
}

func (c *Client) DeleteMeeting(ctx context.Context, sessionID int64, meetingID string) error {
	meta := callMeta{op: "video.delete_meeting", sessionID: sessionID, meetingID: meetingID}
	return c.do(ctx, meta, "DELETE", "/meetings/"+meetingID, nil, nil)
}

func (c *Client) GetMeeting(ctx context.Context, sessionID int64, meetingID string) (*Meeting, error) {
	var resp meetingResponse
	meta := callMeta{op: "video.get_meeting", sessionID: sessionID, meetingID: meetingID}
	if err := c.do(ctx, meta, "GET", "/meetings/"+meetingID, nil, &resp); err != nil {
		return nil, err
	}
	if resp.ID == 0 {
		return nil, fmt.Errorf("video.get_meeting: response carried no meeting id")
	}
	return resp.toMeeting(), nil
}
