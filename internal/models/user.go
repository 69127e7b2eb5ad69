package models

import "time"

const (
	RoleMentee = "mentee"
	RoleMentor = "mentor"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

/// MentorProfile carries the fields booking needs: a mentor must be onboarded
// with a positive hourly rate before slots can be sold.
type MentorProfile struct {
	UserID             int64     `json:"user_id"`
	FullName           string    `json:"full_name"`
	Bio                *string   `json:"bio"`
	Skills             []string  `json:"skills"`
	HourlyRate         *float64  `json:"hourly_rate"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
