package repository

import (
	"context"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/models"
)

type MentorProfileRepository struct {
	db DBTX
}

func NewMentorProfileRepository(db DBTX) *MentorProfileRepository {
	return &MentorProfileRepository{db: db}
}

func (r *MentorProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO mentor_profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *MentorProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.MentorProfile, error) {
	query := `
		SELECT user_id, full_name, bio, skills, hourly_rate, onboarding_complete, created_at, updated_at
		FROM mentor_profiles
		WHERE user_id = $1
	`
	var profile models.MentorProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.FullName,
		&profile.Bio,
		&profile.Skills,
		&profile.HourlyRate,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

type MentorOnboardingInput struct {
	FullName   string
	Bio        *string
	Skills     []string
	HourlyRate float64
}

func (r *MentorProfileRepository) UpdateOnboarding(
	ctx context.Context,
	userID int64,
	input MentorOnboardingInput,
) (*models.MentorProfile, error) {
	query := `
		UPDATE mentor_profiles
		SET full_name = $2, bio = $3, skills = $4, hourly_rate = $5,
		    onboarding_complete = TRUE, updated_at = NOW()
		WHERE user_id = $1
		RETURNING user_id, full_name, bio, skills, hourly_rate, onboarding_complete, created_at, updated_at
	`
	var profile models.MentorProfile
	err := r.db.QueryRow(ctx, query, userID, input.FullName, input.Bio, input.Skills, input.HourlyRate).Scan(
		&profile.UserID,
		&profile.FullName,
		&profile.Bio,
		&profile.Skills,
		&profile.HourlyRate,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
