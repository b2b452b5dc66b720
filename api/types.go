package api

import (
	"context"

	"taskzen-api/domain"
)

// Storage abstracts persistence for handlers and sessions.
type Storage interface {
	FetchObjectives(ctx context.Context, userID string) ([]domain.Objective, int, error)
	CreateObjective(ctx context.Context, userID string, obj domain.Objective) (string, error)
	UpdateSubtasks(ctx context.Context, userID, objectiveID string, subtasks []domain.SubTask) error
	UpdateStatus(ctx context.Context, userID, objectiveID string, status domain.Status) error
	DeleteObjective(ctx context.Context, userID, objectiveID string) error
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
	SaveSettings(ctx context.Context, userID string, settings domain.Settings) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Adviser produces mentorship text for a user's active objectives.
type Adviser interface {
	AdviseFor(ctx context.Context, userID, objectives string) (string, error)
}
