package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"taskzen-api/domain"
)

// StoreError wraps any persistence failure so provider-specific error codes
// never cross the package boundary. Every StoreError is recoverable: callers
// re-fetch and retry rather than crash.
type StoreError struct {
	Op  string
	err error
}

func (e *StoreError) Error() string { return "storage: " + e.Op + " failed" }

func (e *StoreError) Unwrap() error { return e.err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, err: err}
}

// Storage provides access to the objectives and settings tables.
type Storage struct {
	objectivesTable *aztables.Client
	settingsTable   *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, objectivesTable, settingsTable string) (*Storage, error) {
	clientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &clientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		objectivesTable: svc.NewClient(objectivesTable),
		settingsTable:   svc.NewClient(settingsTable),
	}, nil
}

// Subtasks and preferred days are stored as JSON strings because table
// properties are flat scalars.
type objectiveEntity struct {
	aztables.Entity
	Title         string `json:"Title"`
	Status        string `json:"Status"`
	Subtasks      string `json:"Subtasks"`
	PreferredDays string `json:"PreferredDays"`
}

func encodeObjectiveEntity(userID string, obj domain.Objective) ([]byte, error) {
	subtasks, err := json.Marshal(obj.Subtasks)
	if err != nil {
		return nil, err
	}
	days, err := json.Marshal(obj.PreferredDays)
	if err != nil {
		return nil, err
	}
	return json.Marshal(objectiveEntity{
		Entity:        aztables.Entity{PartitionKey: userID, RowKey: obj.ID},
		Title:         obj.Title,
		Status:        string(obj.Status),
		Subtasks:      string(subtasks),
		PreferredDays: string(days),
	})
}

// decodeObjectiveEntity coerces a raw table row into the strict objective
// shape. Rows that do not decode, or that carry an unknown status, are
// rejected here so malformed external data never reaches the engine.
func decodeObjectiveEntity(data []byte) (domain.Objective, error) {
	var ent objectiveEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Objective{}, err
	}
	status := domain.Status(ent.Status)
	if !domain.ValidStatus(status) {
		return domain.Objective{}, fmt.Errorf("unknown status %q", ent.Status)
	}
	obj := domain.Objective{
		ID:     ent.RowKey,
		Title:  ent.Title,
		Status: status,
	}
	if ent.Subtasks != "" {
		if err := json.Unmarshal([]byte(ent.Subtasks), &obj.Subtasks); err != nil {
			return domain.Objective{}, fmt.Errorf("subtasks: %w", err)
		}
	}
	if ent.PreferredDays != "" {
		if err := json.Unmarshal([]byte(ent.PreferredDays), &obj.PreferredDays); err != nil {
			return domain.Objective{}, fmt.Errorf("preferred days: %w", err)
		}
	}
	return obj, nil
}

// FetchObjectives retrieves all objectives for the provided user. Malformed
// rows are quarantined rather than failing the whole read; the count of
// skipped rows is returned so callers can log it.
func (s *Storage) FetchObjectives(ctx context.Context, userID string) ([]domain.Objective, int, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.objectivesTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	objectives := []domain.Objective{}
	skipped := 0
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, 0, storeErr("fetch objectives", err)
		}
		for _, raw := range resp.Entities {
			obj, err := decodeObjectiveEntity(raw)
			if err != nil {
				skipped++
				continue
			}
			objectives = append(objectives, obj)
		}
	}
	return objectives, skipped, nil
}

// CreateObjective persists a new objective and returns the assigned ID.
func (s *Storage) CreateObjective(ctx context.Context, userID string, obj domain.Objective) (string, error) {
	obj.ID = uuid.NewString()
	data, err := encodeObjectiveEntity(userID, obj)
	if err != nil {
		return "", storeErr("create objective", err)
	}
	if _, err := s.objectivesTable.AddEntity(ctx, data, nil); err != nil {
		return "", storeErr("create objective", err)
	}
	return obj.ID, nil
}

// UpdateSubtasks replaces the entire subtask sequence of an objective.
func (s *Storage) UpdateSubtasks(ctx context.Context, userID, objectiveID string, subtasks []domain.SubTask) error {
	encoded, err := json.Marshal(subtasks)
	if err != nil {
		return storeErr("update subtasks", err)
	}
	return s.mergeObjective(ctx, userID, objectiveID, map[string]any{"Subtasks": string(encoded)}, "update subtasks")
}

// UpdateStatus persists an objective status change.
func (s *Storage) UpdateStatus(ctx context.Context, userID, objectiveID string, status domain.Status) error {
	return s.mergeObjective(ctx, userID, objectiveID, map[string]any{"Status": string(status)}, "update status")
}

func (s *Storage) mergeObjective(ctx context.Context, userID, objectiveID string, props map[string]any, op string) error {
	props["PartitionKey"] = userID
	props["RowKey"] = objectiveID
	data, err := json.Marshal(props)
	if err != nil {
		return storeErr(op, err)
	}
	opts := aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeMerge}
	if _, err := s.objectivesTable.UpdateEntity(ctx, data, &opts); err != nil {
		return storeErr(op, err)
	}
	return nil
}

// DeleteObjective removes an objective record.
func (s *Storage) DeleteObjective(ctx context.Context, userID, objectiveID string) error {
	if _, err := s.objectivesTable.DeleteEntity(ctx, userID, objectiveID, nil); err != nil {
		return storeErr("delete objective", err)
	}
	return nil
}

type settingsEntity struct {
	aztables.Entity
	WeeklyCreditGoal int `json:"WeeklyCreditGoal"`
}

func decodeSettingsEntity(data []byte) (domain.Settings, error) {
	var ent settingsEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Settings{}, err
	}
	settings := domain.Settings{WeeklyCreditGoal: ent.WeeklyCreditGoal}
	if settings.WeeklyCreditGoal <= 0 {
		settings.WeeklyCreditGoal = domain.DefaultWeeklyCreditGoal
	}
	return settings, nil
}

// FetchSettings returns the user's settings, falling back to defaults when
// none are stored yet.
func (s *Storage) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	ent, err := s.settingsTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return domain.Settings{WeeklyCreditGoal: domain.DefaultWeeklyCreditGoal}, nil
		}
		return domain.Settings{}, storeErr("fetch settings", err)
	}
	settings, err := decodeSettingsEntity(ent.Value)
	if err != nil {
		return domain.Settings{}, storeErr("fetch settings", err)
	}
	return settings, nil
}

// SaveSettings upserts the user's settings record.
func (s *Storage) SaveSettings(ctx context.Context, userID string, settings domain.Settings) error {
	data, err := json.Marshal(settingsEntity{
		Entity:           aztables.Entity{PartitionKey: userID, RowKey: userID},
		WeeklyCreditGoal: settings.WeeklyCreditGoal,
	})
	if err != nil {
		return storeErr("save settings", err)
	}
	opts := aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}
	if _, err := s.settingsTable.UpsertEntity(ctx, data, &opts); err != nil {
		return storeErr("save settings", err)
	}
	return nil
}
