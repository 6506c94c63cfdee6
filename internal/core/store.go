package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/residents/internal/database"
)

// Store is the persistence the service needs. *database.Store satisfies it.
type Store interface {
	Ping(ctx context.Context) error

	CountResidents(ctx context.Context, f database.ResidentFilter) (int64, error)
	ListResidents(ctx context.Context, f database.ResidentFilter, limit, offset int) ([]database.Resident, error)
	ResidentsAfter(ctx context.Context, f database.ResidentFilter, afterID string, limit int) ([]database.Resident, error)
	GetResident(ctx context.Context, residentID string) (database.Resident, error)
	InsertResident(ctx context.Context, p database.ResidentParams) (bool, error)
	UpdateResident(ctx context.Context, p database.ResidentParams) (bool, error)
	UpsertResident(ctx context.Context, p database.ResidentParams) (database.WriteOutcome, error)
	UpdateResidentField(ctx context.Context, residentID, field string, value *string, userID int64) (database.FieldChange, error)
	ListUpdateLogs(ctx context.Context, residentID string, limit int) ([]database.UpdateLog, error)

	CreateUser(ctx context.Context, p database.CreateUserParams) (database.User, error)
	EnsureUser(ctx context.Context, p database.CreateUserParams) (bool, error)
	GetUserByUsername(ctx context.Context, username string) (database.User, error)
	GetUserByID(ctx context.Context, id int64) (database.User, error)
	ListUsers(ctx context.Context) ([]database.User, error)
	UpdateUser(ctx context.Context, p database.UpdateUserParams) (database.User, error)
	SetUserPassword(ctx context.Context, id int64, hash string) error

	CreateImportLog(ctx context.Context, l database.ImportLog) error
	FinishImportLog(ctx context.Context, l database.ImportLog) error
	ListImportLogs(ctx context.Context, limit int) ([]database.ImportLog, error)
	FailStaleImportLogs(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeImportLogs(ctx context.Context, cutoff time.Time) (int64, error)

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error

	Summarize(ctx context.Context, f database.ResidentFilter, cutoff *time.Time) (database.Summary, error)
	Breakdown(ctx context.Context, by string, f database.ResidentFilter, cutoff *time.Time) ([]database.BreakdownRow, error)
}

var _ Store = (*database.Store)(nil)
