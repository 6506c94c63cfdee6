package web

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/residents/internal/core"
	"github.com/JonMunkholm/residents/internal/database"
)

// memStore is the slice of core.Store the HTTP tests reach. Methods it does
// not override panic through the nil embedded interface.
type memStore struct {
	core.Store

	mu         sync.Mutex
	residents  map[string]database.Resident
	users      map[int64]database.User
	updateLogs []database.UpdateLog
	importLogs []database.ImportLog
	settings   map[string]string
	pingErr    error
}

func newMemStore() *memStore {
	return &memStore{
		residents: make(map[string]database.Resident),
		users:     make(map[int64]database.User),
		settings:  make(map[string]string),
	}
}

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) scoped(f database.ResidentFilter) []database.Resident {
	var out []database.Resident
	for _, r := range m.residents {
		if f.Restrict {
			in := false
			for _, s := range f.Secretariats {
				in = in || s == r.Secretariat
			}
			if !in {
				continue
			}
		}
		if f.Mandal != "" && f.Mandal != r.Mandal {
			continue
		}
		if f.Secretariat != "" && f.Secretariat != r.Secretariat {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResidentID < out[j].ResidentID })
	return out
}

func (m *memStore) CountResidents(_ context.Context, f database.ResidentFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.scoped(f))), nil
}

func (m *memStore) ListResidents(_ context.Context, f database.ResidentFilter, limit, offset int) ([]database.Resident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.scoped(f)
	if offset >= len(rows) {
		return []database.Resident{}, nil
	}
	rows = rows[offset:]
	return rows[:min(limit, len(rows))], nil
}

func (m *memStore) ResidentsAfter(_ context.Context, f database.ResidentFilter, afterID string, limit int) ([]database.Resident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Resident
	for _, r := range m.scoped(f) {
		if r.ResidentID > afterID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) GetResident(_ context.Context, id string) (database.Resident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.residents[id]
	if !ok {
		return database.Resident{}, database.ErrNotFound
	}
	return r, nil
}

func (m *memStore) InsertResident(_ context.Context, p database.ResidentParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.residents[p.ResidentID]; ok {
		return false, nil
	}
	m.residents[p.ResidentID] = database.Resident{
		ResidentID: p.ResidentID, HouseholdID: p.HouseholdID, Name: p.Name,
		UID: p.UID, MobileNumber: p.MobileNumber, HealthID: p.HealthID,
		Mandal: p.Mandal, Secretariat: p.Secretariat, CreatedAt: testNow, UpdatedAt: testNow,
	}
	return true, nil
}

func (m *memStore) UpsertResident(ctx context.Context, p database.ResidentParams) (database.WriteOutcome, error) {
	inserted, err := m.InsertResident(ctx, p)
	if err != nil || !inserted {
		return database.Unchanged, err
	}
	return database.Inserted, nil
}

func (m *memStore) UpdateResident(context.Context, database.ResidentParams) (bool, error) {
	return false, nil
}

func (m *memStore) UpdateResidentField(_ context.Context, id, field string, value *string, userID int64) (database.FieldChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.residents[id]
	if !ok {
		return database.FieldChange{}, database.ErrNotFound
	}
	var old *string
	switch field {
	case core.FieldMobileNumber:
		old, r.MobileNumber = r.MobileNumber, value
	case core.FieldUID:
		old, r.UID = r.UID, value
	case core.FieldHealthID:
		old, r.HealthID = r.HealthID, value
	}
	r.UpdatedAt = testNow.Add(time.Hour)
	m.residents[id] = r
	uid := userID
	m.updateLogs = append(m.updateLogs, database.UpdateLog{
		ID: int64(len(m.updateLogs) + 1), ResidentID: id, Field: field,
		OldValue: old, NewValue: value, UserID: &uid, CreatedAt: testNow,
	})
	return database.FieldChange{Resident: r, OldValue: old, Changed: true}, nil
}

func (m *memStore) ListUpdateLogs(_ context.Context, id string, limit int) ([]database.UpdateLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.UpdateLog
	for i := len(m.updateLogs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.updateLogs[i].ResidentID == id {
			out = append(out, m.updateLogs[i])
		}
	}
	return out, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return database.User{}, database.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.User{}, database.ErrNotFound
	}
	return u, nil
}

func (m *memStore) ListUsers(context.Context) ([]database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]database.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateUser(_ context.Context, p database.CreateUserParams) (database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := database.User{
		ID: int64(len(m.users) + 100), Username: p.Username, PasswordHash: p.PasswordHash,
		FullName: p.FullName, Role: p.Role, Secretariats: p.Secretariats, Active: p.Active,
		CreatedAt: testNow, UpdatedAt: testNow,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) CreateImportLog(_ context.Context, l database.ImportLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.importLogs = append(m.importLogs, l)
	return nil
}

func (m *memStore) FinishImportLog(_ context.Context, l database.ImportLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.importLogs {
		if m.importLogs[i].ID == l.ID {
			m.importLogs[i] = l
		}
	}
	return nil
}

func (m *memStore) ListImportLogs(_ context.Context, limit int) ([]database.ImportLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]database.ImportLog(nil), m.importLogs...)
	return out[:min(limit, len(out))], nil
}

func (m *memStore) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	if !ok {
		return "", database.ErrNotFound
	}
	return v, nil
}

func (m *memStore) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *memStore) DeleteSetting(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.settings, key)
	return nil
}

func (m *memStore) Summarize(_ context.Context, f database.ResidentFilter, _ *time.Time) (database.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.scoped(f)
	s := database.Summary{Total: int64(len(rows))}
	for _, r := range rows {
		if r.UID != nil {
			s.WithUID++
		}
	}
	s.Pending = s.Total
	return s, nil
}

func (m *memStore) Breakdown(_ context.Context, by string, f database.ResidentFilter, _ *time.Time) ([]database.BreakdownRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int64{}
	for _, r := range m.scoped(f) {
		key := r.Mandal
		if by == "secretariat" {
			key = r.Secretariat
		}
		counts[key]++
	}
	var out []database.BreakdownRow
	for k, n := range counts {
		out = append(out, database.BreakdownRow{Key: k, Total: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
