package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/residents/internal/database"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	mu sync.Mutex

	residents  map[string]database.Resident
	updateLogs []database.UpdateLog
	users      map[int64]database.User
	nextUserID int64
	importLogs map[string]database.ImportLog
	settings   map[string]string

	now func() time.Time

	// error injection
	countErr  error
	batchErr      error
	insertErr     map[string]error
	updateUserErr error

	afterCalls int
	staleCut   time.Time
	purgeCut   time.Time
}

var _ Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		residents:  make(map[string]database.Resident),
		users:      make(map[int64]database.User),
		nextUserID: 100,
		importLogs: make(map[string]database.ImportLog),
		settings:   make(map[string]string),
		insertErr:  make(map[string]error),
		now:        func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) },
	}
}

func strPtr(s string) *string { return &s }

func (f *fakeStore) addResident(r database.Resident) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = f.now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	f.residents[r.ResidentID] = r
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func matches(flt database.ResidentFilter, r database.Resident) bool {
	if flt.Restrict {
		ok := false
		for _, s := range flt.Secretariats {
			if s == r.Secretariat {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	if flt.Mandal != "" && flt.Mandal != r.Mandal {
		return false
	}
	if flt.Secretariat != "" && flt.Secretariat != r.Secretariat {
		return false
	}
	if flt.PHC != "" && flt.PHC != r.PHC {
		return false
	}
	if flt.Search != "" {
		q := strings.ToLower(flt.Search)
		if !strings.Contains(strings.ToLower(r.Name), q) &&
			!strings.Contains(strings.ToLower(r.ResidentID), q) &&
			!strings.Contains(strings.ToLower(r.HouseholdID), q) {
			return false
		}
	}
	if flt.UpdatedFrom != nil && r.UpdatedAt.Before(*flt.UpdatedFrom) {
		return false
	}
	return true
}

func (f *fakeStore) filtered(flt database.ResidentFilter) []database.Resident {
	var out []database.Resident
	for _, r := range f.residents {
		if matches(flt, r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResidentID < out[j].ResidentID })
	return out
}

func (f *fakeStore) CountResidents(ctx context.Context, flt database.ResidentFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.filtered(flt))), nil
}

func (f *fakeStore) ListResidents(ctx context.Context, flt database.ResidentFilter, limit, offset int) ([]database.Resident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.filtered(flt)
	if offset >= len(rows) {
		return []database.Resident{}, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeStore) ResidentsAfter(ctx context.Context, flt database.ResidentFilter, afterID string, limit int) ([]database.Resident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterCalls++
	if f.batchErr != nil && f.afterCalls > 1 {
		return nil, f.batchErr
	}
	var out []database.Resident
	for _, r := range f.filtered(flt) {
		if r.ResidentID > afterID {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) GetResident(ctx context.Context, id string) (database.Resident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.residents[id]
	if !ok {
		return database.Resident{}, database.ErrNotFound
	}
	return r, nil
}

func fromParams(p database.ResidentParams) database.Resident {
	return database.Resident{
		ResidentID: p.ResidentID, HouseholdID: p.HouseholdID, Name: p.Name, Gender: p.Gender,
		DateOfBirth: p.DateOfBirth, UID: p.UID, MobileNumber: p.MobileNumber, HealthID: p.HealthID,
		District: p.District, Mandal: p.Mandal, Secretariat: p.Secretariat, PHC: p.PHC,
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergePtr(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

// merge applies p like the SQL merge: it reports false and leaves
// updated_at alone when nothing would change.
func (f *fakeStore) merge(p database.ResidentParams) bool {
	before := f.residents[p.ResidentID]
	r := before
	mergeString(&r.HouseholdID, p.HouseholdID)
	mergeString(&r.Name, p.Name)
	mergeString(&r.Gender, p.Gender)
	if p.DateOfBirth != nil {
		r.DateOfBirth = p.DateOfBirth
	}
	mergePtr(&r.UID, p.UID)
	mergePtr(&r.MobileNumber, p.MobileNumber)
	mergePtr(&r.HealthID, p.HealthID)
	mergeString(&r.District, p.District)
	mergeString(&r.Mandal, p.Mandal)
	mergeString(&r.Secretariat, p.Secretariat)
	mergeString(&r.PHC, p.PHC)
	if sameResident(before, r) {
		return false
	}
	r.UpdatedAt = f.now().Add(time.Minute)
	f.residents[p.ResidentID] = r
	return true
}

func sameResident(a, b database.Resident) bool {
	eqPtr := func(x, y *string) bool {
		return (x == nil && y == nil) || (x != nil && y != nil && *x == *y)
	}
	eqTime := func(x, y *time.Time) bool {
		return (x == nil && y == nil) || (x != nil && y != nil && x.Equal(*y))
	}
	return a.HouseholdID == b.HouseholdID && a.Name == b.Name && a.Gender == b.Gender &&
		eqTime(a.DateOfBirth, b.DateOfBirth) && eqPtr(a.UID, b.UID) &&
		eqPtr(a.MobileNumber, b.MobileNumber) && eqPtr(a.HealthID, b.HealthID) &&
		a.District == b.District && a.Mandal == b.Mandal &&
		a.Secretariat == b.Secretariat && a.PHC == b.PHC
}

func (f *fakeStore) InsertResident(ctx context.Context, p database.ResidentParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertErr[p.ResidentID]; err != nil {
		return false, err
	}
	if _, ok := f.residents[p.ResidentID]; ok {
		return false, nil
	}
	f.addResident(fromParams(p))
	return true, nil
}

func (f *fakeStore) UpdateResident(ctx context.Context, p database.ResidentParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.residents[p.ResidentID]; !ok {
		return false, nil
	}
	return f.merge(p), nil
}

func (f *fakeStore) UpsertResident(ctx context.Context, p database.ResidentParams) (database.WriteOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertErr[p.ResidentID]; err != nil {
		return database.Unchanged, err
	}
	if _, ok := f.residents[p.ResidentID]; !ok {
		f.addResident(fromParams(p))
		return database.Inserted, nil
	}
	if f.merge(p) {
		return database.Updated, nil
	}
	return database.Unchanged, nil
}

func (f *fakeStore) UpdateResidentField(ctx context.Context, id, field string, value *string, userID int64) (database.FieldChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.residents[id]
	if !ok {
		return database.FieldChange{}, database.ErrNotFound
	}

	var slot **string
	switch field {
	case FieldUID:
		slot = &r.UID
	case FieldMobileNumber:
		slot = &r.MobileNumber
	case FieldHealthID:
		slot = &r.HealthID
	case FieldHouseholdID:
		hh := &r.HouseholdID
		old := *hh
		if value != nil && *value == old || value == nil && old == "" {
			return database.FieldChange{Resident: r, OldValue: &old}, nil
		}
		*hh = ""
		if value != nil {
			*hh = *value
		}
		r.UpdatedAt = f.now().Add(time.Hour)
		f.residents[id] = r
		f.log(id, field, &old, value, userID)
		return database.FieldChange{Resident: r, OldValue: &old, Changed: true}, nil
	}

	old := *slot
	if (old == nil && value == nil) || (old != nil && value != nil && *old == *value) {
		return database.FieldChange{Resident: r, OldValue: old}, nil
	}
	*slot = value
	r.UpdatedAt = f.now().Add(time.Hour)
	f.residents[id] = r
	f.log(id, field, old, value, userID)
	return database.FieldChange{Resident: r, OldValue: old, Changed: true}, nil
}

func (f *fakeStore) log(id, field string, old, newValue *string, userID int64) {
	uid := userID
	f.updateLogs = append(f.updateLogs, database.UpdateLog{
		ID: int64(len(f.updateLogs) + 1), ResidentID: id, Field: field,
		OldValue: old, NewValue: newValue, UserID: &uid, CreatedAt: f.now(),
	})
}

func (f *fakeStore) ListUpdateLogs(ctx context.Context, id string, limit int) ([]database.UpdateLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.UpdateLog
	for i := len(f.updateLogs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.updateLogs[i].ResidentID == id {
			out = append(out, f.updateLogs[i])
		}
	}
	return out, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, p database.CreateUserParams) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == p.Username {
			return database.User{}, errDuplicateUser
		}
	}
	u := database.User{
		ID: f.nextUserID, Username: p.Username, PasswordHash: p.PasswordHash,
		FullName: p.FullName, Role: p.Role, Secretariats: p.Secretariats, Active: p.Active,
		CreatedAt: f.now(), UpdatedAt: f.now(),
	}
	f.users[u.ID] = u
	f.nextUserID++
	return u, nil
}

func (f *fakeStore) EnsureUser(ctx context.Context, p database.CreateUserParams) (bool, error) {
	_, err := f.CreateUser(ctx, p)
	if err == errDuplicateUser {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return database.User{}, database.ErrNotFound
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return database.User{}, database.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]database.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, p database.UpdateUserParams) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[p.ID]
	if !ok {
		return database.User{}, database.ErrNotFound
	}
	if f.updateUserErr != nil {
		return database.User{}, f.updateUserErr
	}
	u.FullName, u.Role, u.Secretariats, u.Active = p.FullName, p.Role, p.Secretariats, p.Active
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	f.users[p.ID] = u
	return u, nil
}

func (f *fakeStore) SetUserPassword(ctx context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.PasswordHash = hash
	f.users[id] = u
	return nil
}

func (f *fakeStore) CreateImportLog(ctx context.Context, l database.ImportLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.importLogs[l.ID.String()] = l
	return nil
}

func (f *fakeStore) FinishImportLog(ctx context.Context, l database.ImportLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.importLogs[l.ID.String()] = l
	return nil
}

func (f *fakeStore) ListImportLogs(ctx context.Context, limit int) ([]database.ImportLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]database.ImportLog, 0, len(f.importLogs))
	for _, l := range f.importLogs {
		out = append(out, l)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) FailStaleImportLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleCut = cutoff
	var n int64
	for k, l := range f.importLogs {
		if l.Status == database.ImportRunning && l.StartedAt.Before(cutoff) {
			l.Status = database.ImportFailed
			f.importLogs[k] = l
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) PurgeImportLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeCut = cutoff
	var n int64
	for k, l := range f.importLogs {
		if l.Status != database.ImportRunning && l.StartedAt.Before(cutoff) {
			delete(f.importLogs, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetSetting(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.settings[key]
	if !ok {
		return "", database.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) SetSetting(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[key] = value
	return nil
}

func (f *fakeStore) DeleteSetting(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.settings, key)
	return nil
}

func (f *fakeStore) Summarize(ctx context.Context, flt database.ResidentFilter, cutoff *time.Time) (database.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s database.Summary
	households := map[string]bool{}
	for _, r := range f.filtered(flt) {
		s.Total++
		if r.HouseholdID != "" {
			households[r.HouseholdID] = true
		}
		if r.UID != nil {
			s.WithUID++
		}
		if r.MobileNumber != nil {
			s.WithMobile++
		}
		if r.HealthID != nil {
			s.WithHealthID++
		}
		if updatedSince(r, cutoff) {
			s.Updated++
		}
	}
	s.Households = int64(len(households))
	s.Pending = s.Total - s.Updated
	return s, nil
}

func updatedSince(r database.Resident, cutoff *time.Time) bool {
	if !r.UpdatedAt.After(r.CreatedAt) {
		return false
	}
	return cutoff == nil || !r.UpdatedAt.Before(*cutoff)
}

func (f *fakeStore) Breakdown(ctx context.Context, by string, flt database.ResidentFilter, cutoff *time.Time) ([]database.BreakdownRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := map[string]*database.BreakdownRow{}
	for _, r := range f.filtered(flt) {
		var key string
		switch by {
		case "district":
			key = r.District
		case "mandal":
			key = r.Mandal
		case "secretariat":
			key = r.Secretariat
		case "phc":
			key = r.PHC
		}
		row, ok := rows[key]
		if !ok {
			row = &database.BreakdownRow{Key: key}
			rows[key] = row
		}
		row.Total++
		if updatedSince(r, cutoff) {
			row.Updated++
		}
	}
	out := make([]database.BreakdownRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errDuplicateUser = fakeError(`ERROR: duplicate key value violates unique constraint "users_username_key"`)
