package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/residents/internal/database"
)

func TestListResidents_Pagination(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	seedResidents(store, 7, "Rampur")
	ctx := context.Background()

	page, err := svc.ListResidents(ctx, testAdmin, ResidentQuery{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Residents, 3)
	assert.Equal(t, "R04", page.Residents[0].ResidentID)

	page, err = svc.ListResidents(ctx, testAdmin, ResidentQuery{PageSize: 10000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxPageSize, page.PageSize)
}

func TestListResidents_ScopeAndMasking(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	seedResidents(store, 2, "Rampur")
	seedResidents(store, 3, "Kothapalli")
	ctx := context.Background()

	tests := []struct {
		name      string
		actor     Actor
		wantTotal int64
		wantUID   string
	}{
		{"admin sees all", testAdmin, 5, "123456789012"},
		{"officer sees assigned", testOfficer, 2, "123456789012"},
		{"secretary sees masked", testSecretary, 2, "XXXXXXXX9012"},
		{"no secretariats sees nothing", Actor{Role: RoleFieldOfficer}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListResidents(ctx, tt.actor, ResidentQuery{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, page.Total)
			if tt.wantUID != "" {
				require.NotEmpty(t, page.Residents)
				assert.Equal(t, tt.wantUID, *page.Residents[0].UID)
			}
		})
	}

	// stored values are untouched by masking
	assert.Equal(t, "123456789012", *store.residents["R01"].UID)
}

func TestListResidents_FilterNormalizesPlaces(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	seedResidents(store, 2, "Rampur")
	seedResidents(store, 1, "Kothapalli")

	page, err := svc.ListResidents(context.Background(), testAdmin, ResidentQuery{Secretariat: "KOTHAPALLI secretariat"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestGetResident(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	seedResidents(store, 1, "Rampur")
	seedResidents(store, 1, "Kothapalli")
	ctx := context.Background()

	r, err := svc.GetResident(ctx, testOfficer, " R01 ")
	require.NoError(t, err)
	assert.Equal(t, "R01", r.ResidentID)

	_, err = svc.GetResident(ctx, testOfficer, "K01")
	assert.ErrorIs(t, err, ErrNotFound, "out of scope looks like missing")

	_, err = svc.GetResident(ctx, testAdmin, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetResident(ctx, testAdmin, "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateResidentField(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	seedResidents(store, 1, "Rampur")
	seedResidents(store, 1, "Kothapalli")
	ctx := context.Background()

	upd, err := svc.UpdateResidentField(ctx, testOfficer, "R01", FieldMobileNumber, "+91-98765-43210")
	require.NoError(t, err)
	assert.True(t, upd.Changed)
	assert.Equal(t, "9876543210", *upd.Resident.MobileNumber)

	again, err := svc.UpdateResidentField(ctx, testOfficer, "R01", FieldMobileNumber, "9876543210")
	require.NoError(t, err)
	assert.False(t, again.Changed, "same value is a no-op")

	cleared, err := svc.UpdateResidentField(ctx, testAdmin, "R01", FieldHealthID, "")
	require.NoError(t, err)
	assert.False(t, cleared.Changed, "health id was already empty")

	logs, err := svc.ResidentHistory(ctx, testOfficer, "R01")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, FieldMobileNumber, logs[0].Field)
	assert.Nil(t, logs[0].OldValue)
	assert.Equal(t, "9876543210", *logs[0].NewValue)
	assert.Equal(t, testOfficer.UserID, *logs[0].UserID)
}

func TestUpdateResidentField_Rejects(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	seedResidents(store, 1, "Rampur")
	seedResidents(store, 1, "Kothapalli")
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   Actor
		id      string
		field   string
		value   string
		wantErr error
	}{
		{"secretary is read only", testSecretary, "R01", FieldMobileNumber, "9876543210", ErrForbidden},
		{"name is not editable", testAdmin, "R01", FieldName, "X", ErrInvalidField},
		{"out of scope", testOfficer, "K01", FieldMobileNumber, "9876543210", ErrNotFound},
		{"missing resident", testAdmin, "NOPE", FieldMobileNumber, "9876543210", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateResidentField(ctx, tt.actor, tt.id, tt.field, tt.value)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := svc.UpdateResidentField(ctx, testAdmin, "R01", FieldUID, "1234")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldUID, verr.Field)
	assert.Equal(t, "VAL002", MapError(err).Code)

	assert.Empty(t, store.updateLogs)
}

func TestResidentHistory_MasksUID(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	seedResidents(store, 1, "Rampur")
	ctx := context.Background()

	_, err := svc.UpdateResidentField(ctx, testAdmin, "R01", FieldUID, "9999 8888 7777")
	require.NoError(t, err)

	logs, err := svc.ResidentHistory(ctx, testSecretary, "R01")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "XXXXXXXX9012", *logs[0].OldValue)
	assert.Equal(t, "XXXXXXXX7777", *logs[0].NewValue)

	logs, err = svc.ResidentHistory(ctx, testAdmin, "R01")
	require.NoError(t, err)
	assert.Equal(t, "999988887777", *logs[0].NewValue)
}

func TestPresentResident(t *testing.T) {
	r := database.Resident{ResidentID: "R1"}
	assert.Nil(t, PresentResident(testSecretary, r).UID)

	r.UID = strPtr("123456789012")
	assert.Equal(t, "XXXXXXXX9012", *PresentResident(testSecretary, r).UID)
	assert.Equal(t, "123456789012", *r.UID)
}
