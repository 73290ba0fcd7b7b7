package orgs

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrail/jobtrail/pkg/rbac"
)

func TestMemberStoreGetActiveRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewMemberStore()

	t.Run("active member", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM organization_members")).
			WithArgs(int64(1), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))

		role, ok, err := store.GetActiveRole(db, 1, 7)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, rbac.RoleAdmin, role)
	})

	t.Run("not a member", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM organization_members")).
			WithArgs(int64(1), int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}))

		_, ok, err := store.GetActiveRole(db, 1, 8)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberStoreUpsertFromInvitation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("creates a new membership", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status FROM organization_members")).
			WithArgs(int64(1), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO organization_members")).
			WithArgs(int64(1), int64(7), rbac.RoleManager, now).
			WillReturnResult(sqlmock.NewResult(10, 1))

		outcome, err := NewMemberStore().UpsertFromInvitation(db, 1, 7, rbac.RoleManager, now)
		require.NoError(t, err)
		assert.Equal(t, UpsertCreated, outcome)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reactivates a removed row with the new role", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status FROM organization_members")).
			WithArgs(int64(1), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(10, "removed"))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE organization_members")).
			WithArgs(rbac.RoleMember, now, int64(10)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		outcome, err := NewMemberStore().UpsertFromInvitation(db, 1, 7, rbac.RoleMember, now)
		require.NoError(t, err)
		assert.Equal(t, UpsertReactivated, outcome)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already active row is untouched", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status FROM organization_members")).
			WithArgs(int64(1), int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(10, "active"))

		outcome, err := NewMemberStore().UpsertFromInvitation(db, 1, 7, rbac.RoleMember, now)
		require.NoError(t, err)
		assert.Equal(t, UpsertAlreadyActive, outcome)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMemberStoreUpdateRole(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("changes a non-owner role", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM organization_members")).
			WithArgs(int64(5), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("member"))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE organization_members SET role")).
			WithArgs(rbac.RoleManager, now, int64(5), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		outcome, err := NewMemberStore().UpdateRole(db, 1, 5, rbac.RoleManager, now)
		require.NoError(t, err)
		assert.Equal(t, MutateOK, outcome)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses the owner target", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM organization_members")).
			WithArgs(int64(5), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("owner"))

		outcome, err := NewMemberStore().UpdateRole(db, 1, 5, rbac.RoleManager, now)
		require.NoError(t, err)
		assert.Equal(t, MutateTargetIsOwner, outcome)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing or removed member", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM organization_members")).
			WithArgs(int64(5), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}))

		outcome, err := NewMemberStore().UpdateRole(db, 1, 5, rbac.RoleManager, now)
		require.NoError(t, err)
		assert.Equal(t, MutateNotFound, outcome)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMemberStoreRemove(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("soft deletes a member", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM organization_members")).
			WithArgs(int64(5), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("manager"))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE organization_members SET status = 'removed'")).
			WithArgs(now, int64(5), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		outcome, err := NewMemberStore().Remove(db, 1, 5, now)
		require.NoError(t, err)
		assert.Equal(t, MutateOK, outcome)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner cannot be removed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM organization_members")).
			WithArgs(int64(5), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("owner"))

		outcome, err := NewMemberStore().Remove(db, 1, 5, now)
		require.NoError(t, err)
		assert.Equal(t, MutateTargetIsOwner, outcome)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMemberStoreListActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "organization_id", "user_id", "role", "status", "joined_at", "created_at", "updated_at"}).
		AddRow(1, 1, 7, "owner", "active", now, now, now).
		AddRow(2, 1, 8, "member", "active", now, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM organization_members")).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	members, err := NewMemberStore().ListActive(db, 1)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, rbac.RoleOwner, members[0].Role)
	assert.Equal(t, int64(8), members[1].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
