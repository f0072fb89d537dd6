package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/server/config"
	"github.com/dmitrijs2005/lifedash/internal/server/models"
	"github.com/dmitrijs2005/lifedash/internal/shared"
)

func newRecordService(t *testing.T, roles map[string]string) (*RecordService, *fakeRecords) {
	s, rec, _ := newRecordServiceWithUsers(t, roles)
	return s, rec
}

func newRecordServiceWithUsers(t *testing.T, roles map[string]string) (*RecordService, *fakeRecords, *fakeUsers) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	rec := &fakeRecords{roles: roles, count: 7}
	users := newFakeUsers()
	cfg := &config.Config{AdminEmail: "admin@lifedash.local"}
	return NewRecordService(db, &fakeRepoManager{records: rec, users: users}, cfg), rec, users
}

func TestSelect_CountOnlyIsUnscopedAndAnonymous(t *testing.T) {
	s, rec := newRecordService(t, nil)

	res, err := s.Select(context.Background(), "", shared.TableProfiles, shared.Filter{}, shared.SelectOptions{CountOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Count)
	assert.Empty(t, rec.filter.Eq)
}

func TestSelect_AnonymousCountWithFilterRefused(t *testing.T) {
	s, rec := newRecordService(t, nil)
	ctx := context.Background()
	opts := shared.SelectOptions{CountOnly: true}

	_, err := s.Select(ctx, "", shared.TableProfiles, shared.Where("email", "someone@example.com"), opts)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = s.Select(ctx, "", shared.TableTransactions, shared.Filter{}.AtLeast("date", "2026-01-01"), opts)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Empty(t, rec.table)
}

func TestSelect_SignedInCountWithFilter(t *testing.T) {
	s, rec := newRecordService(t, map[string]string{"u1": "user"})

	res, err := s.Select(context.Background(), "u1", shared.TableTasks, shared.Where("user_id", "u2"), shared.SelectOptions{CountOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Count)
	assert.Equal(t, "u2", rec.filter.Eq["user_id"])
}

func TestSelect_AnonymousRowsRefused(t *testing.T) {
	s, _ := newRecordService(t, nil)

	_, err := s.Select(context.Background(), "", shared.TableTasks, shared.Filter{}, shared.SelectOptions{})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestSelect_NonAdminScopedToOwnRows(t *testing.T) {
	s, rec := newRecordService(t, map[string]string{"u1": "user"})

	_, err := s.Select(context.Background(), "u1", shared.TableTasks, shared.Filter{}, shared.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.filter.Eq["user_id"])

	_, err = s.Select(context.Background(), "u1", shared.TableProfiles, shared.Filter{}, shared.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.filter.Eq["id"])
}

func TestSelect_NonAdminOtherUserRefused(t *testing.T) {
	s, _ := newRecordService(t, map[string]string{"u1": "user"})

	_, err := s.Select(context.Background(), "u1", shared.TableTasks, shared.Where("user_id", "u2"), shared.SelectOptions{})
	assert.ErrorIs(t, err, common.ErrorPermissionDenied)
}

func TestSelect_AdminUnscoped(t *testing.T) {
	s, rec := newRecordService(t, map[string]string{"a1": "admin"})

	_, err := s.Select(context.Background(), "a1", shared.TableTasks, shared.Where("user_id", "u2"), shared.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "u2", rec.filter.Eq["user_id"])
}

func TestSelect_UnknownTable(t *testing.T) {
	s, _ := newRecordService(t, nil)

	_, err := s.Select(context.Background(), "u1", "auth_users", shared.Filter{}, shared.SelectOptions{})
	assert.ErrorIs(t, err, common.ErrorInvalidArgument)
}

func TestSelect_RoleLookupFailure(t *testing.T) {
	s, rec := newRecordService(t, nil)
	rec.roleErr = errors.New("db down")

	_, err := s.Select(context.Background(), "u1", shared.TableTasks, shared.Filter{}, shared.SelectOptions{})
	assert.EqualError(t, err, "db down")
}

func TestInsert_OwnerPolicy(t *testing.T) {
	s, rec := newRecordService(t, map[string]string{"u1": "user", "a1": "admin"})
	ctx := context.Background()

	_, err := s.Insert(ctx, "u1", shared.TableTasks, shared.Row{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.row["user_id"])

	_, err = s.Insert(ctx, "u1", shared.TableTasks, shared.Row{"title": "x", "user_id": "u2"})
	assert.ErrorIs(t, err, common.ErrorPermissionDenied)

	_, err = s.Insert(ctx, "a1", shared.TableTasks, shared.Row{"title": "x", "user_id": "u2"})
	require.NoError(t, err)
	assert.Equal(t, "u2", rec.row["user_id"])

	_, err = s.Insert(ctx, "", shared.TableTasks, shared.Row{"title": "x"})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestUpdate_OwnerPolicy(t *testing.T) {
	s, rec := newRecordService(t, map[string]string{"u1": "user", "a1": "admin"})
	ctx := context.Background()

	_, err := s.Update(ctx, "u1", shared.TableTasks, shared.Where("id", "t1"), shared.Row{"status": "completed"})
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.filter.Eq["user_id"])
	assert.Equal(t, "t1", rec.filter.Eq["id"])

	_, err = s.Update(ctx, "u1", shared.TableTasks, shared.Where("id", "t1"), shared.Row{"user_id": "u2"})
	assert.ErrorIs(t, err, common.ErrorPermissionDenied)

	n, err := s.Update(ctx, "a1", shared.TableProfiles, shared.Where("id", "u1"), shared.Row{"role": "admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, shared.Filter{Eq: map[string]any{"id": "u1"}}, rec.filter)
}

func TestUpsert_NonAdmin(t *testing.T) {
	s, rec := newRecordService(t, map[string]string{"u1": "user"})
	ctx := context.Background()
	rec.upsertOut = shared.Row{"id": "u1"}

	_, err := s.Upsert(ctx, "u1", shared.TableProfiles, shared.Row{"id": "u1", "full_name": "A"}, false)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.upsertOpts.Owner)

	_, err = s.Upsert(ctx, "u1", shared.TableProfiles, shared.Row{"id": "u2"}, false)
	assert.ErrorIs(t, err, common.ErrorPermissionDenied)
}

func TestUpsert_SkippedRow(t *testing.T) {
	s, rec := newRecordService(t, map[string]string{"u1": "user"})
	ctx := context.Background()

	saved, err := s.Upsert(ctx, "u1", shared.TableProfiles, shared.Row{"id": "u1"}, true)
	require.NoError(t, err)
	assert.Nil(t, saved)
	assert.True(t, rec.upsertOpts.IgnoreDuplicates)

	_, err = s.Upsert(ctx, "u1", shared.TableProfiles, shared.Row{"id": "u1"}, false)
	assert.ErrorIs(t, err, common.ErrorPermissionDenied)
}

func TestUpsert_AdminWritesAnyRow(t *testing.T) {
	s, rec := newRecordService(t, map[string]string{"a1": "admin"})
	rec.upsertOut = shared.Row{"id": "u2"}

	_, err := s.Upsert(context.Background(), "a1", shared.TableProfiles, shared.Row{"id": "u2", "role": "user"}, false)
	require.NoError(t, err)
	assert.Empty(t, rec.upsertOpts.Owner)
}

func TestIsAdmin(t *testing.T) {
	s, _ := newRecordService(t, map[string]string{"a1": "admin", "u1": "user"})
	ctx := context.Background()

	ok, err := s.IsAdmin(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsAdmin(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsAdmin(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteRole_NonAdmin(t *testing.T) {
	ctx := context.Background()
	newUser := func(t *testing.T, email string) (*RecordService, *fakeRecords, string) {
		t.Helper()
		s, rec, users := newRecordServiceWithUsers(t, nil)
		u, err := users.Create(ctx, &models.User{Email: email})
		require.NoError(t, err)
		rec.roles = map[string]string{u.ID: "user"}
		return s, rec, u.ID
	}

	t.Run("update to admin refused", func(t *testing.T) {
		s, rec, id := newUser(t, "u2@example.com")
		rec.upsertOut = shared.Row{"id": id}

		n, err := s.Update(ctx, id, shared.TableProfiles, shared.Where("id", id), shared.Row{"role": "admin"})
		assert.ErrorIs(t, err, common.ErrorPermissionDenied)
		assert.Zero(t, n)
		assert.Nil(t, rec.row)

		_, err = s.Upsert(ctx, id, shared.TableProfiles, shared.Row{"id": id, "role": " Admin "}, false)
		assert.ErrorIs(t, err, common.ErrorPermissionDenied)

		_, err = s.Insert(ctx, id, shared.TableProfiles, shared.Row{"id": id, "role": "admin"})
		assert.ErrorIs(t, err, common.ErrorPermissionDenied)
	})

	t.Run("unknown role refused", func(t *testing.T) {
		s, _, id := newUser(t, "u2@example.com")

		_, err := s.Update(ctx, id, shared.TableProfiles, shared.Where("id", id), shared.Row{"role": "root"})
		assert.ErrorIs(t, err, common.ErrorPermissionDenied)
	})

	t.Run("user role allowed", func(t *testing.T) {
		s, rec, id := newUser(t, "u2@example.com")

		n, err := s.Update(ctx, id, shared.TableProfiles, shared.Where("id", id), shared.Row{"role": "user"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, "user", rec.row["role"])
	})

	t.Run("distinguished admin address may claim admin", func(t *testing.T) {
		s, rec, id := newUser(t, "Admin@LifeDash.local")

		n, err := s.Update(ctx, id, shared.TableProfiles, shared.Where("id", id), shared.Row{"role": "admin"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, "admin", rec.row["role"])
	})

	t.Run("first profile may claim admin", func(t *testing.T) {
		s, rec, id := newUser(t, "first@example.com")
		rec.count = 0
		rec.upsertOut = shared.Row{"id": id, "role": "admin"}

		saved, err := s.Upsert(ctx, id, shared.TableProfiles, shared.Row{"id": id, "role": "admin"}, false)
		require.NoError(t, err)
		assert.Equal(t, "admin", saved["role"])
	})
}

func TestWriteRole_CallerLookupFailure(t *testing.T) {
	s, _ := newRecordService(t, map[string]string{"u9": "user"})

	_, err := s.Update(context.Background(), "u9", shared.TableProfiles, shared.Where("id", "u9"), shared.Row{"role": "admin"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
