package services

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"keygate/internal/common"
	"keygate/internal/dbx"
	"keygate/internal/server/models"
	"keygate/internal/server/repositories/keys"
	"keygate/internal/server/repositories/members"
	"keygate/internal/server/repositories/statuses"
	"keygate/internal/server/repositories/users"
)

// The service tests run against in-memory repositories so they exercise the
// decision logic, not SQL. The *sql.DB handle still has to hand out
// transactions, so sqlmock provides one; tests that take the transactional
// path declare the expected begin/commit/rollback pair.

func newTxDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type fakeUsers struct {
	byID map[string]*models.User
	// getErr, when set, is returned by every Get.
	getErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[string]*models.User)}
}

func (f *fakeUsers) Get(_ context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	if _, ok := f.byID[user.ID]; ok {
		return common.ErrAlreadyEnrolled
	}
	cp := *user
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) List(_ context.Context, limit int) ([]models.User, error) {
	out := make([]models.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUsers) SetExpiry(_ context.Context, id string, expiresAt *time.Time) error {
	u, ok := f.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.ExpiresAt = expiresAt
	return nil
}

func (f *fakeUsers) SetVIP(_ context.Context, id string, vip bool) error {
	u, ok := f.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.VIP = vip
	return nil
}

func (f *fakeUsers) SetMaxDuration(_ context.Context, id string, seconds int) error {
	u, ok := f.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.MaxDurationSeconds = seconds
	return nil
}

func (f *fakeUsers) SetConcurrency(_ context.Context, id string, quota int) error {
	u, ok := f.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.ConcurrencyQuota = quota
	return nil
}

func (f *fakeUsers) Count(_ context.Context) (int, error) {
	return len(f.byID), nil
}

func (f *fakeUsers) CountVIP(_ context.Context) (int, error) {
	n := 0
	for _, u := range f.byID {
		if u.VIP {
			n++
		}
	}
	return n, nil
}

type fakeKeys struct {
	byID map[string]*models.Key
	// duplicateCreates forces that many leading Create calls to report a
	// token collision.
	duplicateCreates int
	createCalls      int
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{byID: make(map[string]*models.Key)}
}

func (f *fakeKeys) Get(_ context.Context, id string) (*models.Key, error) {
	k, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (f *fakeKeys) Create(_ context.Context, key *models.Key) error {
	f.createCalls++
	if f.createCalls <= f.duplicateCreates {
		return common.ErrDuplicateKey
	}
	if _, ok := f.byID[key.ID]; ok {
		return common.ErrDuplicateKey
	}
	cp := *key
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.byID[key.ID] = &cp
	return nil
}

func (f *fakeKeys) MarkUsed(_ context.Context, keyID, userID string) error {
	k, ok := f.byID[keyID]
	if !ok {
		return common.ErrNotFound
	}
	if k.UsedBy != nil {
		return common.ErrKeyAlreadyUsed
	}
	k.UsedBy = &userID
	return nil
}

func (f *fakeKeys) List(_ context.Context, limit int) ([]models.Key, error) {
	out := make([]models.Key, 0, len(f.byID))
	for _, k := range f.byID {
		out = append(out, *k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeKeys) Count(_ context.Context) (int, error) {
	return len(f.byID), nil
}

func (f *fakeKeys) CountUsed(_ context.Context) (int, error) {
	n := 0
	for _, k := range f.byID {
		if k.UsedBy != nil {
			n++
		}
	}
	return n, nil
}

type fakeMembers struct {
	staff  map[string]models.Membership
	admins map[string]models.Membership
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{
		staff:  make(map[string]models.Membership),
		admins: make(map[string]models.Membership),
	}
}

func (f *fakeMembers) add(set map[string]models.Membership, userID, addedBy string) error {
	set[userID] = models.Membership{UserID: userID, AddedBy: addedBy, CreatedAt: time.Now()}
	return nil
}

func (f *fakeMembers) remove(set map[string]models.Membership, userID string) error {
	if _, ok := set[userID]; !ok {
		return common.ErrNotFound
	}
	delete(set, userID)
	return nil
}

func list(set map[string]models.Membership) []models.Membership {
	out := make([]models.Membership, 0, len(set))
	for _, m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (f *fakeMembers) AddStaff(_ context.Context, userID, addedBy string) error {
	return f.add(f.staff, userID, addedBy)
}

func (f *fakeMembers) RemoveStaff(_ context.Context, userID string) error {
	return f.remove(f.staff, userID)
}

func (f *fakeMembers) IsStaff(_ context.Context, userID string) (bool, error) {
	_, ok := f.staff[userID]
	return ok, nil
}

func (f *fakeMembers) ListStaff(_ context.Context) ([]models.Membership, error) {
	return list(f.staff), nil
}

func (f *fakeMembers) CountStaff(_ context.Context) (int, error) {
	return len(f.staff), nil
}

func (f *fakeMembers) AddAdmin(_ context.Context, userID, addedBy string) error {
	return f.add(f.admins, userID, addedBy)
}

func (f *fakeMembers) RemoveAdmin(_ context.Context, userID string) error {
	return f.remove(f.admins, userID)
}

func (f *fakeMembers) IsAdmin(_ context.Context, userID string) (bool, error) {
	_, ok := f.admins[userID]
	return ok, nil
}

func (f *fakeMembers) ListAdmins(_ context.Context) ([]models.Membership, error) {
	return list(f.admins), nil
}

func (f *fakeMembers) CountAdmins(_ context.Context) (int, error) {
	return len(f.admins), nil
}

func membership(userID string) models.Membership {
	return models.Membership{UserID: userID, AddedBy: "seed", CreatedAt: time.Now()}
}

type fakeStatuses struct {
	current *models.StatusRecord
}

func (f *fakeStatuses) Set(_ context.Context, rec *models.StatusRecord) error {
	cp := *rec
	cp.UpdatedAt = time.Now()
	f.current = &cp
	rec.UpdatedAt = cp.UpdatedAt
	return nil
}

func (f *fakeStatuses) GetLatest(_ context.Context) (*models.StatusRecord, error) {
	if f.current == nil {
		return nil, common.ErrNotFound
	}
	cp := *f.current
	return &cp, nil
}

type fakeManager struct {
	users    *fakeUsers
	keys     *fakeKeys
	members  *fakeMembers
	statuses *fakeStatuses
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		users:    newFakeUsers(),
		keys:     newFakeKeys(),
		members:  newFakeMembers(),
		statuses: &fakeStatuses{},
	}
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeManager) MigrateTo(context.Context, *sql.DB, int64) error { return nil }

func (m *fakeManager) Version(context.Context, *sql.DB) (int64, error) { return 0, nil }

func (m *fakeManager) VerifySchema(context.Context, *sql.DB) ([]string, error) { return nil, nil }

func (m *fakeManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *fakeManager) Keys(dbx.DBTX) keys.Repository { return m.keys }

func (m *fakeManager) Members(dbx.DBTX) members.Repository { return m.members }

func (m *fakeManager) Statuses(dbx.DBTX) statuses.Repository { return m.statuses }
