package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sakif/checkfit/internal/apperror"
	"github.com/sakif/checkfit/internal/auth"
	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeStore is an in-memory implementation of all three repositories.
// One value backs all of them because HistoryByUser joins across users,
// activities and check-ins, like the SQL store does.
//
// A plain fake (not a mock framework) keeps the tests easy to read: you can
// see exactly what each method does.
type fakeStore struct {
	mu         sync.Mutex
	users      map[string]*model.User
	activities map[string]*model.Activity
	checkins   map[string]*model.Checkin
	nextID     int

	// set to a non-nil error to simulate a database failure
	countErr error
	// onCount runs inside CountByActivity, after the mutex is released.
	// Race tests use it to line requests up between the check and the insert.
	onCount func()
}

var (
	_ repository.UserRepository     = (*fakeStore)(nil)
	_ repository.ActivityRepository = (*fakeStore)(nil)
	_ repository.CheckinRepository  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[string]*model.User),
		activities: make(map[string]*model.Activity),
		checkins:   make(map[string]*model.Checkin),
	}
}

func (f *fakeStore) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = f.newID("user")
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) ListUsers(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := []model.User{}
	for _, u := range f.users {
		users = append(users, *u)
	}
	return users, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) userExists(match func(*model.User) bool, excludeID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID != excludeID && match(u) {
			return true
		}
	}
	return false
}

func (f *fakeStore) ExistsByEmail(_ context.Context, email, excludeID string) (bool, error) {
	return f.userExists(func(u *model.User) bool { return u.Email == email }, excludeID), nil
}

func (f *fakeStore) ExistsByPhone(_ context.Context, phone, excludeID string) (bool, error) {
	return f.userExists(func(u *model.User) bool { return u.Phone == phone }, excludeID), nil
}

func (f *fakeStore) ExistsByCPF(_ context.Context, cpf, excludeID string) (bool, error) {
	return f.userExists(func(u *model.User) bool { return u.CPF == cpf }, excludeID), nil
}

// --- activities ---

func (f *fakeStore) CreateActivity(_ context.Context, a *model.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.newID("activity")
	copied := *a
	f.activities[a.ID] = &copied
	return nil
}

func (f *fakeStore) GetActivityByID(_ context.Context, id string) (*model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activities[id]
	if !ok {
		return nil, apperror.NotFound("activity", id)
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) ListActivities(_ context.Context) ([]model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	activities := []model.Activity{}
	for _, a := range f.activities {
		activities = append(activities, *a)
	}
	return activities, nil
}

func (f *fakeStore) UpdateActivity(_ context.Context, a *model.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.activities[a.ID]; !ok {
		return apperror.NotFound("activity", a.ID)
	}
	copied := *a
	f.activities[a.ID] = &copied
	return nil
}

func (f *fakeStore) DeleteActivity(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.activities[id]; !ok {
		return apperror.NotFound("activity", id)
	}
	delete(f.activities, id)
	return nil
}

// --- checkins ---

func (f *fakeStore) CreateCheckin(_ context.Context, c *model.Checkin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.newID("checkin")
	copied := *c
	f.checkins[c.ID] = &copied
	return nil
}

func (f *fakeStore) GetCheckinByID(_ context.Context, id string) (*model.Checkin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.checkins[id]
	if !ok {
		return nil, apperror.NotFound("checkin", id)
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) ListCheckins(_ context.Context) ([]model.Checkin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	checkins := []model.Checkin{}
	for _, c := range f.checkins {
		checkins = append(checkins, *c)
	}
	return checkins, nil
}

func (f *fakeStore) UpdateCheckinTime(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.checkins[id]
	if !ok {
		return apperror.NotFound("checkin", id)
	}
	c.CheckinTime = model.NewDateTime(at)
	return nil
}

func (f *fakeStore) DeleteCheckin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.checkins[id]; !ok {
		return apperror.NotFound("checkin", id)
	}
	delete(f.checkins, id)
	return nil
}

func (f *fakeStore) CountByActivity(_ context.Context, activityID string) (int, error) {
	f.mu.Lock()
	if f.countErr != nil {
		f.mu.Unlock()
		return 0, f.countErr
	}
	n := 0
	for _, c := range f.checkins {
		if c.ActivityID == activityID {
			n++
		}
	}
	hook := f.onCount
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return n, nil
}

func (f *fakeStore) ExistsByUserAndActivity(_ context.Context, userID, activityID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.checkins {
		if c.UserID == userID && c.ActivityID == activityID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ExistsByUserBetween(_ context.Context, userID string, from, to time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.checkins {
		if c.UserID == userID && !c.CheckinTime.Before(from) && c.CheckinTime.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) HistoryByUser(_ context.Context, userID string) ([]model.CheckinView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return []model.CheckinView{}, nil
	}

	views := []model.CheckinView{}
	for _, c := range f.checkins {
		if c.UserID != userID {
			continue
		}
		view := model.CheckinView{
			ID:          c.ID,
			Name:        u.Name,
			ActivityID:  c.ActivityID,
			CheckinTime: c.CheckinTime,
		}
		if a, ok := f.activities[c.ActivityID]; ok {
			view.ActivityDescription = a.Description
		}
		views = append(views, view)
	}
	slices.SortFunc(views, func(a, b model.CheckinView) int {
		return b.CheckinTime.Compare(a.CheckinTime.Time)
	})
	return views, nil
}

func (f *fakeStore) checkinCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checkins)
}

// --- helpers ---

// testNow is a fixed "current time": 2026-03-10 10:00 in the business zone.
var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, model.BusinessZone)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPasswords() *auth.PasswordService {
	return auth.NewPasswordServiceWithCost(bcrypt.MinCost)
}

// seedUser stores a member directly, bypassing validation.
func seedUser(t *testing.T, store *fakeStore, name, email string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: email, CreatedAt: testNow}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seedUser: %v", err)
	}
	return u
}

// seedActivity stores an activity running from start for one hour.
func seedActivity(t *testing.T, store *fakeStore, description string, start time.Time, limit int) *model.Activity {
	t.Helper()
	a := &model.Activity{
		Description: description,
		StartTime:   model.NewDateTime(start),
		FinishTime:  model.NewDateTime(start.Add(time.Hour)),
		LimitPeople: limit,
	}
	if err := store.CreateActivity(context.Background(), a); err != nil {
		t.Fatalf("seedActivity: %v", err)
	}
	return a
}

// validInput returns a UserInput that passes every format rule. suffix keeps
// email, phone and CPF distinct between members.
func validInput(name string, suffix int) UserInput {
	return UserInput{
		Name:     name,
		Email:    fmt.Sprintf("member%d@example.com", suffix),
		Phone:    fmt.Sprintf("119%08d", suffix),
		CPF:      fmt.Sprintf("%011d", 10000000000+suffix),
		Password: "secret123",
	}
}
