package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/dishpatch/internal/model"
	"github.com/hitoshi/dishpatch/internal/repository"
)

// mockUserRepo はUserRepositoryのモック実装。
type mockUserRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.User, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id, Email: "user@example.com"}, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error {
	return nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity, profile *model.Profile) error {
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return nil
}

func (m *mockUserRepo) ConfirmEmail(ctx context.Context, userID string) error { return nil }

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

// mockProfileRepo はProfileRepositoryのモック実装。
type mockProfileRepo struct {
	findByUserIDFn func(ctx context.Context, userID string) (*model.Profile, error)
	updateFn       func(ctx context.Context, profile *model.Profile) error
}

var _ repository.ProfileRepository = (*mockProfileRepo)(nil)

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	if m.findByUserIDFn != nil {
		return m.findByUserIDFn(ctx, userID)
	}
	return &model.Profile{UserID: userID, Name: "山田太郎", Role: model.RoleCustomer}, nil
}

func (m *mockProfileRepo) Update(ctx context.Context, profile *model.Profile) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, profile)
	}
	return nil
}

func (m *mockProfileRepo) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	return nil
}

// deletionRecorder は退会処理での削除呼び出し順を記録する。
type deletionRecorder struct {
	order []string
}

type mockSessionRepo struct {
	recorder *deletionRecorder
	err      error
}

var _ repository.SessionRepository = (*mockSessionRepo)(nil)

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error { return nil }
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error { return nil }
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.recorder != nil {
		m.recorder.order = append(m.recorder.order, "sessions")
	}
	return m.err
}

type mockRefreshRepo struct {
	recorder *deletionRecorder
	err      error
}

var _ repository.RefreshTokenRepository = (*mockRefreshRepo)(nil)

func (m *mockRefreshRepo) Create(ctx context.Context, token *model.RefreshToken) error { return nil }
func (m *mockRefreshRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	return nil, nil
}
func (m *mockRefreshRepo) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	return nil
}
func (m *mockRefreshRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.recorder != nil {
		m.recorder.order = append(m.recorder.order, "refresh_tokens")
	}
	return m.err
}

type mockActionRepo struct {
	recorder *deletionRecorder
	err      error
}

var _ repository.ActionTokenRepository = (*mockActionRepo)(nil)

func (m *mockActionRepo) Create(ctx context.Context, token *model.ActionToken) error { return nil }
func (m *mockActionRepo) FindByTokenHash(ctx context.Context, tokenHash string, purpose model.TokenPurpose) (*model.ActionToken, error) {
	return nil, nil
}
func (m *mockActionRepo) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	return nil
}
func (m *mockActionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.recorder != nil {
		m.recorder.order = append(m.recorder.order, "action_tokens")
	}
	return m.err
}

type mockMembershipRepo struct {
	recorder *deletionRecorder
	err      error
}

var _ repository.MembershipRepository = (*mockMembershipRepo)(nil)

func (m *mockMembershipRepo) FindByUserAndRestaurant(ctx context.Context, userID, restaurantID string) (*model.Membership, error) {
	return nil, nil
}
func (m *mockMembershipRepo) Create(ctx context.Context, membership *model.Membership) error {
	return nil
}
func (m *mockMembershipRepo) UpdateRole(ctx context.Context, id string, role model.MembershipRole) error {
	return nil
}
func (m *mockMembershipRepo) Delete(ctx context.Context, id string) error { return nil }
func (m *mockMembershipRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.recorder != nil {
		m.recorder.order = append(m.recorder.order, "memberships")
	}
	return m.err
}
func (m *mockMembershipRepo) ListByRestaurantID(ctx context.Context, restaurantID string) ([]*model.Membership, error) {
	return nil, nil
}
func (m *mockMembershipRepo) ListByUserIDWithRestaurantInfo(ctx context.Context, userID string) ([]repository.MembershipWithRestaurantInfo, error) {
	return nil, nil
}

type serviceMocks struct {
	userRepo       *mockUserRepo
	profileRepo    *mockProfileRepo
	sessionRepo    *mockSessionRepo
	refreshRepo    *mockRefreshRepo
	actionRepo     *mockActionRepo
	membershipRepo *mockMembershipRepo
	recorder       *deletionRecorder
}

func newServiceMocks() *serviceMocks {
	recorder := &deletionRecorder{}
	return &serviceMocks{
		userRepo:       &mockUserRepo{},
		profileRepo:    &mockProfileRepo{},
		sessionRepo:    &mockSessionRepo{recorder: recorder},
		refreshRepo:    &mockRefreshRepo{recorder: recorder},
		actionRepo:     &mockActionRepo{recorder: recorder},
		membershipRepo: &mockMembershipRepo{recorder: recorder},
		recorder:       recorder,
	}
}

func (m *serviceMocks) newService() *Service {
	return NewService(m.userRepo, m.profileRepo, m.sessionRepo, m.refreshRepo, m.actionRepo, m.membershipRepo)
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("error code = %q, want %q", apiErr.Code, wantCode)
	}
}

func TestUpdateProfile_Success(t *testing.T) {
	mocks := newServiceMocks()

	var updated *model.Profile
	mocks.profileRepo.updateFn = func(ctx context.Context, profile *model.Profile) error {
		updated = profile
		return nil
	}

	svc := mocks.newService()
	profile, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileInput{
		Name:  "  佐藤花子  ",
		Phone: " 090-1234-5678 ",
	})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	// 前後の空白は除去される
	if profile.Name != "佐藤花子" {
		t.Errorf("name = %q, want %q", profile.Name, "佐藤花子")
	}
	if profile.Phone != "090-1234-5678" {
		t.Errorf("phone = %q, want %q", profile.Phone, "090-1234-5678")
	}
	if updated == nil {
		t.Fatal("profile was not persisted")
	}
}

func TestUpdateProfile_DoesNotChangeRole(t *testing.T) {
	mocks := newServiceMocks()
	mocks.profileRepo.findByUserIDFn = func(ctx context.Context, userID string) (*model.Profile, error) {
		return &model.Profile{UserID: userID, Name: "旧名", Role: model.RoleRestaurantAdmin}, nil
	}

	svc := mocks.newService()
	profile, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileInput{Name: "新名"})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if profile.Role != model.RoleRestaurantAdmin {
		t.Errorf("role = %q, want unchanged %q", profile.Role, model.RoleRestaurantAdmin)
	}
}

func TestUpdateProfile_EmptyName_ReturnsValidationError(t *testing.T) {
	mocks := newServiceMocks()
	svc := mocks.newService()

	_, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileInput{Name: "   "})
	if err == nil {
		t.Fatal("expected validation error for empty name")
	}
	assertAPIErrorCode(t, err, "INVALID_PROFILE")
}

func TestUpdateProfile_ProfileMissing_ReturnsError(t *testing.T) {
	mocks := newServiceMocks()
	mocks.profileRepo.findByUserIDFn = func(ctx context.Context, userID string) (*model.Profile, error) {
		return nil, nil
	}

	svc := mocks.newService()
	_, err := svc.UpdateProfile(context.Background(), "u-ghost", UpdateProfileInput{Name: "名前"})
	if err == nil {
		t.Fatal("expected error when profile is missing")
	}
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestWithdraw_DeletesInOrder(t *testing.T) {
	mocks := newServiceMocks()

	var deletedUserID string
	mocks.userRepo.deleteByIDFn = func(ctx context.Context, id string) error {
		mocks.recorder.order = append(mocks.recorder.order, "users")
		deletedUserID = id
		return nil
	}

	svc := mocks.newService()
	if err := svc.Withdraw(context.Background(), "u1"); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}

	// 認証情報 → 所属 → ユーザー本体の順で削除される
	want := []string{"sessions", "refresh_tokens", "action_tokens", "memberships", "users"}
	if len(mocks.recorder.order) != len(want) {
		t.Fatalf("deletion order = %v, want %v", mocks.recorder.order, want)
	}
	for i := range want {
		if mocks.recorder.order[i] != want[i] {
			t.Errorf("deletion[%d] = %q, want %q", i, mocks.recorder.order[i], want[i])
		}
	}
	if deletedUserID != "u1" {
		t.Errorf("deleted user = %q, want %q", deletedUserID, "u1")
	}
}

func TestWithdraw_UserMissing_ReturnsError(t *testing.T) {
	mocks := newServiceMocks()
	mocks.userRepo.findByIDFn = func(ctx context.Context, id string) (*model.User, error) {
		return nil, nil
	}

	svc := mocks.newService()
	err := svc.Withdraw(context.Background(), "u-ghost")
	if err == nil {
		t.Fatal("expected error when user does not exist")
	}
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)

	if len(mocks.recorder.order) != 0 {
		t.Errorf("no deletions should happen for missing user, got %v", mocks.recorder.order)
	}
}

func TestWithdraw_SessionDeleteFails_StopsProcessing(t *testing.T) {
	mocks := newServiceMocks()
	mocks.sessionRepo.err = errors.New("db timeout")

	userDeleted := false
	mocks.userRepo.deleteByIDFn = func(ctx context.Context, id string) error {
		userDeleted = true
		return nil
	}

	svc := mocks.newService()
	err := svc.Withdraw(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected error when session deletion fails")
	}
	if userDeleted {
		t.Error("user must not be deleted when an earlier step fails")
	}
}
