package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu       sync.Mutex
	uploaded []string
	fail     map[string]error
}

func (u *fakeUploader) UploadFile(_ context.Context, path string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail[path]; err != nil {
		return "", err
	}
	u.uploaded = append(u.uploaded, path)
	return "https://cdn.example.com/" + path, nil
}

func newUserFixture(t *testing.T) (*UserService, *fixture, *fakeUploader) {
	t.Helper()
	f := newFixture(t)
	up := &fakeUploader{fail: map[string]error{}}
	svc := NewUserService(f.repo, f.sessions, up, metrics.New(), logging.Discard())
	svc.hashParams = cheapParams
	return svc, f, up
}

func validRegistration() RegisterInput {
	return RegisterInput{
		FullName:       "  Bob B ",
		Email:          "Bob@Example.com",
		UserName:       " Bobby ",
		Password:       "s3cret",
		AvatarPath:     "avatar.png",
		CoverImagePath: "cover.png",
	}
}

func TestRegister_Success(t *testing.T) {
	svc, f, up := newUserFixture(t)
	ctx := context.Background()

	pub, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	assert.NotEmpty(t, pub.ID)
	assert.Equal(t, "bobby", pub.UserName)
	assert.Equal(t, "bob@example.com", pub.Email)
	assert.Equal(t, "Bob B", pub.FullName)
	assert.Equal(t, "https://cdn.example.com/avatar.png", pub.Avatar)
	assert.Equal(t, "https://cdn.example.com/cover.png", pub.CoverImage)
	assert.ElementsMatch(t, []string{"avatar.png", "cover.png"}, up.uploaded)

	stored, err := f.repo.GetByID(ctx, pub.ID)
	require.NoError(t, err)
	assert.True(t, f.sessions.VerifyCredentials(stored, "s3cret"), "password must be hashed from the submitted password")
	assert.False(t, f.sessions.VerifyCredentials(stored, "bobby"))
}

func TestRegister_Validation(t *testing.T) {
	cases := map[string]func(in *RegisterInput){
		"blank full name": func(in *RegisterInput) { in.FullName = "   " },
		"blank email":     func(in *RegisterInput) { in.Email = "" },
		"blank username":  func(in *RegisterInput) { in.UserName = "\t" },
		"blank password":  func(in *RegisterInput) { in.Password = " " },
		"no avatar":       func(in *RegisterInput) { in.AvatarPath = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, _ := newUserFixture(t)
			in := validRegistration()
			mutate(&in)

			_, err := svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, common.ErrorValidation)
			assert.Equal(t, 400, common.HTTPStatus(common.Kind(err)))
		})
	}
}

func TestRegister_DuplicateIsConflict(t *testing.T) {
	svc, _, up := newUserFixture(t)

	in := validRegistration()
	in.UserName = "Alice"
	_, err := svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, common.ErrorConflict)
	assert.Empty(t, up.uploaded, "nothing is uploaded for a duplicate")

	in = validRegistration()
	in.Email = "ALICE@example.com"
	_, err = svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestRegister_CreateRaceIsConflict(t *testing.T) {
	svc, f, _ := newUserFixture(t)
	f.repo.createErr = common.ErrorConflict

	_, err := svc.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestRegister_AvatarUploadFailure(t *testing.T) {
	svc, _, up := newUserFixture(t)
	up.fail["avatar.png"] = errors.New("s3 down")

	_, err := svc.Register(context.Background(), validRegistration())
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Equal(t, "avatar file is required", common.PublicMessage(err))
}

func TestRegister_CoverUploadFailureIsTolerated(t *testing.T) {
	svc, _, up := newUserFixture(t)
	up.fail["cover.png"] = errors.New("s3 down")

	pub, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.Empty(t, pub.CoverImage)
}

func TestRegister_StoreFailure(t *testing.T) {
	svc, f, _ := newUserFixture(t)
	f.repo.loginErr = errors.New("db error: refused")

	_, err := svc.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestLogin(t *testing.T) {
	svc, f, _ := newUserFixture(t)
	ctx := context.Background()

	byName, err := svc.Login(ctx, LoginInput{UserName: "alice", Password: "correct"})
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, byName.User.ID)
	assert.Equal(t, byName.Tokens.RefreshToken, f.storedToken(t))

	byEmail, err := svc.Login(ctx, LoginInput{Email: "Alice@Example.com", Password: "correct"})
	require.NoError(t, err)
	assert.Equal(t, byEmail.Tokens.RefreshToken, f.storedToken(t))

	// The earlier session's refresh token was replaced by the second login.
	_, err = svc.RefreshToken(ctx, byName.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthenticated)
}

func TestLogin_Failures(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, LoginInput{Password: "correct"})
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Equal(t, "username or email is required", common.PublicMessage(err))

	_, err = svc.Login(ctx, LoginInput{UserName: "alice"})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = svc.Login(ctx, LoginInput{UserName: "nobody", Password: "x"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = svc.Login(ctx, LoginInput{UserName: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, common.ErrorUnauthenticated)
}

func TestLogin_IssueFailureReturnsNothing(t *testing.T) {
	svc, f, _ := newUserFixture(t)
	f.repo.setErr = errors.New("db error: disk full")

	res, err := svc.Login(context.Background(), LoginInput{UserName: "alice", Password: "correct"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestRefreshAndLogout(t *testing.T) {
	svc, f, _ := newUserFixture(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, LoginInput{UserName: "alice", Password: "correct"})
	require.NoError(t, err)

	pair, err := svc.RefreshToken(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, f.user.ID))
	require.NoError(t, svc.Logout(ctx, f.user.ID))

	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthenticated)
}

func TestCurrentUser(t *testing.T) {
	svc, f, _ := newUserFixture(t)
	ctx := context.Background()

	pub, err := svc.CurrentUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", pub.UserName)

	_, err = svc.CurrentUser(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorUnauthenticated)

	f.repo.getErr = errors.New("boom")
	_, err = svc.CurrentUser(ctx, f.user.ID)
	assert.ErrorIs(t, err, common.ErrorInternal)
}
