package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec([]byte("access-secret"), []byte("refresh-secret"), 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return c
}

func TestNewTokenCodec_RejectsWeakSetup(t *testing.T) {
	_, err := NewTokenCodec(nil, []byte("r"), time.Minute, time.Hour)
	assert.Error(t, err)

	_, err = NewTokenCodec([]byte("same"), []byte("same"), time.Minute, time.Hour)
	assert.Error(t, err)

	_, err = NewTokenCodec([]byte("a"), []byte("r"), 0, time.Hour)
	assert.Error(t, err)
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	access, err := c.IssueAccess("u1")
	require.NoError(t, err)
	got, err := c.Verify(access, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.SubjectID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), got.ExpiresAt, 2*time.Second)

	refresh, err := c.IssueRefresh("u1")
	require.NoError(t, err)
	got, err = c.Verify(refresh, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.SubjectID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), got.ExpiresAt, 2*time.Second)
}

func TestIssue_TokensAreUnique(t *testing.T) {
	c := newTestCodec(t)
	a, err := c.IssueRefresh("u1")
	require.NoError(t, err)
	b, err := c.IssueRefresh("u1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify_CrossKindRejected(t *testing.T) {
	c := newTestCodec(t)

	access, err := c.IssueAccess("u1")
	require.NoError(t, err)
	_, err = c.Verify(access, KindRefresh)
	assert.ErrorIs(t, err, ErrorInvalidSignature)

	refresh, err := c.IssueRefresh("u1")
	require.NoError(t, err)
	_, err = c.Verify(refresh, KindAccess)
	assert.ErrorIs(t, err, ErrorInvalidSignature)
}

func TestVerify_TypeClaimCheckedAfterSignature(t *testing.T) {
	c := newTestCodec(t)

	// Signed with the refresh secret but claiming to be an access token.
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: KindAccess,
	})
	s, err := forged.SignedString([]byte("refresh-secret"))
	require.NoError(t, err)

	_, err = c.Verify(s, KindRefresh)
	assert.ErrorIs(t, err, ErrorInvalidSignature)
}

func TestVerify_Expired(t *testing.T) {
	c := newTestCodec(t)
	c.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	tok, err := c.IssueRefresh("u1")
	require.NoError(t, err)

	c.now = time.Now
	_, err = c.Verify(tok, KindRefresh)
	assert.ErrorIs(t, err, ErrorExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewTokenCodec([]byte("x"), []byte("y"), time.Minute, time.Hour)
	require.NoError(t, err)

	tok, err := other.IssueAccess("u1")
	require.NoError(t, err)
	_, err = c.Verify(tok, KindAccess)
	assert.ErrorIs(t, err, ErrorInvalidSignature)
}

func TestVerify_Tampered(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.IssueAccess("u1")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)

	_, err = c.Verify(strings.Join(parts, "."), KindAccess)
	assert.Error(t, err)
}

func TestVerify_Malformed(t *testing.T) {
	c := newTestCodec(t)
	for _, in := range []string{"", "garbage", "not.a.jwt"} {
		_, err := c.Verify(in, KindAccess)
		assert.ErrorIs(t, err, ErrorMalformed, "input %q", in)
	}
}

func TestVerify_NoneAlgorithmRejected(t *testing.T) {
	c := newTestCodec(t)
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: KindAccess,
	})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Verify(s, KindAccess)
	assert.ErrorIs(t, err, ErrorInvalidSignature)
}
