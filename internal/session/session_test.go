package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/corpdiscounts/internal/model"
)

type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newMemoryRevoker() *memoryRevoker {
	return &memoryRevoker{revoked: make(map[string]time.Time)}
}

func (r *memoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = until
	return nil
}

func (r *memoryRevoker) Revoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[tokenID]
	return ok, nil
}

func TestManager_IssueAndParse(t *testing.T) {
	m := NewManager("test-secret", time.Hour, nil)
	companyID := uuid.New()
	p := model.Principal{
		AccountID: uuid.New(),
		Email:     "hr@acme.example",
		Kind:      model.AccountKindCompany,
		CompanyID: &companyID,
	}

	token, expiresAt, err := m.Issue(p)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := m.Parse(context.Background(), token)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestManager_EmployeeWithoutCompany(t *testing.T) {
	m := NewManager("test-secret", time.Hour, nil)
	p := model.Principal{AccountID: uuid.New(), Email: "admin@example.com", Kind: model.AccountKindAdmin}

	token, _, err := m.Issue(p)
	require.NoError(t, err)

	claims, err := m.Parse(context.Background(), token)
	require.NoError(t, err)

	got, err := claims.Principal()
	require.NoError(t, err)
	assert.Nil(t, got.CompanyID)
	assert.Equal(t, model.AccountKindAdmin, got.Kind)
}

func TestManager_RejectsForeignSignature(t *testing.T) {
	issuerManager := NewManager("secret-one", time.Hour, nil)
	verifier := NewManager("secret-two", time.Hour, nil)

	token, _, err := issuerManager.Issue(model.Principal{AccountID: uuid.New(), Kind: model.AccountKindEmployee})
	require.NoError(t, err)

	_, err = verifier.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_RejectsGarbage(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)

	_, err := m.Parse(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_RejectsExpired(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)
	issuedAt := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }

	token, _, err := m.Issue(model.Principal{AccountID: uuid.New(), Kind: model.AccountKindEmployee})
	require.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = m.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Revoke(t *testing.T) {
	revoker := newMemoryRevoker()
	m := NewManager("secret", time.Hour, revoker)

	token, _, err := m.Issue(model.Principal{AccountID: uuid.New(), Kind: model.AccountKindEmployee})
	require.NoError(t, err)

	claims, err := m.Parse(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(context.Background(), claims))
	assert.Contains(t, revoker.revoked, claims.ID)

	_, err = m.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestManager_RevokeWithoutStore(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)

	token, _, err := m.Issue(model.Principal{AccountID: uuid.New(), Kind: model.AccountKindEmployee})
	require.NoError(t, err)

	claims, err := m.Parse(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, m.Revoke(context.Background(), claims))

	_, err = m.Parse(context.Background(), token)
	assert.NoError(t, err)
}

func TestNewManager_EmptySecret(t *testing.T) {
	m := NewManager("", time.Hour, nil)
	assert.Len(t, m.secret, 32)
}
