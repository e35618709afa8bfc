package clients_test

import (
	"context"
	"testing"
	"time"

	"github.com/simbridge/go-esim-gateway/clients"
	fakeclientrepo "github.com/simbridge/go-esim-gateway/clients/fakerepo"
	"github.com/simbridge/go-esim-gateway/vault"
	"github.com/stretchr/testify/require"
)

const (
	testMasterSecret = "registry-test-master-secret"
	testName         = "Acme Travel"
	testUsername     = "acme@partner.example"
	testPassword     = "Sup3r-secret-pw"
)

type registryFixture struct {
	repo     *fakeclientrepo.FakeClientRepo
	vault    *vault.Vault
	registry *clients.Registry
}

func setupRegistry(t *testing.T) *registryFixture {
	t.Helper()

	repo := fakeclientrepo.NewFakeClientRepo()
	v := vault.New(testMasterSecret)
	registry, err := clients.NewRegistry(repo, v)
	require.NoError(t, err)

	return &registryFixture{repo: repo, vault: v, registry: registry}
}

func TestCreateEncryptsPassword(t *testing.T) {
	f := setupRegistry(t)
	ctx := context.Background()

	client, err := f.registry.Create(ctx, testName, testUsername, testPassword)
	require.NoError(t, err)

	require.NotEmpty(t, client.ID)
	require.True(t, client.Active)
	require.NotEqual(t, testPassword, client.UpstreamPasswordEncrypted)
	require.NotContains(t, client.UpstreamPasswordEncrypted, testPassword)

	decrypted, err := f.vault.Decrypt(client.UpstreamPasswordEncrypted)
	require.NoError(t, err)
	require.Equal(t, testPassword, decrypted)
}

func TestCreateIssuesStructuredAPIKey(t *testing.T) {
	f := setupRegistry(t)

	client, err := f.registry.Create(context.Background(), testName, testUsername, testPassword)
	require.NoError(t, err)
	require.Regexp(t, `^esim_[0-9a-f]{8}_[0-9a-z]+_[0-9a-f]{32}$`, client.APIKey)
	require.NotContains(t, client.APIKey, client.ID)
}

func TestCreateValidation(t *testing.T) {
	f := setupRegistry(t)
	ctx := context.Background()

	_, err := f.registry.Create(ctx, "", testUsername, testPassword)
	require.Error(t, err)

	_, err = f.registry.Create(ctx, testName, "", testPassword)
	require.Error(t, err)

	_, err = f.registry.Create(ctx, testName, testUsername, "")
	require.ErrorIs(t, err, vault.ErrEncryption)
}

func TestUpdatePartialFieldsKeepCiphertext(t *testing.T) {
	f := setupRegistry(t)
	ctx := context.Background()

	created, err := f.registry.Create(ctx, testName, testUsername, testPassword)
	require.NoError(t, err)

	newName := "Acme Travel EU"
	updated, err := f.registry.Update(ctx, created.ID, clients.UpdateParams{Name: &newName})
	require.NoError(t, err)

	require.Equal(t, newName, updated.Name)
	// No password supplied: stored ciphertext untouched
	require.Equal(t, created.UpstreamPasswordEncrypted, updated.UpstreamPasswordEncrypted)
}

func TestUpdateNewPasswordIsReEncrypted(t *testing.T) {
	f := setupRegistry(t)
	ctx := context.Background()

	created, err := f.registry.Create(ctx, testName, testUsername, testPassword)
	require.NoError(t, err)

	newPassword := "another-secret-pw"
	updated, err := f.registry.Update(ctx, created.ID, clients.UpdateParams{UpstreamPassword: &newPassword})
	require.NoError(t, err)
	require.NotEqual(t, created.UpstreamPasswordEncrypted, updated.UpstreamPasswordEncrypted)

	decrypted, err := f.vault.Decrypt(updated.UpstreamPasswordEncrypted)
	require.NoError(t, err)
	require.Equal(t, newPassword, decrypted)
}

func TestRotateAPIKey(t *testing.T) {
	f := setupRegistry(t)
	ctx := context.Background()

	created, err := f.registry.Create(ctx, testName, testUsername, testPassword)
	require.NoError(t, err)

	rotated, err := f.registry.RotateAPIKey(ctx, created.ID)
	require.NoError(t, err)
	require.NotEqual(t, created.APIKey, rotated.APIKey)

	// Old key no longer resolves
	_, err = f.registry.FindByAPIKey(ctx, created.APIKey, true)
	require.ErrorIs(t, err, clients.ErrNotFound)

	found, err := f.registry.FindByAPIKey(ctx, rotated.APIKey, true)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
}

func TestFindByAPIKeyActiveOnly(t *testing.T) {
	f := setupRegistry(t)
	ctx := context.Background()

	created, err := f.registry.Create(ctx, testName, testUsername, testPassword)
	require.NoError(t, err)

	found, err := f.registry.FindByAPIKey(ctx, created.APIKey, true)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	inactive := false
	_, err = f.registry.Update(ctx, created.ID, clients.UpdateParams{Active: &inactive})
	require.NoError(t, err)

	_, err = f.registry.FindByAPIKey(ctx, created.APIKey, true)
	require.ErrorIs(t, err, clients.ErrSuspended)

	// Without the active filter the record is still reachable
	found, err = f.registry.FindByAPIKey(ctx, created.APIKey, false)
	require.NoError(t, err)
	require.False(t, found.Active)
}

func TestDeleteRemovesClient(t *testing.T) {
	f := setupRegistry(t)
	ctx := context.Background()

	created, err := f.registry.Create(ctx, testName, testUsername, testPassword)
	require.NoError(t, err)

	require.NoError(t, f.registry.Delete(ctx, created.ID))

	_, err = f.registry.Get(ctx, created.ID)
	require.ErrorIs(t, err, clients.ErrNotFound)
}

func TestMaskedUpstreamUsername(t *testing.T) {
	client := &clients.Client{UpstreamUsername: "acme@partner.example"}
	masked := client.MaskedUpstreamUsername()
	require.Equal(t, "ac****************le", masked)
	require.NotEqual(t, client.UpstreamUsername, masked)

	short := &clients.Client{UpstreamUsername: "abc"}
	require.Equal(t, "***", short.MaskedUpstreamUsername())
}

func TestRegistryTimestamps(t *testing.T) {
	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	repo := fakeclientrepo.NewFakeClientRepo()
	registry, err := clients.NewRegistry(repo, vault.New(testMasterSecret), clients.WithNowTime(func() time.Time { return fixed }))
	require.NoError(t, err)

	client, err := registry.Create(context.Background(), testName, testUsername, testPassword)
	require.NoError(t, err)
	require.Equal(t, fixed, client.CreatedAt)
	require.Equal(t, fixed, client.UpdatedAt)
}
