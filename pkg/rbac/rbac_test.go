package rbac

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"

	"PrivAccess/pkg/group"
	"PrivAccess/pkg/pool"
	zkschnorr "PrivAccess/pkg/zk/schnorr"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func defaultTable(t *testing.T) *Table {
	pl := pool.NewPool(0)
	t.Cleanup(pl.TearDown)
	table, err := DefaultTable(context.Background(), group.Default(), pl)
	require.NoError(t, err)
	return table
}

func TestResolveFacultyProof(t *testing.T) {
	table := defaultTable(t)
	params := group.Default()

	secret, ok := table.Secret(RoleFaculty)
	require.True(t, ok)
	assert.Equal(t, "98765432109876543210987654321", secret.String())

	prover, err := zkschnorr.NewProver(params, secret)
	require.NoError(t, err)
	proof, err := prover.GenerateProof("t1q7hkab")
	require.NoError(t, err)
	require.True(t, zkschnorr.NewVerifier(params).Verify(proof))

	role, ok := table.Resolve(proof.PublicKey)
	require.True(t, ok)
	assert.Equal(t, RoleFaculty, role)
	for _, other := range []string{RoleAdmin, RoleStudent} {
		otherSecret, _ := table.Secret(other)
		assert.NotEqual(t, params.PublicKey(otherSecret).String(), proof.PublicKey, other)
	}
}

func TestResolveUnknown(t *testing.T) {
	table := defaultTable(t)
	_, ok := table.Resolve(group.Default().PublicKey(big.NewInt(42)).String())
	assert.False(t, ok)
	_, ok = table.Resolve("")
	assert.False(t, ok)
}

func TestLookups(t *testing.T) {
	table := defaultTable(t)
	assert.Equal(t, []string{RoleAdmin, RoleFaculty, RoleStudent}, table.Names())

	perms, ok := table.Permissions("admin")
	require.True(t, ok)
	assert.Equal(t, []string{"read", "write", "delete"}, perms)
	perms[0] = "mutated"
	perms, _ = table.Permissions(RoleAdmin)
	assert.Equal(t, "read", perms[0], "permissions are copied")

	_, ok = table.Permissions("JANITOR")
	assert.False(t, ok)
	_, ok = table.Secret("JANITOR")
	assert.False(t, ok)
}

func TestNewTableErrors(t *testing.T) {
	pl := pool.NewPool(1)
	defer pl.TearDown()
	ctx := context.Background()

	_, err := NewTable(ctx, group.Test(), pl, []Role{{Name: " ", Secret: big.NewInt(3)}})
	assert.ErrorIs(t, err, ErrEmptyRole)
	_, err = NewTable(ctx, group.Test(), pl, []Role{{Name: "a", Secret: big.NewInt(3)}, {Name: "A", Secret: big.NewInt(4)}})
	assert.ErrorIs(t, errors.Cause(err), ErrDuplicateRole)
	_, err = NewTable(ctx, group.Test(), pl, []Role{{Name: "a"}})
	assert.ErrorIs(t, errors.Cause(err), ErrRoleSecret)
}

func TestProvision(t *testing.T) {
	table := defaultTable(t)
	params := group.Default()

	cred, err := table.Provision("faculty")
	require.NoError(t, err)
	assert.Equal(t, RoleFaculty, cred.Role)
	assert.Equal(t, "98765432109876543210987654321", cred.Secret)
	role, ok := table.Resolve(cred.PublicKey)
	require.True(t, ok)
	assert.Equal(t, RoleFaculty, role)

	cred, err = table.Provision("")
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, cred.Role)

	cred, err = table.Provision("visitor")
	require.NoError(t, err)
	assert.Equal(t, RoleUnknown, cred.Role)
	secret, _ := new(big.Int).SetString(cred.Secret, 10)
	assert.Equal(t, params.PublicKey(secret).String(), cred.PublicKey)
	_, ok = table.Resolve(cred.PublicKey)
	assert.False(t, ok, "provisioned unknown keys resolve to no role")
}

func TestSecretFromMnemonic(t *testing.T) {
	params := group.Default()
	secret, err := SecretFromMnemonic(params, testMnemonic, "door")
	require.NoError(t, err)

	want := new(big.Int).SetBytes(bip39.NewSeed(testMnemonic, "door"))
	want.Mod(want, new(big.Int).Sub(params.Q(), big.NewInt(1)))
	want.Add(want, big.NewInt(1))
	assert.Equal(t, want.String(), secret.String())

	other, err := SecretFromMnemonic(params, testMnemonic, "")
	require.NoError(t, err)
	assert.NotEqual(t, secret.String(), other.String(), "passphrase changes the secret")

	_, err = SecretFromMnemonic(params, "abandon abandon abandon", "")
	assert.ErrorIs(t, errors.Cause(err), ErrMnemonic)
}

func TestNewMnemonic(t *testing.T) {
	mnemonic, err := NewMnemonic()
	require.NoError(t, err)
	assert.True(t, bip39.IsMnemonicValid(mnemonic))
	_, err = SecretFromMnemonic(group.Test(), mnemonic, "")
	assert.NoError(t, err)
}

func TestLoadTable(t *testing.T) {
	pl := pool.NewPool(0)
	defer pl.TearDown()
	dir := t.TempDir()

	path := filepath.Join(dir, "roles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"roles": [
			{"name": "admin", "secret": "123456789012345678901234567890", "permissions": ["read", "write", "delete"]},
			{"name": "guard", "mnemonic": "`+testMnemonic+`", "permissions": ["read"]}
		]
	}`), 0o600))

	table, err := LoadTable(context.Background(), path, group.Default(), pl)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN", "GUARD"}, table.Names())

	guard, ok := table.Secret("GUARD")
	require.True(t, ok)
	role, ok := table.Resolve(group.Default().PublicKey(guard).String())
	require.True(t, ok)
	assert.Equal(t, "GUARD", role)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"roles":[{"name":"x","secret":"12ab"}]}`), 0o600))
	_, err = LoadTable(context.Background(), bad, group.Default(), pl)
	assert.Error(t, err)

	both := filepath.Join(dir, "both.json")
	require.NoError(t, os.WriteFile(both, []byte(`{"roles":[{"name":"x","secret":"12","mnemonic":"`+testMnemonic+`"}]}`), 0o600))
	_, err = LoadTable(context.Background(), both, group.Default(), pl)
	assert.ErrorIs(t, errors.Cause(err), ErrRoleSecret)

	_, err = LoadTable(context.Background(), filepath.Join(dir, "missing.json"), group.Default(), pl)
	assert.Error(t, err)
}
