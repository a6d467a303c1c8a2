// Package rbac maps role names to the private keys that prove membership in
// them, and maps a verified public key back to its role.
package rbac

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tyler-smith/go-bip39"

	"PrivAccess/pkg/group"
	"PrivAccess/pkg/math/arith"
	"PrivAccess/pkg/math/sample"
	"PrivAccess/pkg/pool"
)

const (
	RoleAdmin   = "ADMIN"
	RoleFaculty = "FACULTY"
	RoleStudent = "STUDENT"
	// RoleUnknown is reported for provisioned keys that belong to no role.
	RoleUnknown = "UNKNOWN"
)

var (
	ErrDuplicateRole = errors.New("rbac: duplicate role")
	ErrEmptyRole     = errors.New("rbac: empty role name")
	ErrRoleSecret    = errors.New("rbac: role needs exactly one of secret or mnemonic")
	ErrMnemonic      = errors.New("rbac: invalid mnemonic")
)

// Role is one entry of the table.
type Role struct {
	Name        string
	Secret      *big.Int
	Permissions []string
}

// RoleConfig is the JSON form of a role. Secret is a decimal integer; a
// mnemonic may be given instead and is turned into a secret by
// SecretFromMnemonic.
type RoleConfig struct {
	Name        string   `json:"name"`
	Secret      string   `json:"secret,omitempty"`
	Mnemonic    string   `json:"mnemonic,omitempty"`
	Passphrase  string   `json:"passphrase,omitempty"`
	Permissions []string `json:"permissions"`
}

// TableConfig is the JSON document read by LoadTable.
type TableConfig struct {
	Roles []RoleConfig `json:"roles"`
}

// Table is an immutable role table bound to one group. Public keys of every
// role are computed once when the table is built.
type Table struct {
	params     *group.Params
	names      []string
	roles      map[string]Role
	publicKeys map[string]string
}

// DefaultRoles returns the built-in roles.
func DefaultRoles() []Role {
	secret := func(s string) *big.Int {
		n, _ := new(big.Int).SetString(s, 10)
		return n
	}
	return []Role{
		{Name: RoleAdmin, Secret: secret("123456789012345678901234567890"), Permissions: []string{"read", "write", "delete"}},
		{Name: RoleFaculty, Secret: secret("98765432109876543210987654321"), Permissions: []string{"read", "write"}},
		{Name: RoleStudent, Secret: secret("112233445566778899001122334455"), Permissions: []string{"read"}},
	}
}

// NewTable builds a Table over params, computing role public keys on pl.
func NewTable(ctx context.Context, params *group.Params, pl *pool.Pool, roles []Role) (*Table, error) {
	t := &Table{
		params:     params,
		names:      make([]string, 0, len(roles)),
		roles:      make(map[string]Role, len(roles)),
		publicKeys: make(map[string]string, len(roles)),
	}
	for _, role := range roles {
		name := strings.ToUpper(strings.TrimSpace(role.Name))
		if name == "" {
			return nil, ErrEmptyRole
		}
		if _, ok := t.roles[name]; ok {
			return nil, errors.Wrap(ErrDuplicateRole, name)
		}
		if role.Secret == nil || role.Secret.Sign() <= 0 {
			return nil, errors.Wrap(ErrRoleSecret, name)
		}
		t.names = append(t.names, name)
		t.roles[name] = Role{
			Name:        name,
			Secret:      new(big.Int).Set(role.Secret),
			Permissions: append([]string(nil), role.Permissions...),
		}
	}
	sort.Strings(t.names)

	keys := make([]string, len(t.names))
	err := pl.Parallelize(ctx, len(t.names), func(_ context.Context, i int) error {
		keys[i] = params.PublicKey(t.roles[t.names[i]].Secret).String()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "rbac: computing role public keys")
	}
	for i, name := range t.names {
		t.publicKeys[name] = keys[i]
	}
	log.Debugf("rbac table ready with roles %v", t.names)
	return t, nil
}

// DefaultTable builds the table of DefaultRoles.
func DefaultTable(ctx context.Context, params *group.Params, pl *pool.Pool) (*Table, error) {
	return NewTable(ctx, params, pl, DefaultRoles())
}

// LoadTable reads a TableConfig from the JSON file at path.
func LoadTable(ctx context.Context, path string, params *group.Params, pl *pool.Pool) (*Table, error) {
	jsonFile, err := os.Open(path)
	if err != nil {
		log.Errorf("fail open %s", path)
		return nil, errors.Wrap(err, "rbac: open role table")
	}
	log.Infof("successfully open %s", path)
	defer jsonFile.Close()

	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "rbac: read role table")
	}
	var conf TableConfig
	if err = json.Unmarshal(byteValue, &conf); err != nil {
		log.Errorf("fail unmarshal %s", path)
		return nil, errors.Wrap(err, "rbac: decode role table")
	}
	roles, err := conf.Build(params)
	if err != nil {
		return nil, err
	}
	return NewTable(ctx, params, pl, roles)
}

// Build resolves every RoleConfig into a Role.
func (conf TableConfig) Build(params *group.Params) ([]Role, error) {
	roles := make([]Role, 0, len(conf.Roles))
	for _, rc := range conf.Roles {
		var (
			secret *big.Int
			err    error
		)
		switch {
		case rc.Secret != "" && rc.Mnemonic == "":
			secret, err = arith.ParseDecimal(rc.Secret)
		case rc.Mnemonic != "" && rc.Secret == "":
			secret, err = SecretFromMnemonic(params, rc.Mnemonic, rc.Passphrase)
		default:
			err = ErrRoleSecret
		}
		if err != nil {
			return nil, errors.Wrapf(err, "rbac: role %q", rc.Name)
		}
		roles = append(roles, Role{Name: rc.Name, Secret: secret, Permissions: rc.Permissions})
	}
	return roles, nil
}

// Params returns the group the table was built for.
func (t *Table) Params() *group.Params {
	return t.params
}

// Names returns the role names in sorted order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Secret returns a copy of the private key of role.
func (t *Table) Secret(role string) (*big.Int, bool) {
	r, ok := t.roles[strings.ToUpper(role)]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(r.Secret), true
}

// Permissions returns the permissions granted to role.
func (t *Table) Permissions(role string) ([]string, bool) {
	r, ok := t.roles[strings.ToUpper(role)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), r.Permissions...), true
}

// Resolve returns the role whose public key equals publicKey, compared as
// decimal strings. Roles are scanned in sorted order, so the result does not
// depend on map iteration.
func (t *Table) Resolve(publicKey string) (string, bool) {
	for _, name := range t.names {
		if t.publicKeys[name] == publicKey {
			return name, true
		}
	}
	return "", false
}

// Credential is what a device receives when it is set up for a role.
type Credential struct {
	Secret    string `json:"secret"`
	PublicKey string `json:"public_key"`
	Role      string `json:"role"`
}

// Provision hands out the key of the requested role. The request is case
// insensitive and defaults to STUDENT. An unknown role gets a fresh random
// key and is reported as UNKNOWN; that key will never resolve to a role.
func (t *Table) Provision(requested string) (*Credential, error) {
	role := strings.ToUpper(strings.TrimSpace(requested))
	if role == "" {
		role = RoleStudent
	}
	secret, ok := t.Secret(role)
	if !ok {
		var err error
		secret, err = sample.Scalar(rand.Reader, t.params.Q())
		if err != nil {
			return nil, errors.Wrap(err, "rbac: sampling secret")
		}
		role = RoleUnknown
	}
	return &Credential{
		Secret:    secret.String(),
		PublicKey: t.params.PublicKey(secret).String(),
		Role:      role,
	}, nil
}

// NewMnemonic returns a fresh 24 word BIP-39 mnemonic for provisioning a role.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// SecretFromMnemonic derives a role secret in [1, Q-1] from a BIP-39
// mnemonic and optional passphrase.
func SecretFromMnemonic(params *group.Params, mnemonic, passphrase string) (*big.Int, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, errors.Wrap(ErrMnemonic, err.Error())
	}
	// seed mod (Q-1) + 1
	qMinusOne := new(big.Int).Sub(params.Q(), big.NewInt(1))
	secret := new(big.Int).SetBytes(seed)
	secret.Mod(secret, qMinusOne)
	return secret.Add(secret, big.NewInt(1)), nil
}
