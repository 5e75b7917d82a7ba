package auth

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Principal is an authenticatable identity. Immutable once loaded.
type Principal struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         Role   `yaml:"role"`
}

// DefaultPrincipals is the built-in table used when no principals file is
// configured. These are the stock development accounts; any real deployment
// must supply its own file.
var DefaultPrincipals = []Principal{
	{Username: "admin", PasswordHash: "$2a$12$LQv3c1yqBWVHxkd0LHAkCOYz6TtxMQJqhN8/LewdBPj2sBtlzk7.e", Role: RoleAdmin},
	{Username: "user", PasswordHash: "$2a$12$92z/gHquqNEY0B8EWOOPee/CJaUl/V7zQm0s8YJRHVa3cH3xqiQ5W", Role: RoleUser},
}

// CredentialStore is a read-only principal table keyed by username. It is
// safe for concurrent use because nothing mutates it after construction.
type CredentialStore struct {
	principals map[string]Principal
	cost       int
}

// NewCredentialStore validates principals and builds the lookup table. All
// password hashes must use the same bcrypt cost.
func NewCredentialStore(principals []Principal) (*CredentialStore, error) {
	if len(principals) == 0 {
		return nil, fmt.Errorf("no principals configured")
	}
	cs := &CredentialStore{principals: make(map[string]Principal, len(principals))}
	for i, p := range principals {
		p.Username = strings.TrimSpace(p.Username)
		if p.Username == "" {
			return nil, fmt.Errorf("principal %d: empty username", i)
		}
		if _, dup := cs.principals[p.Username]; dup {
			return nil, fmt.Errorf("principal %q: duplicate username", p.Username)
		}
		if !p.Role.Valid() {
			return nil, fmt.Errorf("principal %q: invalid role %q", p.Username, p.Role)
		}
		cost, err := bcrypt.Cost([]byte(p.PasswordHash))
		if err != nil {
			return nil, fmt.Errorf("principal %q: invalid password hash: %w", p.Username, err)
		}
		// One cost for every hash, or verify time tells which usernames exist.
		if cs.cost != 0 && cost != cs.cost {
			return nil, fmt.Errorf("principal %q: bcrypt cost %d differs from %d used by the other principals", p.Username, cost, cs.cost)
		}
		cs.cost = cost
		cs.principals[p.Username] = p
	}
	return cs, nil
}

type principalsFile struct {
	Principals []Principal `yaml:"principals"`
}

// LoadCredentialStore reads a YAML principals file. An empty path selects
// DefaultPrincipals.
func LoadCredentialStore(path string) (*CredentialStore, error) {
	if path == "" {
		return NewCredentialStore(DefaultPrincipals)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read principals file: %w", err)
	}
	var f principalsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse principals file: %w", err)
	}
	return NewCredentialStore(f.Principals)
}

// Lookup returns the principal for username. An unknown username is a
// normal miss, not an error.
func (cs *CredentialStore) Lookup(username string) (Principal, bool) {
	p, ok := cs.principals[username]
	return p, ok
}

// Cost is the bcrypt cost shared by all stored hashes.
func (cs *CredentialStore) Cost() int {
	return cs.cost
}

// Len returns the number of principals.
func (cs *CredentialStore) Len() int {
	return len(cs.principals)
}
