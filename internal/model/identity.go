// internal/model/identity.go
package model

import (
	"fmt"
	"strings"
)

const (
	keySeparator  = "~"
	ownerSlashEsc = "~~"
)

// RepositoryIdentity is the canonical (host, owner, name) triple of a git repository.
// Owner may hold nested path segments (e.g. "group/subgroup") and may be empty.
type RepositoryIdentity struct {
	Host  string `json:"host"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// NewIdentity normalizes the parts of a repository identity: the host is lower-cased,
// surrounding slashes are trimmed and a trailing ".git" is dropped from the name.
func NewIdentity(host, owner, name string) RepositoryIdentity {
	name = strings.Trim(name, "/")
	name = strings.TrimSuffix(name, ".git")
	return RepositoryIdentity{
		Host:  strings.ToLower(strings.Trim(host, "/")),
		Owner: strings.Trim(owner, "/"),
		Name:  name,
	}
}

// Key returns the persisted repository key, host~owner~name, with "/" inside owner escaped as "~~".
func (id RepositoryIdentity) Key() string {
	return GenerateKey(id.Host, id.Owner, id.Name)
}

// IsZero reports whether the identity is unset.
func (id RepositoryIdentity) IsZero() bool {
	return id.Host == "" && id.Owner == "" && id.Name == ""
}

func (id RepositoryIdentity) String() string {
	if id.Owner == "" {
		return id.Host + "/" + id.Name
	}
	return id.Host + "/" + id.Owner + "/" + id.Name
}

// GenerateKey builds a repository key from its parts.
func GenerateKey(host, owner, name string) string {
	return host + keySeparator + strings.ReplaceAll(owner, "/", ownerSlashEsc) + keySeparator + name
}

// ParseKey is the inverse of RepositoryIdentity.Key.
func ParseKey(key string) (RepositoryIdentity, error) {
	first := strings.Index(key, keySeparator)
	last := strings.LastIndex(key, keySeparator)
	if first <= 0 || last == first || last == len(key)-1 {
		return RepositoryIdentity{}, fmt.Errorf("invalid repository key: %q", key)
	}
	owner := strings.ReplaceAll(key[first+1:last], ownerSlashEsc, "/")
	if strings.Contains(owner, keySeparator) {
		return RepositoryIdentity{}, fmt.Errorf("invalid repository key: %q", key)
	}
	return RepositoryIdentity{
		Host:  key[:first],
		Owner: owner,
		Name:  key[last+1:],
	}, nil
}
