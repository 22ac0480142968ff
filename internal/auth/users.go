package auth

import (
	"context"
	"sort"

	"github.com/OldStager01/imagizer-autoscaler/pkg/database/queries"
)

// StaticUsers serves logins from configuration when no database is
// configured. Passwords are stored as bcrypt hashes.
type StaticUsers struct {
	users map[string]*queries.User
}

// NewStaticUsers builds the store from username -> bcrypt hash pairs. IDs
// are assigned in username order so they are stable across restarts.
func NewStaticUsers(hashes map[string]string) *StaticUsers {
	names := make([]string, 0, len(hashes))
	for name := range hashes {
		names = append(names, name)
	}
	sort.Strings(names)

	users := make(map[string]*queries.User, len(names))
	for i, name := range names {
		users[name] = &queries.User{
			ID:           i + 1,
			Username:     name,
			PasswordHash: hashes[name],
		}
	}
	return &StaticUsers{users: users}
}

func (s *StaticUsers) GetByUsername(ctx context.Context, username string) (*queries.User, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, queries.ErrUserNotFound
	}
	out := *user
	return &out, nil
}
