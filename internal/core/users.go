package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/JonMunkholm/residents/internal/auth"
	"github.com/JonMunkholm/residents/internal/database"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,31}$`)

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EncodeSecretariats stores a secretariat list as a JSON array string.
// Names are normalized, deduplicated and sorted.
func EncodeSecretariats(list []string) string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = NormalizePlace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)

	b, _ := json.Marshal(out)
	return string(b)
}

// DecodeSecretariats parses a stored secretariat list. Malformed values
// decode to an empty list and are logged.
func DecodeSecretariats(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		slog.Warn("invalid secretariats value", "value", raw, "error", err)
		return []string{}
	}
	if list == nil {
		list = []string{}
	}
	return list
}

// UserView is a user as shown to admins.
type UserView struct {
	database.User
	Secretariats []string `json:"secretariats"`
}

func viewUser(u database.User) UserView {
	return UserView{User: u, Secretariats: DecodeSecretariats(u.Secretariats)}
}

// ActorFor builds the actor of a stored user.
func ActorFor(u database.User) Actor {
	return Actor{
		UserID:       u.ID,
		Username:     u.Username,
		FullName:     u.FullName,
		Role:         u.Role,
		Secretariats: DecodeSecretariats(u.Secretariats),
	}
}

// NewUser holds the fields of a user to create.
type NewUser struct {
	Username     string   `json:"username"`
	Password     string   `json:"password"`
	FullName     string   `json:"fullName"`
	Role         string   `json:"role"`
	Secretariats []string `json:"secretariats"`
	Active       *bool    `json:"active"` // defaults to true
}

func (n NewUser) params() (database.CreateUserParams, error) {
	username := NormalizeUsername(n.Username)
	if !usernamePattern.MatchString(username) {
		return database.CreateUserParams{}, &ValidationError{
			Field: "username", Value: n.Username,
			Msg: "must be 3-32 characters of letters, digits, dot, dash or underscore",
		}
	}
	if !ValidRole(n.Role) {
		return database.CreateUserParams{}, &ValidationError{
			Field: "role", Value: n.Role,
			Msg: "must be one of " + strings.Join(Roles, ", "),
		}
	}
	hash, err := auth.HashPassword(n.Password)
	if err != nil {
		return database.CreateUserParams{}, &ValidationError{Field: "password", Msg: err.Error()}
	}

	active := true
	if n.Active != nil {
		active = *n.Active
	}
	return database.CreateUserParams{
		Username:     username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(n.FullName),
		Role:         n.Role,
		Secretariats: EncodeSecretariats(n.Secretariats),
		Active:       active,
	}, nil
}

// CreateUser adds a user. Admin only.
func (s *Service) CreateUser(ctx context.Context, actor Actor, n NewUser) (UserView, error) {
	if !actor.IsAdmin() {
		return UserView{}, fmt.Errorf("create user: %w", ErrForbidden)
	}
	p, err := n.params()
	if err != nil {
		return UserView{}, err
	}
	u, err := s.store.CreateUser(ctx, p)
	if err != nil {
		return UserView{}, err
	}
	slog.Info("user created", "username", u.Username, "role", u.Role, "by", actor.Username)
	return viewUser(u), nil
}

// ListUsers returns every user. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor Actor) ([]UserView, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("list users: %w", ErrForbidden)
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]UserView, len(users))
	for i, u := range users {
		out[i] = viewUser(u)
	}
	return out, nil
}

// UserUpdate changes a user. Nil fields are left as they are.
type UserUpdate struct {
	FullName     *string   `json:"fullName"`
	Role         *string   `json:"role"`
	Secretariats *[]string `json:"secretariats"`
	Active       *bool     `json:"active"`
	Password     *string   `json:"password"`
}

// UpdateUser applies u to user id. Admin only. Admins cannot demote or
// deactivate themselves.
func (s *Service) UpdateUser(ctx context.Context, actor Actor, id int64, u UserUpdate) (UserView, error) {
	if !actor.IsAdmin() {
		return UserView{}, fmt.Errorf("update user: %w", ErrForbidden)
	}
	cur, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return UserView{}, fmt.Errorf("user %d: %w", id, err)
	}

	p := database.UpdateUserParams{
		ID:           cur.ID,
		FullName:     cur.FullName,
		Role:         cur.Role,
		Secretariats: cur.Secretariats,
		Active:       cur.Active,
	}
	if u.FullName != nil {
		p.FullName = strings.TrimSpace(*u.FullName)
	}
	if u.Role != nil {
		if !ValidRole(*u.Role) {
			return UserView{}, &ValidationError{Field: "role", Value: *u.Role, Msg: "must be one of " + strings.Join(Roles, ", ")}
		}
		p.Role = *u.Role
	}
	if u.Secretariats != nil {
		p.Secretariats = EncodeSecretariats(*u.Secretariats)
	}
	if u.Active != nil {
		p.Active = *u.Active
	}
	if cur.ID == actor.UserID && (p.Role != RoleAdmin || !p.Active) {
		return UserView{}, &ValidationError{Field: "role", Msg: "admins cannot demote or deactivate themselves"}
	}

	if u.Password != nil {
		hash, err := auth.HashPassword(*u.Password)
		if err != nil {
			return UserView{}, &ValidationError{Field: "password", Msg: err.Error()}
		}
		p.PasswordHash = &hash
	}

	updated, err := s.store.UpdateUser(ctx, p)
	if err != nil {
		return UserView{}, fmt.Errorf("update user %d: %w", id, err)
	}
	slog.Info("user updated", "username", updated.Username, "role", updated.Role, "active", updated.Active, "by", actor.Username)
	return viewUser(updated), nil
}

// ResetPassword sets a new password for user id. Admin only.
func (s *Service) ResetPassword(ctx context.Context, actor Actor, id int64, password string) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("reset password: %w", ErrForbidden)
	}
	return s.setPassword(ctx, id, password)
}

func (s *Service) setPassword(ctx context.Context, id int64, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return &ValidationError{Field: "password", Msg: err.Error()}
	}
	if err := s.store.SetUserPassword(ctx, id, hash); err != nil {
		return fmt.Errorf("user %d: %w", id, err)
	}
	return nil
}

// Authenticate checks a username and password. Unknown users, wrong
// passwords and inactive accounts all yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Actor, error) {
	u, err := s.store.GetUserByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Actor{}, ErrInvalidCredentials
		}
		return Actor{}, fmt.Errorf("authenticate: %w", err)
	}
	if !u.Active || !auth.CheckPassword(password, u.PasswordHash) {
		return Actor{}, ErrInvalidCredentials
	}
	return ActorFor(u), nil
}

// ActorByID loads the current actor of a session. Deactivated users are
// rejected with ErrInvalidCredentials.
func (s *Service) ActorByID(ctx context.Context, id int64) (Actor, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Actor{}, ErrInvalidCredentials
		}
		return Actor{}, fmt.Errorf("load user %d: %w", id, err)
	}
	if !u.Active {
		return Actor{}, ErrInvalidCredentials
	}
	return ActorFor(u), nil
}

// SeedUsers creates the given users unless their usernames exist. It
// returns the number of users created. Invalid entries are skipped and
// logged.
func (s *Service) SeedUsers(ctx context.Context, seeds []auth.SeedUser) (int, error) {
	created := 0
	for _, seed := range seeds {
		p, err := NewUser{
			Username:     seed.Username,
			Password:     seed.Password,
			FullName:     seed.FullName,
			Role:         seed.Role,
			Secretariats: seed.Secretariats,
		}.params()
		if err != nil {
			slog.Warn("skipping seed user", "username", seed.Username, "error", err)
			continue
		}
		ok, err := s.store.EnsureUser(ctx, p)
		if err != nil {
			return created, err
		}
		if ok {
			created++
			slog.Info("seeded user", "username", p.Username, "role", p.Role)
		}
	}
	return created, nil
}
