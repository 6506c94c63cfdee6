package auth

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedUser is one entry of the users seed file.
type SeedUser struct {
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	FullName     string   `yaml:"full_name"`
	Role         string   `yaml:"role"`
	Secretariats []string `yaml:"secretariats"`
}

type seedFile struct {
	Users []SeedUser `yaml:"users"`
}

// LoadSeedFile reads a YAML users file:
//
//	users:
//	  - username: admin
//	    password: change-me-now
//	    role: admin
//	  - username: officer1
//	    password: another-secret
//	    role: field_officer
//	    secretariats: [Rampur, Kothapalli]
func LoadSeedFile(path string) ([]SeedUser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML. Entries without a username or password are
// skipped.
func ParseSeed(data []byte) ([]SeedUser, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}

	users := make([]SeedUser, 0, len(f.Users))
	for _, u := range f.Users {
		if u.Username == "" || u.Password == "" {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}
