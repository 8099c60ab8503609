package utils

import (
	"os/user"
	"strings"
)

// GetUsername returns the current username.
func GetUsername() (string, error) {
	user, err := user.Current()
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// DefaultDisplayName is the name offered during onboarding. It is the
// capitalized login name, or "User" when that is unavailable.
func DefaultDisplayName() string {
	name, err := GetUsername()
	if err != nil {
		return "User"
	}
	// Windows logins carry the domain.
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "User"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
