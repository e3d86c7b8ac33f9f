package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Credentials holds the replica database login pair.
type Credentials struct {
	User     string
	Password string
}

// LoadCredentials reads a MySQL-style cnf file (as provisioned on Toolforge
// at ~/replica.my.cnf) and extracts the user and password keys. Section
// headers and comments are skipped; quotes around values are stripped.
func LoadCredentials(path string) (Credentials, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, fmt.Errorf("credential file not found: %s", path)
		}
		return Credentials{}, fmt.Errorf("opening credential file: %w", err)
	}
	defer file.Close()

	var creds Credentials
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `'"`)
		switch key {
		case "user":
			creds.User = value
		case "password":
			creds.Password = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, fmt.Errorf("reading credential file: %w", err)
	}

	if creds.User == "" || creds.Password == "" {
		return Credentials{}, fmt.Errorf("credential file %s is missing user or password", path)
	}
	return creds, nil
}
