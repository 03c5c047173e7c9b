package sshserver

import (
	"bytes"
	"fmt"
	"os"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"
)

// LoadAuthorizedKeys parses an OpenSSH authorized_keys file. Options and
// comments are ignored.
func LoadAuthorizedKeys(path string) ([]ssh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}
	var keys []ssh.PublicKey
	line := 0
	for len(data) > 0 {
		line++
		var rest []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			rest = data[i+1:]
			data = data[:i]
		}
		trimmed := bytes.TrimSpace(data)
		data = rest
		if len(trimmed) == 0 || trimmed[0] == '#' {
			continue
		}
		key, _, _, _, err := ssh.ParseAuthorizedKey(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse authorized keys line %d: %w", line, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func keyAuthorized(keys []ssh.PublicKey, key gliderssh.PublicKey) bool {
	for _, allowed := range keys {
		if gliderssh.KeysEqual(allowed, key) {
			return true
		}
	}
	return false
}
