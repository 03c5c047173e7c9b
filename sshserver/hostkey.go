package sshserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"pkt.systems/conch/internal/atomicfile"
)

const hostKeyPerm = 0o600

// EnsureHostKey returns the ed25519 host key stored at path, generating it on
// first use. A key readable by group or others is narrowed to 0600.
func EnsureHostKey(path string) (ssh.Signer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ssh host key path is required")
	}
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.Mode().Perm()&0o077 != 0 {
			if err := os.Chmod(path, hostKeyPerm); err != nil {
				return nil, fmt.Errorf("restrict host key: %w", err)
			}
		}
		return loadHostKey(path)
	case errors.Is(err, fs.ErrNotExist):
		return generateHostKey(path)
	default:
		return nil, fmt.Errorf("stat host key: %w", err)
	}
}

func generateHostKey(path string) (ssh.Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "conch host key")
	if err != nil {
		return nil, fmt.Errorf("marshal host key: %w", err)
	}
	if err := atomicfile.Write(path, pem.EncodeToMemory(block), hostKeyPerm); err != nil {
		return nil, fmt.Errorf("write host key: %w", err)
	}
	return ssh.NewSignerFromKey(priv)
}

func loadHostKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read host key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse host key %s: %w", path, err)
	}
	return signer, nil
}

// HostKeyFingerprint returns the SHA256 fingerprint clients will be shown.
func HostKeyFingerprint(signer ssh.Signer) string {
	if signer == nil {
		return ""
	}
	return ssh.FingerprintSHA256(signer.PublicKey())
}
