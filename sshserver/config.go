package sshserver

// Config defines SSH server settings.
type Config struct {
	Addr        string
	HostKeyPath string
	// AuthorizedKeysPath lists the public keys allowed to log in, in
	// OpenSSH authorized_keys format. It is re-read on every attempt.
	AuthorizedKeysPath string
}
