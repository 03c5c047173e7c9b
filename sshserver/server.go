package sshserver

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	gliderssh "github.com/gliderlabs/ssh"
	"github.com/muesli/termenv"
	"golang.org/x/crypto/ssh"

	"pkt.systems/conch/internal/consoles"
	"pkt.systems/conch/internal/logx"
	"pkt.systems/conch/internal/sessionprefs"
	"pkt.systems/conch/internal/termui"
	"pkt.systems/pslog"
)

// Consoles opens one console per SSH session.
type Consoles interface {
	Open(ctx context.Context) (*consoles.Session, error)
}

// Server exposes consoles over SSH.
type Server struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
	Listener           net.Listener
	Consoles           Consoles
	logger             pslog.Logger
}

// NewServer constructs a server from cfg.
func NewServer(cfg Config, factory Consoles) *Server {
	return &Server{
		Addr:               cfg.Addr,
		HostKeyPath:        cfg.HostKeyPath,
		AuthorizedKeysPath: cfg.AuthorizedKeysPath,
		Consoles:           factory,
	}
}

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.Consoles == nil {
		return errors.New("console factory is required for SSH")
	}
	if strings.TrimSpace(s.AuthorizedKeysPath) == "" {
		return errors.New("authorized keys file is required for SSH")
	}
	if _, err := LoadAuthorizedKeys(s.AuthorizedKeysPath); err != nil {
		return err
	}

	signer, err := EnsureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}

	server := &gliderssh.Server{
		Addr:             s.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	server.AddHostKey(signer)
	s.logger.Info("ssh host key loaded", "path", s.HostKeyPath, "fingerprint", HostKeyFingerprint(signer))

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	fingerprint := ssh.FingerprintSHA256(key)
	log = log.With("user", ctx.User(), "remote", remoteAddr(ctx), "fingerprint", fingerprint)
	if sshSession := ctx.SessionID(); sshSession != "" {
		log = log.With("ssh_session", sshSession)
	}
	if ctx.User() == "" {
		log.Warn("ssh pubkey rejected", "reason", "missing user")
		return false
	}
	keys, err := LoadAuthorizedKeys(s.AuthorizedKeysPath)
	if err != nil {
		log.Warn("ssh pubkey rejected", "err", err)
		return false
	}
	if !keyAuthorized(keys, key) {
		log.Warn("ssh pubkey rejected", "reason", "no matching key")
		return false
	}
	log.Info("ssh pubkey accepted")
	return true
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(sess.Context())
	}
	user := sess.User()
	log = log.With("user", user, "remote", sess.RemoteAddr().String())
	if sshSession := sess.Context().SessionID(); sshSession != "" {
		log = log.With("ssh_session", sshSession)
	}

	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		_ = sess.Exit(1)
		return
	}

	ctx := logx.ContextWithFrontendLogger(sess.Context(), log, "ssh")
	ctx = sessionprefs.WithContext(ctx, sessionprefs.New(user, "ssh"))
	session, err := s.Consoles.Open(ctx)
	if err != nil {
		log.Warn("ssh session rejected", "reason", "console open failed", "err", err)
		_, _ = io.WriteString(sess, "console unavailable\n")
		_ = sess.Exit(1)
		return
	}
	defer session.Close()

	log.Info("ssh session opened", "term", pty.Term, "console", session.Console.ID())
	profile := termenv.TrueColor
	ui := termui.NewSession(session.Console, sess, sess, session.Events, termui.Options{
		Size:      termui.Size{Width: pty.Window.Width, Height: pty.Window.Height},
		Profile:   &profile,
		AltScreen: true,
	})
	_ = ui.Run(session.Context(), resizes(sess.Context(), winCh))
	log.Info("ssh session closed", "term", pty.Term)
	_ = sess.Exit(0)
}

func resizes(ctx context.Context, winCh <-chan gliderssh.Window) <-chan termui.Size {
	out := make(chan termui.Size, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case win, ok := <-winCh:
				if !ok {
					return
				}
				select {
				case out <- termui.Size{Width: win.Width, Height: win.Height}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
