package termui

import (
	"context"
	"errors"
	"os"

	"golang.org/x/term"
	"pkt.systems/conch/schema"
)

// ErrNotTerminal reports that stdin or stdout is not a terminal.
var ErrNotTerminal = errors.New("stdin and stdout must be a terminal")

// RunLocal attaches console to the process terminal until the user quits or
// ctx is done. The terminal is restored on return.
func RunLocal(ctx context.Context, console Console, events <-chan schema.ConsoleEvent) error {
	inFD := int(os.Stdin.Fd())
	outFD := int(os.Stdout.Fd())
	if !term.IsTerminal(inFD) || !term.IsTerminal(outFD) {
		return ErrNotTerminal
	}
	state, err := term.MakeRaw(inFD)
	if err != nil {
		return err
	}
	defer func() { _ = term.Restore(inFD, state) }()

	width, height, err := term.GetSize(outFD)
	if err != nil {
		width, height = 80, 24
	}
	session := NewSession(console, os.Stdin, os.Stdout, events, Options{
		Size:      Size{Width: width, Height: height},
		AltScreen: true,
	})
	resize, stop := watchResize(outFD)
	defer stop()
	return session.Run(ctx, resize)
}
