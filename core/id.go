package core

import (
	"crypto/rand"
	"encoding/hex"

	"pkt.systems/conch/schema"
)

func newConsoleID() schema.ConsoleID {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "console-unknown"
	}
	return schema.ConsoleID(hex.EncodeToString(buf[:]))
}
