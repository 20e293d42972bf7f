package core

import (
	"crypto/rand"
	"encoding/hex"

	"pkt.systems/shotpdf/schema"
)

func newSessionID() schema.SessionID {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "session-unknown"
	}
	return schema.SessionID(hex.EncodeToString(buf[:]))
}
