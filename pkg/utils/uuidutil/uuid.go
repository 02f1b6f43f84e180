package uuidutil

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

var escaper = strings.NewReplacer("9", "99", "-", "90", "_", "91")

// UUID is a random uuid as 32 hex characters, usable in MQTT topics.
func UUID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// ShortUUID is a random uuid in 22 to 44 characters of [0-9A-Za-z].
func ShortUUID() string {
	id := uuid.New()
	return escaper.Replace(base64.RawURLEncoding.EncodeToString(id[:]))
}

// ClientID suffixes prefix with a short uuid so that several processes can
// share a broker.
func ClientID(prefix string) string {
	return prefix + "-" + ShortUUID()
}
