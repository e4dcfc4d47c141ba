package wire

import (
	"encoding/binary"
	"os"
)

// Config controls optional codec behaviors.
// Defaults preserve the documented wire convention (little-endian integers,
// decoded buffers owned by the caller).
type Config struct {
	// BigEndianDefault: when true, structs that do not pick a byte order
	// explicitly use big-endian integers. When false (default) they use
	// little-endian.
	BigEndianDefault bool

	// ShareDecodedBuffers: when true, raw buffer fields decoded from an
	// in-memory source alias the source bytes instead of copying them.
	// Default false copies, so decoded objects never observe later writes
	// to the input slice.
	ShareDecodedBuffers bool
}

var config = Config{}

// SetConfig sets the global wire configuration. Defaults remain zero-valued
// unless explicitly changed by the caller.
func SetConfig(c Config) { config = c }

// CurrentConfig returns the global wire configuration.
func CurrentConfig() Config { return config }

// DefaultByteOrder returns the byte order used when a struct does not set one.
func DefaultByteOrder() binary.ByteOrder {
	if config.BigEndianDefault {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func init() {
	// Optional env toggles for test harnesses; defaults remain unchanged if unset.
	if v := os.Getenv("STRUCTLITE_BIG_ENDIAN"); v == "1" || v == "true" {
		config.BigEndianDefault = true
	}
	if v := os.Getenv("STRUCTLITE_SHARE_BUFFERS"); v == "1" || v == "true" {
		config.ShareDecodedBuffers = true
	}
}
