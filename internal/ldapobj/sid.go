package ldapobj

import (
	"encoding/binary"
	"fmt"
)

// DecodeSID converts a binary objectSid attribute value into its canonical
// S-1-5-21-... string form. Layout: revision(1) sub-authority-count(1)
// authority(6, big-endian) sub-authorities(4 each, little-endian).
func DecodeSID(raw []byte) (string, error) {
	if len(raw) < 8 {
		return "", fmt.Errorf("ldapobj: SID too short (%d bytes)", len(raw))
	}
	revision := raw[0]
	subCount := int(raw[1])
	if len(raw) != 8+4*subCount {
		return "", fmt.Errorf("ldapobj: SID length mismatch: have %d want %d", len(raw), 8+4*subCount)
	}

	var authority uint64
	for i := 2; i < 8; i++ {
		authority = authority<<8 | uint64(raw[i])
	}

	sid := fmt.Sprintf("S-%d-%d", revision, authority)
	for i := 0; i < subCount; i++ {
		sub := binary.LittleEndian.Uint32(raw[8+i*4 : 12+i*4])
		sid += fmt.Sprintf("-%d", sub)
	}
	return sid, nil
}
