package tacacs

import (
	"crypto/md5" //nolint:gosec // G501: MD5 required by RFC 8907 Section 4.5
	"encoding/binary"
)

// -------------------------------------------------------------------------
// Body Obfuscation — RFC 8907 Section 4.5
// -------------------------------------------------------------------------

// md5DigestSize is the MD5 digest length in octets.
const md5DigestSize = md5.Size

// pad grows buf by successive MD5 digests until it holds at least length
// octets, per RFC 8907 Section 4.5:
//
//	pad[0]  = MD5(session_id, secret, version, seq_no)
//	pad[i]  = MD5(session_id, secret, version, seq_no, pad[i-1])  for i > 0
//	pseudo_pad = {pad[0], pad[1], pad[2], ...}
//
// The returned slice is exactly length octets: the final digest chunk is
// truncated rather than over-allocated.
func pad(sessionID uint32, secret []byte, version uint8, seqNo uint8, length int) []byte {
	if length == 0 {
		return nil
	}

	out := make([]byte, 0, length)
	var sessionIDBuf [4]byte
	binary.BigEndian.PutUint32(sessionIDBuf[:], sessionID)

	h := md5.New() //nolint:gosec // G401: MD5 required by RFC 8907 Section 4.5
	var prev []byte

	for len(out) < length {
		h.Reset()
		h.Write(sessionIDBuf[:])
		h.Write(secret)
		h.Write([]byte{version})
		h.Write([]byte{seqNo})
		if prev != nil {
			h.Write(prev)
		}
		digest := h.Sum(nil)

		remaining := length - len(out)
		if remaining < len(digest) {
			out = append(out, digest[:remaining]...)
		} else {
			out = append(out, digest...)
		}
		prev = digest
	}

	return out
}

// obfuscate XORs body in place against the RFC 8907 Section 4.5 pseudo-pad
// keyed by sessionID, secret, version, and seqNo. Applying it twice with the
// same parameters recovers the original body (obfuscate is its own inverse),
// which is how both encode and decode use it.
func obfuscate(body []byte, sessionID uint32, secret []byte, version uint8, seqNo uint8) {
	if len(body) == 0 || len(secret) == 0 {
		return
	}
	mask := pad(sessionID, secret, version, seqNo, len(body))
	for i := range body {
		body[i] ^= mask[i]
	}
}
