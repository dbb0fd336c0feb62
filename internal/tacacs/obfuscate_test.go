package tacacs

import (
	"bytes"
	"crypto/md5" //nolint:gosec // test mirrors the RFC 8907 Section 4.5 pad definition directly
	"encoding/binary"
	"testing"
)

func TestObfuscateRoundTrip(t *testing.T) {
	t.Parallel()

	body := []byte("ABCD")
	sessionID := uint32(0x12345678)
	secret := []byte("k")
	version := uint8(0xC0)
	seq := uint8(1)

	got := append([]byte{}, body...)
	obfuscate(got, sessionID, secret, version, seq)
	if bytes.Equal(got, body) {
		t.Fatal("obfuscate did not change the body")
	}

	obfuscate(got, sessionID, secret, version, seq)
	if !bytes.Equal(got, body) {
		t.Fatalf("obfuscate twice = %q, want original %q", got, body)
	}
}

// TestObfuscateScenario5 pins a known-good pad value: the pad's first
// four octets equal MD5(session_id || secret || version || seq)[0..4].
func TestObfuscateScenario5(t *testing.T) {
	t.Parallel()

	sessionID := uint32(0x12345678)
	secret := []byte("k")
	version := uint8(0xC0)
	seq := uint8(1)
	body := []byte("ABCD")

	var sessionIDBuf [4]byte
	binary.BigEndian.PutUint32(sessionIDBuf[:], sessionID)
	h := md5.New() //nolint:gosec // test mirrors RFC 8907 Section 4.5
	h.Write(sessionIDBuf[:])
	h.Write(secret)
	h.Write([]byte{version})
	h.Write([]byte{seq})
	wantPad := h.Sum(nil)[:4]

	cipher := append([]byte{}, body...)
	obfuscate(cipher, sessionID, secret, version, seq)

	gotPad := make([]byte, 4)
	for i := range gotPad {
		gotPad[i] = cipher[i] ^ body[i]
	}

	if !bytes.Equal(gotPad, wantPad) {
		t.Fatalf("pad = %x, want %x", gotPad, wantPad)
	}
}

func TestObfuscateZeroLength(t *testing.T) {
	t.Parallel()

	var body []byte
	obfuscate(body, 1, []byte("secret"), 0xC0, 1)
	if len(body) != 0 {
		t.Fatalf("zero-length body grew to %d bytes", len(body))
	}
}

func TestPadNeverExceedsLength(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 15, 16, 17, 31, 32, 33, 100} {
		p := pad(1, []byte("secret"), 0xC0, 1, n)
		if len(p) != n {
			t.Errorf("pad(length=%d) returned %d bytes", n, len(p))
		}
	}
}

func TestObfuscateNoSecretIsNoop(t *testing.T) {
	t.Parallel()

	body := []byte("hello")
	orig := append([]byte{}, body...)
	obfuscate(body, 1, nil, 0xC0, 1)
	if !bytes.Equal(body, orig) {
		t.Fatal("obfuscate with no secret must leave the body untouched")
	}
}
