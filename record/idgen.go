package record

import (
	"crypto/sha256"
	"encoding/base32"

	"github.com/google/uuid"
)

// crockfordEncoding is the lowercase Crockford base32 alphabet used for
// deterministic record ids. The standard library ships RFC 4648 base32 only;
// Crockford's variant (no padding, no ambiguous I/L/O/U) has to be built by
// hand on top of encoding/base32's custom-alphabet support.
var crockfordEncoding = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// IDFromHashedString derives a deterministic, URL-safe id from an arbitrary
// string by hashing it with SHA-256 and Crockford-base32-encoding the first
// 16 bytes (128 bits) of the digest.
func IDFromHashedString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return crockfordEncoding.EncodeToString(sum[:16])
}

// IDFromUUID generates a random id by Crockford-base32-encoding a fresh
// UUIDv4's 16 bytes.
func IDFromUUID() string {
	u := uuid.New()
	b := u[:]
	return crockfordEncoding.EncodeToString(b)
}
