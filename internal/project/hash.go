package project

import (
	"crypto/sha256"
)

// Digest - фиксированный 256 битный хеш (совместим с source.File.Hash)
type Digest [32]byte

// DigestOf hashes raw bytes.
func DigestOf(content []byte) Digest {
	return sha256.Sum256(content)
}

// Combine строит составной хеш: H( base || dep1 || dep2 ... ).
// Порядок deps должен быть детерминированным.
func Combine(base Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(base[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
