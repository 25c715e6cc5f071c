// Package idgen provides pluggable ID generation for leadwatch.
//
// Constructors across the agent accept a Generator, making the ID strategy
// a startup-time decision rather than a compile-time one.
package idgen

import (
	"crypto/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Short, URL-safe, fast. Collision probability is not a correctness
// requirement for any leadwatch identifier.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		b := make([]byte, length)
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range b {
			b[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(b)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
// Useful for type-scoped identifiers (e.g. "sess_", "env_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Stamped wraps a Generator and appends the current Unix-millisecond
// timestamp. Session identifiers use this shape: a random core plus a
// creation timestamp, readable without decoding.
func Stamped(gen Generator) Generator {
	return func() string {
		return gen() + "_" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
}

// Session is the generator for per-tab session identifiers:
// "sess_<9 base-36 chars>_<unix ms>".
var Session Generator = Prefixed("sess_", Stamped(NanoID(9)))

// Default is the repo-wide default: UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
