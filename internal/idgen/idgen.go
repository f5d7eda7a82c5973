// Package idgen generates the short, log-friendly identifiers workers use
// to name themselves as stream consumers, grounded in the teacher's own
// node-ID generator (cmn/cos/uuid.go): teris-io/shortid for the random
// component, OneOfOne/xxhash for deriving a stable suffix from a caller
// key when one is available.
package idgen

import (
	"strconv"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

var (
	once sync.Once
	sid  *shortid.Shortid
)

func generator() *shortid.Shortid {
	once.Do(func() {
		sid = shortid.MustNew(1, shortid.DEFAULT_ABC, 0)
	})
	return sid
}

// Consumer returns a short random identifier suitable for a stream
// consumer name, e.g. "filter-worker-8f3kQ1z".
func Consumer(prefix string) string {
	return prefix + "-" + generator().MustGenerate()
}

// StableSuffix derives a short, deterministic suffix from key — used when
// a caller wants the same input to always produce the same consumer name
// across restarts (e.g. one consumer name per configured filter ID) rather
// than a fresh random one every run.
func StableSuffix(key string) string {
	digest := xxhash.Checksum64([]byte(key))
	return strconv.FormatUint(digest, 36)
}
