// Package device derives a stable identity for this installation from host
// characteristics, so repeat logins from the same machine map to one session row.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"sync"
)

// Identity computes the device ID and display name once per process and
// caches them. Construct one and inject it; callers must not derive their own.
type Identity struct {
	once sync.Once
	id   string
	name string
}

// NewIdentity returns an Identity that derives its values lazily on first use.
func NewIdentity() *Identity {
	return &Identity{}
}

func (i *Identity) compute() {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	sum := sha256.Sum256([]byte(host + "|" + runtime.GOOS + "|" + runtime.GOARCH))
	i.id = hex.EncodeToString(sum[:])
	i.name = fmt.Sprintf("%s (%s/%s)", host, runtime.GOOS, runtime.GOARCH)
}

// ID returns the deterministic device identifier, stable for the life of the installation.
func (i *Identity) ID() string {
	i.once.Do(i.compute)
	return i.id
}

// Name returns a human-readable label for this device. Not used for identity.
func (i *Identity) Name() string {
	i.once.Do(i.compute)
	return i.name
}
