// Package util collects the small, self-contained helpers the core
// needs that don't belong to any one component: the encrypted-home
// probe and human-readable state labels used only for logging.
package util

import (
	"os"
	"sync"
)

// encryptedHomeDevice is the well-known device-mapper name for the
// encrypted home volume (historically backed by libcryptsetup against
// /dev/sailfish/home). This checks for the mapped device node's
// presence rather than linking against libcryptsetup directly, since
// opening a crypt context is not itself meaningful here: the daemon
// only needs to know whether home is encrypted, not to operate on the
// volume.
const encryptedHomeDevice = "/dev/sailfish/home"

var (
	probeOnce     sync.Once
	probedEncrypt bool
)

// HomeIsEncrypted reports whether the device's home partition is
// using encrypted storage. The device node is only ever probed once
// per process; every call after the first returns the cached result.
// A probe failure (the device node does not exist, or cannot be
// stat'd) is treated as "not encrypted": treating an unreadable probe
// as "encrypted" would be the more surprising direction to fail in
// for policy decisions gated on this value.
func HomeIsEncrypted() bool {
	probeOnce.Do(func() {
		_, err := os.Stat(encryptedHomeDevice)
		probedEncrypt = err == nil
	})
	return probedEncrypt
}
