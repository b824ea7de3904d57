// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files guarded by build tags.

package affinity

import "runtime"

// SetAffinity pins the calling OS thread to a given logical CPU on supported
// platforms. The caller must hold runtime.LockOSThread for the pin to stay
// with its goroutine.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// Pin locks the calling goroutine to its OS thread and pins that thread to
// cpuID. The returned release func unlocks the thread. A negative cpuID only
// returns a no-op release.
func Pin(cpuID int) (release func(), err error) {
	if cpuID < 0 {
		return func() {}, nil
	}
	runtime.LockOSThread()
	if err := SetAffinity(cpuID); err != nil {
		runtime.UnlockOSThread()
		return func() {}, err
	}
	return runtime.UnlockOSThread, nil
}
