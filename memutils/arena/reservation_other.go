//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package arena

func reserve(capacity int) (reservation, error) {
	return bufferReservation(make([]byte, capacity)), nil
}
