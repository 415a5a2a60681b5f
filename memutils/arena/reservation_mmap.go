//go:build linux || darwin || freebsd || netbsd || openbsd

package arena

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

type mmapReservation struct {
	data []byte
}

func reserve(capacity int) (reservation, error) {
	data, err := unix.Mmap(-1, 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reserve %d bytes for the arena", capacity)
	}

	return &mmapReservation{data: data}, nil
}

func (r *mmapReservation) Bytes() []byte { return r.data }

func (r *mmapReservation) Release() error {
	if r.data == nil {
		return nil
	}

	err := unix.Munmap(r.data)
	r.data = nil
	return errors.Wrap(err, "failed to release the arena reservation")
}
