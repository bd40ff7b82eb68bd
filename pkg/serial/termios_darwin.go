//go:build darwin

package serial

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA
	ioctlTCFlush    = unix.TIOCFLUSH

	iossiospeed = 0x80045402
)

var standardSpeeds = map[int]uint64{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// setSpeed stores a standard rate, or 9600 as a placeholder for a rate
// that applyCustomSpeed sets afterwards.
func setSpeed(t *unix.Termios, baud int) error {
	if baud <= 0 {
		return errUnsupportedBaud(baud)
	}
	speed, ok := standardSpeeds[baud]
	if !ok {
		speed = unix.B9600
	}
	t.Ispeed = speed
	t.Ospeed = speed
	return nil
}

// applyCustomSpeed sets a non-standard rate with IOSSIOSPEED. It must run
// after the termios update, which would reset it.
func applyCustomSpeed(fd int, baud int) error {
	if _, ok := standardSpeeds[baud]; ok {
		return nil
	}
	return unix.IoctlSetPointerInt(fd, iossiospeed, baud)
}
