//go:build windows

package cmd

import "os"

// gracefulSignals returns the OS signals to capture for graceful shutdown.
// On Windows, os.Interrupt is the only portably supported signal.
func gracefulSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
