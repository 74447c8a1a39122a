package shared

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"dominicbreuker/netpump/pkg/log"
)

// SetupSignalHandling cancels on the first interrupt so the connection can
// close gracefully. A second signal exits at once, otherwise the process
// exits after grace.
func SetupSignalHandling(cancel context.CancelFunc, grace time.Duration) {
	sigCh := make(chan os.Signal, 2)

	sigs := []os.Signal{os.Interrupt}
	if runtime.GOOS != "windows" {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
		// a closed stdout must not kill the pump
		signal.Ignore(syscall.SIGPIPE)
	}

	signal.Notify(sigCh, sigs...)

	go func() {
		s := <-sigCh
		log.InfoMsg("Received %s, closing\n", s)
		cancel()

		select {
		case <-sigCh:
			// POSIX exit code 128+sig where possible
			if ss, ok := s.(syscall.Signal); ok {
				os.Exit(128 + int(ss))
			}
			os.Exit(1)
		case <-time.After(grace):
			os.Exit(0)
		}
	}()
}
