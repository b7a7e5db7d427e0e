// frrlab turns a compact lab description into a Kathara lab directory with
// FRR routing configuration.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/psaab/frrlab/pkg/frr"
	"github.com/psaab/frrlab/pkg/ifaddr"
	"github.com/psaab/frrlab/pkg/logging"
	"github.com/psaab/frrlab/pkg/settings"
)

// app carries what every command needs. Tests replace fs and the writers.
type app struct {
	v        *viper.Viper
	settings *settings.Settings
	rec      *logging.Recorder
	fs       afero.Fs
	stdout   io.Writer
	stderr   io.Writer

	vtysh   frr.Runner
	netlink func() (ifaddr.Netlink, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		v:      settings.New(),
		fs:     afero.NewOsFs(),
		stdout: stdout,
		stderr: stderr,
		vtysh:  frr.Vtysh,
		netlink: func() (ifaddr.Netlink, error) {
			h, err := ifaddr.NewHandle()
			if err != nil {
				return nil, err
			}
			return h, nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errDrift) && !errors.Is(err, errSessionsDown) {
			fmt.Fprintf(os.Stderr, "frrlab: %v\n", err)
		}
		os.Exit(1)
	}
}
