// Command client is a small CLI around the shared passwords facade. It
// exercises every operation against the configured credential backend.
package main

import (
	"cmp"
	"fmt"
	"os"

	"github.com/atinyakov/sharedpasswords/internal/app"
	"github.com/atinyakov/sharedpasswords/internal/config"
	"github.com/atinyakov/sharedpasswords/internal/logger"
	"github.com/atinyakov/sharedpasswords/internal/service"
)

var (
	version   string
	buildDate string
)

func main() {
	var cleanup func()
	root := newRootCmd(func(o *config.Options) (*service.SharedPasswords, error) {
		log := logger.New()
		if err := log.Init(o.LogLevel); err != nil {
			return nil, err
		}
		facade, stop, err := app.DefaultPublisher().NewFacade(o, log.Log)
		if err != nil {
			return nil, err
		}
		cleanup = func() {
			stop()
			_ = log.Log.Sync()
		}
		return facade, nil
	})
	root.Version = fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	err := root.Execute()
	// helper processes must stop before exit
	if cleanup != nil {
		cleanup()
	}
	if err != nil {
		os.Exit(1)
	}
}
