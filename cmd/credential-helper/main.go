// Command credential-helper serves the OS keyring over the plugin bridge.
// It is launched by hosts configured with the plugin backend and is not
// meant to be run by hand.
package main

import (
	"flag"

	"github.com/atinyakov/sharedpasswords/internal/bridge/keyring"
	"github.com/atinyakov/sharedpasswords/internal/bridge/pluginrpc"
)

func main() {
	var cfg keyring.Config
	flag.StringVar(&cfg.Service, "service", keyring.DefaultService, "keyring service prefix")
	flag.StringVar(&cfg.DefaultDomain, "domain", "", "default credential domain")
	flag.Parse()

	pluginrpc.Serve(keyring.New(cfg))
}
