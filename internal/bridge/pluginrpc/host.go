package pluginrpc

import (
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/atinyakov/sharedpasswords/internal/bridge"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const defaultStartTimeout = 3 * time.Second

// Helper is a running credential helper process. It serves the bridge
// contract until Close is called.
type Helper struct {
	*Client
	client *plugin.Client
}

// Close stops the helper process.
func (h *Helper) Close() {
	h.client.Kill()
}

// Exited reports whether the helper process has gone away.
func (h *Helper) Exited() bool {
	return h.client.Exited()
}

// Launch starts the helper binary at path and dispenses its backend.
func Launch(path string, args ...string) (*Helper, error) {
	if path == "" {
		return nil, fmt.Errorf("credential helper path is empty")
	}
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          PluginMap(nil),
		Cmd:              exec.Command(path, args...),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger:           hclog.New(&hclog.LoggerOptions{Output: io.Discard, Level: hclog.NoLevel}),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("start credential helper: %w", err)
	}
	raw, err := rpcClient.Dispense(PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense credential backend: %w", err)
	}
	typed, ok := raw.(*Client)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("credential helper client type mismatch")
	}
	return &Helper{Client: typed, client: client}, nil
}

// Serve runs the helper side until the host disconnects. It is meant to be
// the whole of a helper binary's main.
func Serve(impl bridge.Backend) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap(impl),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
