// Package pluginrpc carries the bridge contract across a process boundary.
// A credential helper binary serves a bridge.Backend over go-plugin's gRPC
// transport; the host dispenses a client that is itself a bridge.Backend.
// Messages are JSON encoded so no generated code is needed on either side.
package pluginrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atinyakov/sharedpasswords/internal/bridge"
	"github.com/atinyakov/sharedpasswords/internal/models"
	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey  = "credentials"
	serviceName   = "sharedpasswords.bridge.v1.CredentialBackend"
	jsonCodecName = "json"

	methodRequestPasswordAutoFill = "/" + serviceName + "/RequestPasswordAutoFill"
	methodSavePassword            = "/" + serviceName + "/SavePassword"
	methodHasStoredCredentials    = "/" + serviceName + "/HasStoredCredentials"
	methodDeleteCredential        = "/" + serviceName + "/DeleteCredential"
	methodCreatePasskey           = "/" + serviceName + "/CreatePasskey"
	methodAuthenticateWithPasskey = "/" + serviceName + "/AuthenticateWithPasskey"
	methodGetPlatformSupport      = "/" + serviceName + "/GetPlatformSupport"
)

// HandshakeConfig must match between host and helper.
var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SHARED_PASSWORDS_PLUGIN",
	MagicCookieValue: "credentials",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type SaveRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Domain   string `json:"domain,omitempty"`
}

type DomainRequest struct {
	Domain string `json:"domain,omitempty"`
}

type HasResponse struct {
	Found bool `json:"found"`
}

type DeleteRequest struct {
	Username string `json:"username"`
	Domain   string `json:"domain"`
}

// unary builds the method descriptor for one RPC. call adapts the decoded
// request to the backend method.
func unary[Req, Resp any](name, fullMethod string, call func(bridge.Backend, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(bridge.Backend)
			if interceptor == nil {
				return serve(ctx, impl, in, call)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(*Req)
				if !ok {
					return nil, fmt.Errorf("invalid request type %T", req)
				}
				return serve(ctx, impl, typed, call)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func serve[Req, Resp any](ctx context.Context, impl bridge.Backend, in *Req, call func(bridge.Backend, context.Context, *Req) (*Resp, error)) (any, error) {
	out, err := call(impl, ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	if out == nil {
		out = new(Resp)
	}
	return out, nil
}

// RegisterBackendServer exposes impl on server.
func RegisterBackendServer(server grpc.ServiceRegistrar, impl bridge.Backend) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*bridge.Backend)(nil),
		Methods: []grpc.MethodDesc{
			unary("RequestPasswordAutoFill", methodRequestPasswordAutoFill,
				func(b bridge.Backend, ctx context.Context, _ *Empty) (*bridge.RawCredential, error) {
					return b.RequestPasswordAutoFill(ctx)
				}),
			unary("SavePassword", methodSavePassword,
				func(b bridge.Backend, ctx context.Context, in *SaveRequest) (*bridge.RawOperationResult, error) {
					return b.SavePassword(ctx, in.Username, in.Password, in.Domain)
				}),
			unary("HasStoredCredentials", methodHasStoredCredentials,
				func(b bridge.Backend, ctx context.Context, in *DomainRequest) (*HasResponse, error) {
					found, err := b.HasStoredCredentials(ctx, in.Domain)
					if err != nil {
						return nil, err
					}
					return &HasResponse{Found: found}, nil
				}),
			unary("DeleteCredential", methodDeleteCredential,
				func(b bridge.Backend, ctx context.Context, in *DeleteRequest) (*bridge.RawOperationResult, error) {
					return b.DeleteCredential(ctx, in.Username, in.Domain)
				}),
			unary("CreatePasskey", methodCreatePasskey,
				func(b bridge.Backend, ctx context.Context, in *bridge.CreatePasskeyRequest) (*bridge.RawPasskeyCredential, error) {
					return b.CreatePasskey(ctx, *in)
				}),
			unary("AuthenticateWithPasskey", methodAuthenticateWithPasskey,
				func(b bridge.Backend, ctx context.Context, in *bridge.AuthenticatePasskeyRequest) (*bridge.RawPasskeyCredential, error) {
					return b.AuthenticateWithPasskey(ctx, *in)
				}),
			unary("GetPlatformSupport", methodGetPlatformSupport,
				func(b bridge.Backend, ctx context.Context, _ *Empty) (*models.PlatformSupport, error) {
					return b.GetPlatformSupport(ctx)
				}),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "sharedpasswords/bridge/v1",
	}, impl)
}

// Client is the host side of the contract.
type Client struct {
	conn grpc.ClientConnInterface
}

var _ bridge.Backend = (*Client)(nil)

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, method, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

func (c *Client) RequestPasswordAutoFill(ctx context.Context) (*bridge.RawCredential, error) {
	return invoke[bridge.RawCredential](ctx, c, methodRequestPasswordAutoFill, &Empty{})
}

func (c *Client) SavePassword(ctx context.Context, username, password, domain string) (*bridge.RawOperationResult, error) {
	return invoke[bridge.RawOperationResult](ctx, c, methodSavePassword, &SaveRequest{Username: username, Password: password, Domain: domain})
}

func (c *Client) HasStoredCredentials(ctx context.Context, domain string) (bool, error) {
	out, err := invoke[HasResponse](ctx, c, methodHasStoredCredentials, &DomainRequest{Domain: domain})
	if err != nil {
		return false, err
	}
	return out.Found, nil
}

func (c *Client) DeleteCredential(ctx context.Context, username, domain string) (*bridge.RawOperationResult, error) {
	return invoke[bridge.RawOperationResult](ctx, c, methodDeleteCredential, &DeleteRequest{Username: username, Domain: domain})
}

func (c *Client) CreatePasskey(ctx context.Context, req bridge.CreatePasskeyRequest) (*bridge.RawPasskeyCredential, error) {
	return invoke[bridge.RawPasskeyCredential](ctx, c, methodCreatePasskey, &req)
}

func (c *Client) AuthenticateWithPasskey(ctx context.Context, req bridge.AuthenticatePasskeyRequest) (*bridge.RawPasskeyCredential, error) {
	return invoke[bridge.RawPasskeyCredential](ctx, c, methodAuthenticateWithPasskey, &req)
}

func (c *Client) GetPlatformSupport(ctx context.Context) (*models.PlatformSupport, error) {
	return invoke[models.PlatformSupport](ctx, c, methodGetPlatformSupport, &Empty{})
}

// GRPCPlugin plugs the contract into go-plugin. Impl is only set on the
// helper side.
type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl bridge.Backend
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterBackendServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewClient(conn), nil
}

func PluginMap(impl bridge.Backend) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
