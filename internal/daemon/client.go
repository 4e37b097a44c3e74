package daemon

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// serviceName is the gRPC service path prefix mirrored from the SCION
// control-plane daemon's own proto package (daemon.v1.DaemonService),
// matching the method names used by
// _examples/original_source/prototype/daemon.py and daemon_client.py.
const serviceName = "/daemon.v1.DaemonService/"

// Client is a connection to a SCION control-plane daemon. It owns the
// underlying *grpc.ClientConn and must be closed when no longer needed.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon at addr (host:port) using a JSON-coded
// plaintext gRPC channel.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("daemon: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("daemon: close connection: %w", err)
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if err := c.conn.Invoke(ctx, serviceName+method, req, resp); err != nil {
		return fmt.Errorf("daemon: %s: %w", method, err)
	}
	return nil
}

// AS queries the daemon for AS information. isdAs of 0 asks for the
// daemon's own local AS, matching daemon.py's get_local_as_info.
func (c *Client) AS(ctx context.Context, isdAs uint64) (ASInfo, error) {
	resp := &ASResponse{}
	if err := c.invoke(ctx, "AS", &ASRequest{IsdAs: isdAs}, resp); err != nil {
		return ASInfo{}, err
	}
	return ASInfo{IsdAs: resp.IsdAs, Core: resp.Core, MTU: resp.Mtu}, nil
}

// ASResponse is the wire response for the AS RPC.
type ASResponse struct {
	IsdAs uint64 `json:"isd_as"`
	Core  bool   `json:"core"`
	Mtu   uint32 `json:"mtu"`
}

// Paths queries the daemon for paths from source to destination. Mirrors
// daemon_client.py's rpc_paths.
func (c *Client) Paths(ctx context.Context, source, destination uint64, refresh, hidden bool) ([]Path, error) {
	resp := &PathsResponse{}
	req := &PathsRequest{
		SourceIsdAs:      source,
		DestinationIsdAs: destination,
		Refresh:          refresh,
		Hidden:           hidden,
	}
	if err := c.invoke(ctx, "Paths", req, resp); err != nil {
		return nil, err
	}
	return resp.Paths, nil
}

// Interfaces queries the daemon's known border-router interfaces.
// Not used by the data path; present for parity with daemon_client.py.
func (c *Client) Interfaces(ctx context.Context) (map[uint64]Interface, error) {
	resp := &InterfacesResponse{}
	if err := c.invoke(ctx, "Interfaces", &InterfacesRequest{}, resp); err != nil {
		return nil, err
	}
	return resp.Interfaces, nil
}

// Services queries the daemon's known control-service instances.
// Not used by the data path; present for parity with daemon_client.py.
func (c *Client) Services(ctx context.Context) (map[string][]Service, error) {
	resp := &ServicesResponse{}
	if err := c.invoke(ctx, "Services", &ServicesRequest{}, resp); err != nil {
		return nil, err
	}
	return resp.Services, nil
}

// NotifyInterfaceDown reports a down interface to the daemon.
// Not used by the data path; present for parity with daemon_client.py.
func (c *Client) NotifyInterfaceDown(ctx context.Context, isdAs, ifID uint64) error {
	return c.invoke(ctx, "NotifyInterfaceDown", &NotifyInterfaceDownRequest{IsdAs: isdAs, Id: ifID}, &NotifyInterfaceDownResponse{})
}

// DRKeyASHost fetches a level-2 AS-host DRKey. Not used by the data
// path; present for parity with daemon_client.py.
func (c *Client) DRKeyASHost(ctx context.Context, req DRKeyLevel2Request) (DRKeyLevel2Response, error) {
	resp := &DRKeyLevel2Response{}
	if err := c.invoke(ctx, "DRKeyASHost", &req, resp); err != nil {
		return DRKeyLevel2Response{}, err
	}
	return *resp, nil
}

// DRKeyHostAS fetches a level-2 host-AS DRKey. Not used by the data
// path; present for parity with daemon_client.py.
func (c *Client) DRKeyHostAS(ctx context.Context, req DRKeyLevel2Request) (DRKeyLevel2Response, error) {
	resp := &DRKeyLevel2Response{}
	if err := c.invoke(ctx, "DRKeyHostAS", &req, resp); err != nil {
		return DRKeyLevel2Response{}, err
	}
	return *resp, nil
}

// DRKeyHostHost fetches a level-2 host-host DRKey. Not used by the data
// path; present for parity with daemon_client.py.
func (c *Client) DRKeyHostHost(ctx context.Context, req DRKeyLevel2Request) (DRKeyLevel2Response, error) {
	resp := &DRKeyLevel2Response{}
	if err := c.invoke(ctx, "DRKeyHostHost", &req, resp); err != nil {
		return DRKeyLevel2Response{}, err
	}
	return *resp, nil
}
