package ipc

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"time"

	"ffexec/internal/services"
)

// dialTimeout bounds socket connection so CLI commands fail fast when the
// daemon is offline.
const dialTimeout = 2 * time.Second

// remoteSentinels are restored from server error strings.
var remoteSentinels = []error{
	services.ErrAlreadyRunning,
	services.ErrEmptyCommand,
	services.ErrUnsupported,
	services.ErrSpawn,
	services.ErrTimeout,
	services.ErrKilled,
	services.ErrCancelled,
	services.ErrExternalTool,
	services.ErrConfiguration,
	services.ErrNotFound,
}

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	if err := c.client.Call(serviceName+"."+method, req, resp); err != nil {
		return remoteError(err)
	}
	return nil
}

// Execute submits a command. It fails with services.ErrAlreadyRunning when
// another command is in flight.
func (c *Client) Execute(req ExecuteRequest) (*ExecuteResponse, error) {
	var resp ExecuteResponse
	if err := c.call("Execute", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Kill kills the in-flight command.
func (c *Client) Kill() (*KillResponse, error) {
	var resp KillResponse
	if err := c.call("Kill", KillRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitReady blocks until the executor is idle or timeout elapses.
func (c *Client) WaitReady(timeout time.Duration) (*WaitReadyResponse, error) {
	var resp WaitReadyResponse
	req := WaitReadyRequest{TimeoutMillis: timeout.Milliseconds()}
	if err := c.call("WaitReady", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Result fetches one execution without waiting.
func (c *Client) Result(id string) (*ResultResponse, error) {
	var resp ResultResponse
	if err := c.call("Result", ResultRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Await blocks until the execution completes or timeout elapses. A zero
// timeout waits indefinitely. The returned execution is still running when
// the timeout elapsed first.
func (c *Client) Await(id string, timeout time.Duration) (*ResultResponse, error) {
	var resp ResultResponse
	req := ResultRequest{ID: id, Wait: true, TimeoutMillis: timeout.Milliseconds()}
	if err := c.call("Result", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists journaled executions, newest first.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.call("History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version reports the device and library versions.
func (c *Client) Version() (*VersionResponse, error) {
	var resp VersionResponse
	if err := c.call("Version", VersionRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func remoteError(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	message := string(serverErr)
	for _, sentinel := range remoteSentinels {
		if rest, ok := strings.CutPrefix(message, sentinel.Error()); ok && (rest == "" || strings.HasPrefix(rest, ":")) {
			return fmt.Errorf("%w%s", sentinel, rest)
		}
	}
	return errors.New(message)
}
