package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return decodeError(c.client.Call(serviceName+"."+method, req, resp))
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start begins a recording, optionally mixing in the microphone.
func (c *Client) Start(microphone bool) (*SessionResponse, error) {
	return c.session("Start", SessionStartRequest{Microphone: microphone})
}

// Pause suspends the active recording.
func (c *Client) Pause() (*SessionResponse, error) {
	return c.session("Pause", SessionRequest{})
}

// Resume continues a paused recording.
func (c *Client) Resume() (*SessionResponse, error) {
	return c.session("Resume", SessionRequest{})
}

// Stop ends the recording and waits for the finalized result.
func (c *Client) Stop() (*SessionResponse, error) {
	return c.session("Stop", SessionRequest{})
}

// Restart discards the current session and returns to idle.
func (c *Client) Restart() (*SessionResponse, error) {
	return c.session("Restart", SessionRequest{})
}

// Convert transcodes the stopped recording to MP4.
func (c *Client) Convert() (*SessionResponse, error) {
	return c.session("Convert", SessionRequest{})
}

func (c *Client) session(method string, req any) (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.call(method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Save writes the stopped session's recording to disk.
func (c *Client) Save(req SaveRequest) (*SaveResponse, error) {
	var resp SaveResponse
	if err := c.call("Save", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns saved recordings, newest first. A zero limit returns all.
func (c *Client) List(limit int) (*ListResponse, error) {
	var resp ListResponse
	if err := c.call("List", ListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove drops a saved recording, deleting its file unless keepFile is set.
func (c *Client) Remove(id string, keepFile bool) (*RemoveResponse, error) {
	var resp RemoveResponse
	if err := c.call("Remove", RemoveRequest{ID: id, KeepFile: keepFile}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon to stop and exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.call("Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
