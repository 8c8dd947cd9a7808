package client

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mdlayher/vsock"

	"github.com/microdroid-test/payload/pkg/api"
)

//Client drives the payload test service from the host side over a
//single connection, one request in flight at a time.
type Client struct {
	sync.Mutex
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	timeout time.Duration
}

//New wraps an established connection
func New(conn net.Conn, timeout time.Duration) *Client {
	return &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		decoder: json.NewDecoder(conn),
		timeout: timeout,
	}
}

//DialVsock connects to the payload service inside the guest with cid
func DialVsock(cid, port uint32, timeout time.Duration) (*Client, error) {
	conn, err := vsock.Dial(cid, port, nil)
	if err != nil {
		return nil, fmt.Errorf("dial guest %d:%d: %w", cid, port, err)
	}
	return New(conn, timeout), nil
}

//DialTCP connects to a payload running in tcp listener mode
func DialTCP(address string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial payload %s: %w", address, err)
	}
	return New(conn, timeout), nil
}

//Close closes the underlying connection
func (c *Client) Close() error {
	return c.conn.Close()
}

//call sends one request frame and decodes the matching response into out
func (c *Client) call(request api.Request, out interface{}) error {
	c.Lock()
	defer c.Unlock()
	request.Channel = uint(api.ChannelTest)
	request.ID = uuid.New().String()
	if c.timeout != 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return err
		}
	}
	if err := c.encoder.Encode(request); err != nil {
		return fmt.Errorf("send request %d: %w", request.Request, err)
	}
	var raw json.RawMessage
	if err := c.decoder.Decode(&raw); err != nil {
		return fmt.Errorf("receive response %d: %w", request.Request, err)
	}
	var base api.Base
	if err := json.Unmarshal(raw, &base); err != nil {
		return err
	}
	if api.Channel(base.Channel) == api.ChannelError {
		var errFrame api.Error
		if err := json.Unmarshal(raw, &errFrame); err != nil {
			return err
		}
		return fmt.Errorf("service error: %s", errFrame.Error)
	}
	return json.Unmarshal(raw, out)
}

//AddInteger asks the payload to sum two 32-bit integers
func (c *Client) AddInteger(a, b int32) (int32, error) {
	var response api.SumResponse
	err := c.call(api.Request{Request: api.RequestAddInteger, A: a, B: b}, &response)
	return response.Sum, err
}

//ReadProperty reads a guest property through the payload
func (c *Client) ReadProperty(name string) (string, error) {
	var response api.PropResponse
	err := c.call(api.Request{Request: api.RequestReadProperty, Prop: name}, &response)
	return response.Value, err
}

//InstanceSecret fetches the exposed VM instance secret
func (c *Client) InstanceSecret() ([]byte, error) {
	var response api.BlobResponse
	err := c.call(api.Request{Request: api.RequestInstanceSecret}, &response)
	return response.Data, err
}

//AttestationCdi fetches the DICE attestation CDI
func (c *Client) AttestationCdi() ([]byte, error) {
	var response api.BlobResponse
	err := c.call(api.Request{Request: api.RequestAttestationCdi}, &response)
	return response.Data, err
}

//AttestationChain fetches the DICE certificate chain
func (c *Client) AttestationChain() ([]byte, error) {
	var response api.BlobResponse
	err := c.call(api.Request{Request: api.RequestAttestationChain}, &response)
	return response.Data, err
}

//ApkContentsPath fetches the APK contents mount of the guest
func (c *Client) ApkContentsPath() (string, error) {
	var response api.PathResponse
	err := c.call(api.Request{Request: api.RequestApkContentsPath}, &response)
	return response.Path, err
}

//EncryptedStoragePath fetches the encrypted storage mount of the
//guest, empty when storage is unavailable
func (c *Client) EncryptedStoragePath() (string, error) {
	var response api.PathResponse
	err := c.call(api.Request{Request: api.RequestEncryptedStoragePath}, &response)
	return response.Path, err
}
