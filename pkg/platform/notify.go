package platform

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/mdlayher/vsock"

	"github.com/microdroid-test/payload/pkg/api"
)

//VsockNotifier returns a payload-ready notifier dialing the host
//supervisor over vsock
func VsockNotifier(cid, port uint32, timeout time.Duration) func() error {
	return func() error {
		conn, err := vsock.Dial(cid, port, nil)
		if err != nil {
			return fmt.Errorf("dial host %d:%d: %w", cid, port, err)
		}
		return sendReady(conn, timeout)
	}
}

//TCPNotifier returns a payload-ready notifier for environments
//without AF_VSOCK
func TCPNotifier(address string, timeout time.Duration) func() error {
	return func() error {
		conn, err := net.DialTimeout("tcp", address, timeout)
		if err != nil {
			return fmt.Errorf("dial host %s: %w", address, err)
		}
		return sendReady(conn, timeout)
	}
}

func sendReady(conn net.Conn, timeout time.Duration) error {
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	ready := api.Ready{
		Base: api.Base{Channel: uint(api.ChannelReady)},
		UUID: uuid.New().String(),
	}
	return json.NewEncoder(conn).Encode(ready)
}
