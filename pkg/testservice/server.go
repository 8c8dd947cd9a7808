package testservice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mdlayher/vsock"
	log "github.com/sirupsen/logrus"

	"github.com/microdroid-test/payload/pkg/api"
)

//Server accepts connections on a stream listener and answers test
//service frames, one JSON object per line, until the listener closes.
//Each connection is served on its own goroutine.
type Server struct {
	Service  *Service
	Listener net.Listener
	//OnReady runs once the server accepts connections
	OnReady func()
}

//Listen opens the service listener: vsock on port, or tcp when
//tcpAddress is set (hosts without AF_VSOCK)
func Listen(tcpAddress string, port uint32) (net.Listener, error) {
	if tcpAddress != "" {
		return net.Listen("tcp", tcpAddress)
	}
	return vsock.Listen(port, nil)
}

//Serve runs the accept loop; it returns nil when the listener is
//closed and the error otherwise
func (s *Server) Serve() error {
	if s.OnReady != nil {
		s.OnReady()
	}
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	connID := uuid.New().String()
	log.Debugf("connection %s opened from %s", connID, conn.RemoteAddr())
	defer log.Debugf("connection %s closed", connID)

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)
	for {
		var request api.Request
		if err := decoder.Decode(&request); err != nil {
			if err != io.EOF {
				log.Debugf("connection %s: malformed frame: %v", connID, err)
			}
			return
		}
		if err := encoder.Encode(s.handle(&request)); err != nil {
			log.Debugf("connection %s: cannot respond: %v", connID, err)
			return
		}
	}
}

//handle dispatches one request frame to the service
func (s *Server) handle(request *api.Request) interface{} {
	if api.Channel(request.Channel) != api.ChannelTest {
		return errorFrame(request.ID, "unsupported channel %d", request.Channel)
	}
	switch request.Request {
	case api.RequestAddInteger:
		sum := s.Service.AddInteger(request.A, request.B)
		return api.SumResponse{Base: testFrame(), ID: request.ID, Sum: sum}
	case api.RequestReadProperty:
		value, err := s.Service.ReadProperty(request.Prop)
		if err != nil {
			return errorFrame(request.ID, "%v", err)
		}
		return api.PropResponse{Base: testFrame(), ID: request.ID, Value: value}
	case api.RequestInstanceSecret:
		secret, err := s.Service.InstanceSecret()
		if err != nil {
			return errorFrame(request.ID, "%v", err)
		}
		return api.BlobResponse{Base: testFrame(), ID: request.ID, Data: secret}
	case api.RequestAttestationCdi:
		cdi, err := s.Service.AttestationCdi()
		if err != nil {
			return errorFrame(request.ID, "%v", err)
		}
		log.Debugf("attestation CDI: %s", humanize.Bytes(uint64(len(cdi))))
		return api.BlobResponse{Base: testFrame(), ID: request.ID, Data: cdi}
	case api.RequestAttestationChain:
		chain, err := s.Service.AttestationChain()
		if err != nil {
			return errorFrame(request.ID, "%v", err)
		}
		log.Debugf("attestation chain: %s", humanize.Bytes(uint64(len(chain))))
		return api.BlobResponse{Base: testFrame(), ID: request.ID, Data: chain}
	case api.RequestApkContentsPath:
		path, err := s.Service.ApkContentsPath()
		if err != nil {
			return errorFrame(request.ID, "%v", err)
		}
		return api.PathResponse{Base: testFrame(), ID: request.ID, Path: path}
	case api.RequestEncryptedStoragePath:
		return api.PathResponse{Base: testFrame(), ID: request.ID, Path: s.Service.EncryptedStoragePath()}
	}
	return errorFrame(request.ID, "unknown request %d", request.Request)
}

func testFrame() api.Base {
	return api.Base{Channel: uint(api.ChannelTest)}
}

func errorFrame(id, format string, args ...interface{}) api.Error {
	return api.Error{
		Base:  api.Base{Channel: uint(api.ChannelError)},
		ID:    id,
		Error: fmt.Sprintf(format, args...),
	}
}
