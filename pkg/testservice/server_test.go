package testservice_test

import (
	"encoding/json"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/microdroid-test/payload/pkg/api"
	"github.com/microdroid-test/payload/pkg/client"
	"github.com/microdroid-test/payload/pkg/props"
	"github.com/microdroid-test/payload/pkg/testservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//fakePlatform serves canned platform state
type fakePlatform struct {
	secretSeed  byte
	cdi         []byte
	chain       []byte
	apkPath     string
	storagePath string
	readyCalls  int32
}

func (f *fakePlatform) InstanceSecret(identifier []byte, size int) ([]byte, error) {
	secret := make([]byte, size)
	for i := range secret {
		secret[i] = f.secretSeed
	}
	return secret, nil
}

func (f *fakePlatform) DiceAttestationCdi() ([]byte, error)   { return f.cdi, nil }
func (f *fakePlatform) DiceAttestationChain() ([]byte, error) { return f.chain, nil }
func (f *fakePlatform) ApkContentsPath() string               { return f.apkPath }
func (f *fakePlatform) EncryptedStoragePath() string          { return f.storagePath }
func (f *fakePlatform) NotifyPayloadReady()                   { atomic.AddInt32(&f.readyCalls, 1) }

func startServer(t *testing.T, store props.Store, guest *fakePlatform) *client.Client {
	t.Helper()
	listener, err := testservice.Listen("127.0.0.1:0", 0)
	require.NoError(t, err)

	server := &testservice.Server{
		Service:  &testservice.Service{Props: store, Platform: guest},
		Listener: listener,
		OnReady:  guest.NotifyPayloadReady,
	}
	go func() { _ = server.Serve() }()
	t.Cleanup(func() { _ = listener.Close() })

	conn, err := client.DialTCP(listener.Addr().String(), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		secretSeed:  0x5a,
		cdi:         []byte{1, 2, 3},
		chain:       []byte{4, 5, 6, 7},
		apkPath:     "/mnt/apk",
		storagePath: "",
	}
}

func TestAddInteger(t *testing.T) {
	t.Parallel()

	conn := startServer(t, props.NewMemStore(), newFakePlatform())
	testMatrix := map[string]struct {
		a, b, sum int32
	}{
		"simple":     {a: 2, b: 3, sum: 5},
		"negative":   {a: -10, b: 4, sum: -6},
		"wraparound": {a: math.MaxInt32, b: 1, sum: math.MinInt32},
	}
	for name, test := range testMatrix {
		t.Run(name, func(t *testing.T) {
			sum, err := conn.AddInteger(test.a, test.b)
			assert.NoError(t, err)
			assert.Equal(t, test.sum, sum)
		})
	}
}

func TestReadProperty(t *testing.T) {
	t.Parallel()

	store := props.NewMemStore()
	require.NoError(t, store.Set("debug.microdroid.app.run", "true"))
	conn := startServer(t, store, newFakePlatform())

	value, err := conn.ReadProperty("debug.microdroid.app.run")
	assert.NoError(t, err)
	assert.Equal(t, "true", value)

	_, err = conn.ReadProperty("debug.microdroid.never.set")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "debug.microdroid.never.set")
}

func TestInstanceSecret(t *testing.T) {
	t.Parallel()

	conn := startServer(t, props.NewMemStore(), newFakePlatform())
	secret, err := conn.InstanceSecret()
	assert.NoError(t, err)
	assert.Len(t, secret, 32)
}

func TestAttestationBlobs(t *testing.T) {
	t.Parallel()

	guest := newFakePlatform()
	conn := startServer(t, props.NewMemStore(), guest)

	cdi, err := conn.AttestationCdi()
	assert.NoError(t, err)
	assert.Equal(t, guest.cdi, cdi)

	chain, err := conn.AttestationChain()
	assert.NoError(t, err)
	assert.Equal(t, guest.chain, chain)
}

func TestApkContentsPath(t *testing.T) {
	t.Parallel()

	conn := startServer(t, props.NewMemStore(), newFakePlatform())
	path, err := conn.ApkContentsPath()
	assert.NoError(t, err)
	assert.Equal(t, "/mnt/apk", path)

	guest := newFakePlatform()
	guest.apkPath = ""
	conn = startServer(t, props.NewMemStore(), guest)
	_, err = conn.ApkContentsPath()
	assert.Error(t, err)
}

func TestEncryptedStoragePath(t *testing.T) {
	t.Parallel()

	//unavailable storage is an empty path, not an error
	conn := startServer(t, props.NewMemStore(), newFakePlatform())
	path, err := conn.EncryptedStoragePath()
	assert.NoError(t, err)
	assert.Empty(t, path)

	guest := newFakePlatform()
	guest.storagePath = "/mnt/encryptedstore"
	conn = startServer(t, props.NewMemStore(), guest)
	path, err = conn.EncryptedStoragePath()
	assert.NoError(t, err)
	assert.Equal(t, "/mnt/encryptedstore", path)
}

func TestOnReadyFires(t *testing.T) {
	t.Parallel()

	guest := newFakePlatform()
	conn := startServer(t, props.NewMemStore(), guest)
	//a served request implies the accept loop started
	_, err := conn.AddInteger(1, 1)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&guest.readyCalls))
}

func TestUnknownFrames(t *testing.T) {
	t.Parallel()

	listener, err := testservice.Listen("127.0.0.1:0", 0)
	require.NoError(t, err)
	server := &testservice.Server{
		Service:  &testservice.Service{Props: props.NewMemStore(), Platform: newFakePlatform()},
		Listener: listener,
	}
	go func() { _ = server.Serve() }()
	defer listener.Close()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	testMatrix := map[string]api.Request{
		"unknown request": {Base: api.Base{Channel: uint(api.ChannelTest)}, Request: 99},
		"wrong channel":   {Base: api.Base{Channel: 7}, Request: api.RequestAddInteger},
	}
	for name, request := range testMatrix {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, encoder.Encode(request))
			var response api.Error
			require.NoError(t, decoder.Decode(&response))
			assert.EqualValues(t, api.ChannelError, response.Channel)
			assert.NotEmpty(t, response.Error)
		})
	}
}

func TestConcurrentConnections(t *testing.T) {
	t.Parallel()

	listener, err := testservice.Listen("127.0.0.1:0", 0)
	require.NoError(t, err)
	server := &testservice.Server{
		Service:  &testservice.Service{Props: props.NewMemStore(), Platform: newFakePlatform()},
		Listener: listener,
	}
	go func() { _ = server.Serve() }()
	defer listener.Close()

	var group sync.WaitGroup
	for i := int32(0); i < 8; i++ {
		group.Add(1)
		go func(i int32) {
			defer group.Done()
			conn, err := client.DialTCP(listener.Addr().String(), 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()
			for j := int32(0); j < 10; j++ {
				sum, err := conn.AddInteger(i, j)
				assert.NoError(t, err)
				assert.Equal(t, i+j, sum)
			}
		}(i)
	}
	group.Wait()
}
