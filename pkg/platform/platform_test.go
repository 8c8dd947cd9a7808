package platform_test

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/microdroid-test/payload/pkg/api"
	"github.com/microdroid-test/payload/pkg/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSealingCdi(t *testing.T) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "sealing_cdi")
	require.NoError(t, os.WriteFile(filePath, []byte("sealing-cdi-material-for-tests"), 0600))
	return filePath
}

func TestInstanceSecretStable(t *testing.T) {
	t.Parallel()

	guest := &platform.Microdroid{SealingCdiPath: writeSealingCdi(t)}
	identifier := []byte{1, 2, 3, 4}

	first, err := guest.InstanceSecret(identifier, 32)
	assert.NoError(t, err)
	assert.Len(t, first, 32)

	again, err := guest.InstanceSecret(identifier, 32)
	assert.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := guest.InstanceSecret([]byte{4, 3, 2, 1}, 32)
	assert.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestInstanceSecretPartial(t *testing.T) {
	t.Parallel()

	guest := &platform.Microdroid{SealingCdiPath: writeSealingCdi(t)}
	identifier := []byte{1, 2, 3, 4}

	full, err := guest.InstanceSecret(identifier, 32)
	assert.NoError(t, err)
	short, err := guest.InstanceSecret(identifier, 16)
	assert.NoError(t, err)
	assert.Equal(t, full[:16], short)

	_, err = guest.InstanceSecret(identifier, 0)
	assert.Error(t, err)
	_, err = guest.InstanceSecret(identifier, 33)
	assert.Error(t, err)
}

func TestInstanceSecretNoSealingCdi(t *testing.T) {
	t.Parallel()

	guest := &platform.Microdroid{SealingCdiPath: filepath.Join(t.TempDir(), "missing")}
	_, err := guest.InstanceSecret([]byte{1}, 32)
	assert.Error(t, err)
}

func TestApkContentsPath(t *testing.T) {
	t.Parallel()

	apkPath := t.TempDir()
	guest := &platform.Microdroid{ApkPath: apkPath}
	assert.Equal(t, apkPath, guest.ApkContentsPath())

	guest = &platform.Microdroid{ApkPath: filepath.Join(apkPath, "missing")}
	assert.Empty(t, guest.ApkContentsPath())
}

func TestEncryptedStoragePath(t *testing.T) {
	t.Parallel()

	//root is always a mountpoint
	guest := &platform.Microdroid{StoragePath: "/"}
	assert.Equal(t, "/", guest.EncryptedStoragePath())

	//plain directory on the same filesystem as its parent is not
	guest = &platform.Microdroid{StoragePath: t.TempDir()}
	assert.Empty(t, guest.EncryptedStoragePath())

	guest = &platform.Microdroid{StoragePath: filepath.Join(t.TempDir(), "missing")}
	assert.Empty(t, guest.EncryptedStoragePath())
}

func TestNotifyPayloadReadyOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	guest := &platform.Microdroid{Notify: func() error {
		calls++
		return nil
	}}
	guest.NotifyPayloadReady()
	guest.NotifyPayloadReady()
	assert.Equal(t, 1, calls)
}

func TestTCPNotifier(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	received := make(chan api.Ready, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, err := bufio.NewReader(conn).ReadBytes('\n')
		if err != nil {
			return
		}
		var ready api.Ready
		if json.Unmarshal(line, &ready) == nil {
			received <- ready
		}
	}()

	notify := platform.TCPNotifier(listener.Addr().String(), time.Second)
	require.NoError(t, notify())

	select {
	case ready := <-received:
		assert.Equal(t, uint(api.ChannelReady), ready.Channel)
		assert.NotEmpty(t, ready.UUID)
	case <-time.After(5 * time.Second):
		t.Fatal("host never received the ready frame")
	}
}
