package platform

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/sys/unix"

	"github.com/microdroid-test/payload/pkg/defaults"
)

//secretInfo labels the hkdf expansion of instance secrets
var secretInfo = []byte("microdroid-payload-instance-secret")

//Platform gives the payload access to the services of the hosting VM.
//All methods read immutable per-instance state, so one value is safely
//shared between concurrent service calls.
type Platform interface {
	//InstanceSecret derives a secret bound to this VM instance;
	//the same identifier always yields the same bytes, size <= 32
	InstanceSecret(identifier []byte, size int) ([]byte, error)
	//DiceAttestationCdi returns the DICE attestation CDI blob
	DiceAttestationCdi() ([]byte, error)
	//DiceAttestationChain returns the DICE certificate chain blob
	DiceAttestationChain() ([]byte, error)
	//ApkContentsPath returns the mount of the payload APK contents,
	//empty if the platform did not provide one
	ApkContentsPath() string
	//EncryptedStoragePath returns the encrypted storage mount,
	//empty if none was requested for the VM
	EncryptedStoragePath() string
	//NotifyPayloadReady signals the host supervisor, at most once
	NotifyPayloadReady()
}

//Microdroid implements Platform on top of the guest filesystem layout
type Microdroid struct {
	SealingCdiPath       string
	AttestationCdiPath   string
	AttestationChainPath string
	ApkPath              string
	StoragePath          string
	//Notify dials the host supervisor; nil disables the notification
	Notify func() error

	sealingOnce sync.Once
	sealing     []byte
	sealingErr  error
	readyOnce   sync.Once
}

//NewMicrodroid returns Microdroid with the standard guest paths
func NewMicrodroid() *Microdroid {
	return &Microdroid{
		SealingCdiPath:       defaults.DefaultSealingCdiPath,
		AttestationCdiPath:   defaults.DefaultAttestationCdiPath,
		AttestationChainPath: defaults.DefaultAttestationChainPath,
		ApkPath:              defaults.DefaultApkContentsPath,
		StoragePath:          defaults.DefaultEncryptedStoragePath,
	}
}

//InstanceSecret derives size bytes from the sealing CDI and identifier
func (m *Microdroid) InstanceSecret(identifier []byte, size int) ([]byte, error) {
	if size <= 0 || size > defaults.DefaultInstanceSecretSize {
		return nil, fmt.Errorf("instance secret size %d out of range", size)
	}
	m.sealingOnce.Do(func() {
		m.sealing, m.sealingErr = os.ReadFile(m.SealingCdiPath)
	})
	if m.sealingErr != nil {
		return nil, fmt.Errorf("no sealing CDI: %w", m.sealingErr)
	}
	secret := make([]byte, size)
	derive := hkdf.New(sha256.New, m.sealing, identifier, secretInfo)
	if _, err := io.ReadFull(derive, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

//DiceAttestationCdi returns the attestation CDI blob
func (m *Microdroid) DiceAttestationCdi() ([]byte, error) {
	return os.ReadFile(m.AttestationCdiPath)
}

//DiceAttestationChain returns the DICE certificate chain blob
func (m *Microdroid) DiceAttestationChain() ([]byte, error) {
	return os.ReadFile(m.AttestationChainPath)
}

//ApkContentsPath returns the APK contents mount if it exists
func (m *Microdroid) ApkContentsPath() string {
	if _, err := os.Stat(m.ApkPath); err != nil {
		return ""
	}
	return m.ApkPath
}

//EncryptedStoragePath returns the encrypted storage mount, empty when
//the directory is absent or is not a mountpoint
func (m *Microdroid) EncryptedStoragePath() string {
	if !isMountpoint(m.StoragePath) {
		return ""
	}
	return m.StoragePath
}

//NotifyPayloadReady signals the host supervisor; repeated calls no-op
func (m *Microdroid) NotifyPayloadReady() {
	m.readyOnce.Do(func() {
		if m.Notify == nil {
			log.Debug("payload-ready notification disabled")
			return
		}
		if err := m.Notify(); err != nil {
			log.Errorf("cannot notify host about payload readiness: %v", err)
			return
		}
		log.Info("notified host: payload ready")
	})
}

//isMountpoint reports whether dir sits on a different device than its
//parent, which is how the encrypted storage image shows up when attached
func isMountpoint(dir string) bool {
	var st, parent unix.Stat_t
	if err := unix.Stat(dir, &st); err != nil {
		return false
	}
	if err := unix.Stat(filepath.Dir(dir), &parent); err != nil {
		return false
	}
	return st.Dev != parent.Dev || st.Ino == parent.Ino
}
