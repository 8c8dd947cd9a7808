package testservice

import (
	"fmt"

	"github.com/microdroid-test/payload/pkg/defaults"
	"github.com/microdroid-test/payload/pkg/platform"
	"github.com/microdroid-test/payload/pkg/props"
)

//secretIdentifier is the fixed identifier whose instance secret the
//service exposes to the host harness
var secretIdentifier = []byte{1, 2, 3, 4}

//Service answers the fixed set of operations the host test harness
//drives against the payload. All operations only read process-wide
//state, so concurrent calls need no coordination.
type Service struct {
	Props    props.Store
	Platform platform.Platform
}

//AddInteger sums two 32-bit integers, wrapping on overflow
func (s *Service) AddInteger(a, b int32) int32 {
	return a + b
}

//ReadProperty returns the value of a guest property, failing on
//properties which are unset or empty
func (s *Service) ReadProperty(name string) (string, error) {
	value, err := s.Props.Get(name)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("cannot find property %s", name)
	}
	return value, nil
}

//InstanceSecret exposes the full instance secret of the fixed identifier
func (s *Service) InstanceSecret() ([]byte, error) {
	return s.Platform.InstanceSecret(secretIdentifier, defaults.DefaultInstanceSecretSize)
}

//AttestationCdi exposes the DICE attestation CDI
func (s *Service) AttestationCdi() ([]byte, error) {
	return s.Platform.DiceAttestationCdi()
}

//AttestationChain exposes the DICE certificate chain
func (s *Service) AttestationChain() ([]byte, error) {
	return s.Platform.DiceAttestationChain()
}

//ApkContentsPath returns the APK contents mount, failing when the
//platform reports none
func (s *Service) ApkContentsPath() (string, error) {
	path := s.Platform.ApkContentsPath()
	if path == "" {
		return "", fmt.Errorf("failed to get APK contents path")
	}
	return path, nil
}

//EncryptedStoragePath returns the encrypted storage mount, or an
//empty string when storage was not requested for the VM
func (s *Service) EncryptedStoragePath() string {
	return s.Platform.EncryptedStoragePath()
}
