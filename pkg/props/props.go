package props

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/microdroid-test/payload/pkg/defaults"
	"github.com/microdroid-test/payload/pkg/utils"
)

//Store is the process-wide name/value property store of the guest.
//Get returns an empty string for properties which were never set.
type Store interface {
	Get(name string) (string, error)
	Set(name, value string) error
}

//ExecStore talks to the property service through the getprop/setprop binaries
type ExecStore struct {
	Getprop string
	Setprop string
}

//NewExecStore returns ExecStore with default binaries
func NewExecStore() *ExecStore {
	return &ExecStore{
		Getprop: defaults.DefaultGetpropBinary,
		Setprop: defaults.DefaultSetpropBinary,
	}
}

//Get obtains the value of property name
func (s *ExecStore) Get(name string) (string, error) {
	stdout, stderr, err := utils.RunCommandAndWait(s.Getprop, name)
	if err != nil {
		return "", fmt.Errorf("getprop %s: %v: %s", name, err, strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(stdout), nil
}

//Set publishes value under property name
func (s *ExecStore) Set(name, value string) error {
	_, stderr, err := utils.RunCommandAndWait(s.Setprop, name, value)
	if err != nil {
		return fmt.Errorf("setprop %s: %v: %s", name, err, strings.TrimSpace(stderr))
	}
	return nil
}

//MemStore keeps properties in memory, for tests and for hosts
//without a property service
type MemStore struct {
	sync.RWMutex
	values map[string]string
}

//NewMemStore returns empty MemStore
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

//Get obtains the value of property name
func (s *MemStore) Get(name string) (string, error) {
	s.RLock()
	defer s.RUnlock()
	return s.values[name], nil
}

//Set publishes value under property name
func (s *MemStore) Set(name, value string) error {
	s.Lock()
	defer s.Unlock()
	s.values[name] = value
	return nil
}

//NewDefault returns ExecStore if the property binaries are available
//and falls back to MemStore otherwise
func NewDefault() Store {
	if _, err := exec.LookPath(defaults.DefaultSetpropBinary); err != nil {
		log.Warnf("no %s binary, property reports stay in-process", defaults.DefaultSetpropBinary)
		return NewMemStore()
	}
	return NewExecStore()
}
