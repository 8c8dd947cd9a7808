package report

import (
	log "github.com/sirupsen/logrus"

	"github.com/microdroid-test/payload/pkg/defaults"
	"github.com/microdroid-test/payload/pkg/props"
)

//Reporter publishes test outcomes on the guest status channel.
//Every outcome lands in a debug.microdroid.test.<name> property as
//either "PASS" or "FAIL: <message>" for the host harness to poll.
type Reporter struct {
	Store props.Store
}

//New returns Reporter publishing to store
func New(store props.Store) *Reporter {
	return &Reporter{Store: store}
}

//Test publishes the outcome of check under name and passes check through.
//The property may get truncated by the store, so failures also go to the log.
func (r *Reporter) Test(name string, check error) error {
	property := defaults.DefaultTestPropertyPrefix + name
	outcome := "PASS"
	if check != nil {
		outcome = "FAIL: " + check.Error()
		log.Errorf("[%s] test failed: %v", name, check)
	}
	if err := r.Store.Set(property, outcome); err != nil {
		log.Errorf("cannot publish %s: %v", property, err)
	}
	return check
}

//AppRun raises the flag property telling the host the payload body executed
func (r *Reporter) AppRun() {
	if err := r.Store.Set(defaults.DefaultAppRunProperty, "true"); err != nil {
		log.Errorf("cannot publish %s: %v", defaults.DefaultAppRunProperty, err)
	}
}
