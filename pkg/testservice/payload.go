package testservice

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/microdroid-test/payload/pkg/manifest"
	"github.com/microdroid-test/payload/pkg/platform"
	"github.com/microdroid-test/payload/pkg/props"
	"github.com/microdroid-test/payload/pkg/report"
	"github.com/microdroid-test/payload/pkg/utils"
)

//Payload runs the startup sequence of the guest test binary:
//banner, extra-apk manifest check, run flag, then the service loop.
type Payload struct {
	Banner       string
	ManifestPath string
	ManifestWait time.Duration
	Props        props.Store
	Platform     platform.Platform
	Listener     net.Listener
	//Out receives the banner, os.Stdout when nil
	Out io.Writer
}

//Run executes the payload until the listener closes. The manifest
//check is reported on the status channel and never aborts startup.
func (p *Payload) Run() error {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "%s\n", p.Banner)

	reporter := report.New(p.Props)
	//extra apks may be missing, not a fatal error
	_ = reporter.Test("extra_apk", p.verifyExtraApk())
	reporter.AppRun()

	server := &Server{
		Service:  &Service{Props: p.Props, Platform: p.Platform},
		Listener: p.Listener,
		OnReady:  p.Platform.NotifyPayloadReady,
	}
	log.Infof("test service listening on %s", p.Listener.Addr())
	return server.Serve()
}

//verifyExtraApk checks that the side-loaded APK carries a parsable
//fs-verity digest manifest
func (p *Payload) verifyExtraApk() error {
	if err := utils.WaitForFile(p.ManifestPath, p.ManifestWait); err != nil {
		return fmt.Errorf("failed to read build_manifest.pb: %w", err)
	}
	digests, err := manifest.Load(p.ManifestPath)
	if err != nil {
		return err
	}
	sum, err := utils.SHA256SUM(p.ManifestPath)
	if err != nil {
		return err
	}
	log.Infof("extra apk manifest: %d digests, sha256 %s", len(digests), sum)
	return nil
}
