package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microdroid-test/payload/pkg/defaults"
	"github.com/microdroid-test/payload/pkg/platform"
	"github.com/microdroid-test/payload/pkg/props"
	"github.com/microdroid-test/payload/pkg/testservice"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the guest test payload",
	Long: `Run the guest test payload: print the banner, verify the extra-apk
build manifest, raise the run flag property and serve the test service
until terminated.`,
	Run: func(cmd *cobra.Command, args []string) {
		guest := platform.NewMicrodroid()
		guest.SealingCdiPath = viper.GetString("sealing-cdi-path")
		guest.AttestationCdiPath = viper.GetString("attestation-cdi-path")
		guest.AttestationChainPath = viper.GetString("attestation-chain-path")
		guest.ApkPath = viper.GetString("apk-path")
		guest.StoragePath = viper.GetString("storage-path")

		tcpAddress := viper.GetString("listen-tcp")
		switch {
		case !viper.GetBool("notify"):
			//Notify stays nil, NotifyPayloadReady degrades to a log line
		case viper.GetString("notify-tcp") != "":
			guest.Notify = platform.TCPNotifier(viper.GetString("notify-tcp"), defaults.DefaultNotifyTimeout)
		default:
			guest.Notify = platform.VsockNotifier(defaults.DefaultHostCID,
				uint32(viper.GetUint("notify-port")), defaults.DefaultNotifyTimeout)
		}

		listener, err := testservice.Listen(tcpAddress, uint32(viper.GetUint("service-port")))
		if err != nil {
			log.Fatalf("starting service failed: %v", err)
		}

		payload := &testservice.Payload{
			Banner:       defaults.DefaultBanner,
			ManifestPath: viper.GetString("manifest"),
			ManifestWait: viper.GetDuration("manifest-wait"),
			Props:        props.NewDefault(),
			Platform:     guest,
			Listener:     listener,
		}
		if err := payload.Run(); err != nil {
			log.Fatalf("test service failed: %v", err)
		}
	},
}

func runInit() {
	runCmd.Flags().Uint("service-port", defaults.DefaultServicePort, "vsock port of the test service")
	runCmd.Flags().String("listen-tcp", "", "serve on tcp host:port instead of vsock")
	runCmd.Flags().String("manifest", defaults.DefaultExtraApkManifest, "extra-apk build manifest to verify")
	runCmd.Flags().Duration("manifest-wait", defaults.DefaultManifestWait, "how long to wait for the manifest to appear")
	runCmd.Flags().Bool("notify", true, "notify the host supervisor once the service is up")
	runCmd.Flags().Uint("notify-port", defaults.DefaultReadyPort, "host vsock port for the ready notification")
	runCmd.Flags().String("notify-tcp", "", "send the ready notification over tcp host:port")
	runCmd.Flags().String("sealing-cdi-path", defaults.DefaultSealingCdiPath, "sealing CDI the instance secrets derive from")
	runCmd.Flags().String("attestation-cdi-path", defaults.DefaultAttestationCdiPath, "DICE attestation CDI blob")
	runCmd.Flags().String("attestation-chain-path", defaults.DefaultAttestationChainPath, "DICE certificate chain blob")
	runCmd.Flags().String("apk-path", defaults.DefaultApkContentsPath, "mount point of the payload APK contents")
	runCmd.Flags().String("storage-path", defaults.DefaultEncryptedStoragePath, "mount point of the encrypted storage")
	_ = viper.BindPFlags(runCmd.Flags())
}
