package defaults

import "time"

const (
	//directories and files
	DefaultApkContentsPath      = "/mnt/apk"                                //mount point of the unzipped payload APK
	DefaultExtraApkManifest     = "/mnt/extra-apk/0/assets/build_manifest.pb" //fs-verity digest manifest of the extra APK
	DefaultEncryptedStoragePath = "/mnt/encryptedstore"                     //encrypted persistent storage, present only if requested
	DefaultSealingCdiPath       = "/dev/vm_sealing_cdi"                     //sealing CDI the instance secrets derive from
	DefaultAttestationCdiPath   = "/dev/vm_attestation_cdi"                 //DICE attestation CDI
	DefaultAttestationChainPath = "/dev/vm_attestation_chain"               //DICE certificate chain

	//vsock endpoints
	DefaultServicePort = 5678 //port the test service listens on
	DefaultReadyPort   = 5000 //host port accepting payload-ready notifications
	DefaultHostCID     = 2    //CID of the hypervisor host

	//status channel
	DefaultTestPropertyPrefix = "debug.microdroid.test." //prefix for per-test outcome properties
	DefaultAppRunProperty     = "debug.microdroid.app.run"
	DefaultBanner             = "Hello Microdroid"

	//property store binaries
	DefaultGetpropBinary = "getprop"
	DefaultSetpropBinary = "setprop"

	//DefaultInstanceSecretSize is the full size of a VM instance secret
	DefaultInstanceSecretSize = 32
	//DefaultManifestWait is how long to wait for the extra-apk mount to show up
	DefaultManifestWait = 3 * time.Second
	//DefaultNotifyTimeout bounds the payload-ready dial to the host
	DefaultNotifyTimeout = 5 * time.Second

	//DefaultEnvPrefix for viper environment bindings
	DefaultEnvPrefix = "mdpayload"
)
