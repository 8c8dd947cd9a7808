package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microdroid-test/payload/pkg/client"
	"github.com/microdroid-test/payload/pkg/defaults"
)

var clientCmd = &cobra.Command{
	Use:   "client <add|prop|secret|cdi|chain|apk-path|storage-path> [args]",
	Short: "call the payload test service from the host side",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conn, err := dialPayload()
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()
		if err := runOperation(conn, args); err != nil {
			log.Fatal(err)
		}
	},
}

func dialPayload() (*client.Client, error) {
	if address := viper.GetString("client-tcp"); address != "" {
		return client.DialTCP(address, defaults.DefaultNotifyTimeout)
	}
	return client.DialVsock(uint32(viper.GetUint("guest-cid")),
		uint32(viper.GetUint("service-port")), defaults.DefaultNotifyTimeout)
}

func runOperation(conn *client.Client, args []string) error {
	switch args[0] {
	case "add":
		if len(args) != 3 {
			return fmt.Errorf("add wants two integers")
		}
		a, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil {
			return err
		}
		b, err := strconv.ParseInt(args[2], 10, 32)
		if err != nil {
			return err
		}
		sum, err := conn.AddInteger(int32(a), int32(b))
		if err != nil {
			return err
		}
		fmt.Println(sum)
	case "prop":
		if len(args) != 2 {
			return fmt.Errorf("prop wants a property name")
		}
		value, err := conn.ReadProperty(args[1])
		if err != nil {
			return err
		}
		fmt.Println(value)
	case "secret":
		secret, err := conn.InstanceSecret()
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(secret))
	case "cdi":
		cdi, err := conn.AttestationCdi()
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(cdi))
	case "chain":
		chain, err := conn.AttestationChain()
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(chain))
	case "apk-path":
		path, err := conn.ApkContentsPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
	case "storage-path":
		path, err := conn.EncryptedStoragePath()
		if err != nil {
			return err
		}
		fmt.Println(path)
	default:
		return fmt.Errorf("unknown operation %s", args[0])
	}
	return nil
}

func clientInit() {
	clientCmd.Flags().String("client-tcp", "", "dial the payload over tcp host:port instead of vsock")
	clientCmd.Flags().Uint("guest-cid", 0, "CID of the guest running the payload")
	_ = viper.BindPFlag("client-tcp", clientCmd.Flags().Lookup("client-tcp"))
	_ = viper.BindPFlag("guest-cid", clientCmd.Flags().Lookup("guest-cid"))
}
