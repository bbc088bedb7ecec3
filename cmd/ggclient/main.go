// Command ggclient is a sample core-bus client: it performs the
// component auth handshake using the environment variables a spawned
// component receives from its parent daemon, then issues a call or a
// subscribe against a running corebusd.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aws-greengrass-lite/corebus/corebus"
	"github.com/aws-greengrass-lite/corebus/object"
)

const (
	envSocketPath = "AWS_GG_NUCLEUS_DOMAIN_SOCKET_FILEPATH_FOR_COMPONENT"
	envSVCUID     = "SVCUID"
)

var (
	flagSocket    string
	flagMethod    string
	flagSubMethod string
	flagPing      string
)

func main() {
	root := &cobra.Command{
		Use:   "ggclient",
		Short: "sample core-bus client for a corebusd endpoint",
	}
	root.PersistentFlags().StringVar(&flagSocket, "socket", os.Getenv(envSocketPath), "core-bus socket path")

	callCmd := &cobra.Command{
		Use:   "call",
		Short: "issue a blocking call and print the response",
		RunE:  runCall,
	}
	callCmd.Flags().StringVar(&flagMethod, "method", "echo", "method name")
	callCmd.Flags().StringVar(&flagPing, "ping", "hi", `value sent as {"ping": <value>}`)

	subCmd := &cobra.Command{
		Use:   "subscribe",
		Short: "subscribe to a streaming method and print events",
		RunE:  runSubscribe,
	}
	subCmd.Flags().StringVar(&flagSubMethod, "method", "events", "method name")

	root.AddCommand(callCmd, subCmd)
	if err := root.Execute(); err != nil {
		color.Red("ggclient: %v", err)
		os.Exit(1)
	}
}

func connectAndAuth() (*corebus.Client, error) {
	if flagSocket == "" {
		return nil, fmt.Errorf("no socket path: pass --socket or set %s", envSocketPath)
	}
	c, err := corebus.Dial(flagSocket, 0, 0)
	if err != nil {
		return nil, err
	}
	if tokHex := os.Getenv(envSVCUID); tokHex != "" {
		raw, err := hex.DecodeString(tokHex)
		if err != nil || len(raw) != 16 {
			return nil, fmt.Errorf("malformed %s", envSVCUID)
		}
		var tok [16]byte
		copy(tok[:], raw)
		if err := c.AuthBySVCUID(tok); err != nil {
			return nil, fmt.Errorf("auth by svcuid: %w", err)
		}
		return c, nil
	}
	if _, err := c.AuthByName("com.example.ggclient"); err != nil {
		return nil, fmt.Errorf("auth by name: %w", err)
	}
	return c, nil
}

func runCall(_ *cobra.Command, _ []string) error {
	c, err := connectAndAuth()
	if err != nil {
		return err
	}
	defer c.Close()

	params := object.MkMap([]object.MapEntry{
		{Key: object.Buffer("ping"), Val: object.Buf(object.Buffer(flagPing))},
	})
	resp, err := c.Call(flagMethod, params)
	if err != nil {
		return err
	}
	color.Green("response: kind=%s", resp.Kind)
	printObject(resp, 0)
	return nil
}

func runSubscribe(_ *cobra.Command, _ []string) error {
	c, err := connectAndAuth()
	if err != nil {
		return err
	}
	defer c.Close()

	done := make(chan struct{})
	_, err = c.Subscribe(flagSubMethod, object.Null(), &corebus.SubHandler{
		OnEvent: func(o object.Object) {
			color.Cyan("event: ")
			printObject(o, 0)
		},
		OnClose: func(cause error) {
			if cause != nil {
				color.Red("stream closed: %v", cause)
			} else {
				color.Yellow("stream closed")
			}
			close(done)
		},
	})
	if err != nil {
		return err
	}
	<-done
	return nil
}

func printObject(o object.Object, indent int) {
	pad := ""
	for i := 0; i < indent; i++ {
		pad += "  "
	}
	switch o.Kind {
	case object.KindNull:
		fmt.Println(pad + "null")
	case object.KindBool:
		fmt.Printf("%s%v\n", pad, o.B)
	case object.KindI64:
		fmt.Printf("%s%d\n", pad, o.I)
	case object.KindF64:
		fmt.Printf("%s%f\n", pad, o.F)
	case object.KindBuf:
		fmt.Printf("%s%q\n", pad, string(o.Buf))
	case object.KindList:
		for _, e := range o.List {
			printObject(e, indent+1)
		}
	case object.KindMap:
		for _, e := range o.Map {
			fmt.Printf("%s%s:\n", pad, string(e.Key))
			printObject(e.Val, indent+1)
		}
	}
}
