// Command corebusd is a minimal reference embedding daemon: it loads
// config, opens the IPC registry, starts a corebus.Server with a
// couple of demo methods, and serves until signalled. Real daemons
// (deployment, health, MQTT bridge, config store) are built the same
// way, registering their own methods instead of echo/events.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/aws-greengrass-lite/corebus/cmn/config"
	"github.com/aws-greengrass-lite/corebus/cmn/cos"
	"github.com/aws-greengrass-lite/corebus/cmn/nlog"
	"github.com/aws-greengrass-lite/corebus/corebus"
	"github.com/aws-greengrass-lite/corebus/ipc/policy"
	"github.com/aws-greengrass-lite/corebus/object"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "corebusd configuration file")
	nlog.InitFlags(flag.CommandLine)
}

func main() {
	installSignalHandler()
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		exitf("loading config %q: %v", configPath, errors.WithStack(err))
	}
	config.Rom.Set(cfg)
	if cfg.SocketPath == "" {
		exitf("missing socket_path in configuration")
	}

	dbPath := cfg.PolicyDBPath
	if dbPath == "" {
		dbPath = ":memory:"
	}
	store, err := policy.Open(dbPath)
	if err != nil {
		exitf("opening policy store: %v", errors.Wrap(err, "corebusd"))
	}
	defer store.Close()

	ctx, err := corebus.NewContext(cfg, store, nil)
	if err != nil {
		exitf("building corebus context: %v", errors.Wrap(err, "corebusd"))
	}

	srv, err := corebus.NewServer(ctx, []corebus.MethodSpec{
		{Name: "echo", Handler: echoHandler},
		{Name: "events", Handler: eventsHandler},
	})
	if err != nil {
		exitf("building server: %v", err)
	}

	nlog.Infof("corebusd: listening on %s", cfg.SocketPath)
	if err := srv.Listen(cfg.SocketPath); err != nil {
		nlog.Flush()
		exitf("server exited: %v", errors.Wrap(err, "corebusd"))
	}
	nlog.Flush()
}

// echoHandler implements the Echo scenario from SPEC_FULL §8: the
// response payload equals the request payload, verbatim.
func echoHandler(req *corebus.Request) error {
	return req.Respond(req.Params)
}

// eventsHandler implements the Stream scenario from SPEC_FULL §8: it
// emits three stream-event frames then a clean stream-close.
func eventsHandler(req *corebus.Request) error {
	stream, err := req.SubAccept()
	if err != nil {
		return err
	}
	go func() {
		for i := int64(1); i <= 3; i++ {
			payload := object.Encode(nil, object.I64(i))
			if err := stream.Send(payload); err != nil {
				nlog.Warningf("corebusd: events: send failed: %v", err)
				return
			}
		}
		stream.Close(nil)
	}()
	return nil
}

func installSignalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		nlog.Flush()
		os.Exit(0)
	}()
}

func exitf(format string, args ...any) {
	cos.Exitf(format, args...)
}
