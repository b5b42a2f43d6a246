// Copyright 2017 Microsoft. All rights reserved.
// MIT License

// Command rustycan4docker wires the network manager to its real
// collaborators (the exec-backed kernel, the JSON persistence file) and
// starts it. The HTTP/IPC transport that turns this into a Docker network
// plugin is out of scope for this repository; this entrypoint exists to
// exercise the wiring that a transport layer would sit in front of.
package main

import (
	"flag"
	"os"

	"github.com/Nomadic-Drones/rustycan4docker/kernel"
	"github.com/Nomadic-Drones/rustycan4docker/log"
	"github.com/Nomadic-Drones/rustycan4docker/network"
	"github.com/Nomadic-Drones/rustycan4docker/store"
)

const version = "v0.1"

func main() {
	logLevel := flag.Int("log-level", log.LevelInfo, "log verbosity (0=alert .. 4=debug)")
	storePath := flag.String("store", store.DefaultPath, "path to the network persistence file")
	flag.Parse()

	log.SetLevel(*logLevel)
	log.Printf("[main] rustycan4docker %v starting", version)

	persist, err := store.NewJSONFileStore(*storePath)
	if err != nil {
		log.Errorf("[main] failed to open persistence file %v: %v", *storePath, err)
		os.Exit(1)
	}

	kern := kernel.NewExecInterface()

	m, err := network.NewManager(kern, persist, nil)
	if err != nil {
		log.Errorf("[main] failed to construct network manager: %v", err)
		os.Exit(1)
	}

	m.NetworkLoad()
	log.Printf("[main] network manager ready")
}
