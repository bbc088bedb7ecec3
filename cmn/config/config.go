// Package config holds the bus-wide, mostly-static configuration. The
// embedding daemon loads a Config and passes it to corebus.NewContext;
// it also copies the hot-path fields into the read-mostly `Rom` holder
// (the pattern the teacher uses for its own cluster config: assigned
// once at startup, never mutated concurrently with reads).
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Config is the full on-disk shape of a daemon's config file.
type Config struct {
	SocketPath           string        `json:"socket_path"`
	MaxMsgLen            int           `json:"max_msg_len"`
	SendTimeout          time.Duration `json:"send_timeout"`
	MaxGenericComponents int           `json:"max_generic_components"`
	EntropySource        string        `json:"entropy_source"`
	PolicyDBPath         string        `json:"policy_db_path"`
	LogVerbosity         int           `json:"log_verbosity"`
}

// Defaults mirror spec.md's stated defaults exactly.
func Defaults() Config {
	return Config{
		MaxMsgLen:            10_000,
		SendTimeout:          time.Second,
		MaxGenericComponents: 50,
		EntropySource:        "/dev/random",
		PolicyDBPath:         "",
	}
}

// Load reads a JSON config file, applying it on top of Defaults() so a
// file only needs to override what it cares about.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := jsoniter.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// readMostly holds copies of Config's hot-path fields. It has no
// locking, so Set must not run concurrently with its readers.
type readMostly struct {
	maxMsgLen   int
	sendTimeout time.Duration
	verbosity   int
}

var Rom readMostly

func (rom *readMostly) Set(cfg Config) {
	rom.maxMsgLen = cfg.MaxMsgLen
	rom.sendTimeout = cfg.SendTimeout
	rom.verbosity = cfg.LogVerbosity
}

func (rom *readMostly) MaxMsgLen() int            { return rom.maxMsgLen }
func (rom *readMostly) SendTimeout() time.Duration { return rom.sendTimeout }
func (rom *readMostly) FastV(verbosity int) bool   { return rom.verbosity >= verbosity }

func init() {
	Rom.Set(Defaults())
}
