// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2025 The bwspv developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	flags "github.com/jessevdk/go-flags"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/bwspv/chainparams"
	"github.com/btcsuite/bwspv/internal/cfgutil"
)

const (
	defaultConfigFilename = "spvwalletd.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "spvwalletd.log"
)

var (
	spvwalletdHomeDir = btcutil.AppDataDir("spvwalletd", false)
	defaultConfigFile = filepath.Join(spvwalletdHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(spvwalletdHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(spvwalletdHomeDir, defaultLogDirname)
)

// config holds the settings this daemon needs: which network to follow,
// where to keep the wallet/block-store database, which peer to connect to
// (a fixed address stands in for DNS-seed discovery until a host wires a
// real Dialer), and how verbosely to log. It intentionally carries none of
// the teacher's RPC-server/TLS/stake-mining options — SPEC_FULL.md scopes
// this binary to the Peer Manager and Wallet Engine only.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store the wallet and block-store databases"`
	TestNet    bool   `long:"testnet" description:"Use the test network (default mainnet)"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	Create      bool                    `long:"create" description:"Create the wallet if it does not exist"`
	ConnectPeer *cfgutil.ExplicitString `long:"connect" description:"Connect only to this peer (host:port); DNS-seed discovery is used when unset"`
	FeePerKB    *cfgutil.AmountFlag     `long:"feeperkb" description:"Fee rate to use when constructing transactions"`
}

func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(spvwalletdHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}
	return filepath.Clean(os.ExpandEnv(path))
}

func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels parses debugLevel, either a single level applied
// to every subsystem or a comma-separated list of subsystem=level pairs,
// and sets the corresponding loggers.
func parseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid", debugLevel)
		}
		setLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid "+
				"subsystem/level pair [%v]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is invalid -- "+
				"supported subsystems %v", subsysID, supportedSubsystems())
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid", logLevel)
		}
		setLogLevel(subsysID, logLevel)
	}
	return nil
}

// loadConfig starts from sane defaults, overlays a config file if one
// exists, then overlays command-line flags, exactly the three-stage
// precedence the teacher's loadConfig follows.
func loadConfig() (*config, []string, error) {
	cfg := config{
		ConfigFile:  defaultConfigFile,
		DataDir:     defaultDataDir,
		LogDir:      defaultLogDir,
		DebugLevel:  defaultLogLevel,
		ConnectPeer: cfgutil.NewExplicitString(""),
		FeePerKB:    cfgutil.NewAmountFlag(btcutil.Amount(1000)),
	}

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			return nil, nil, err
		}
	}

	if preCfg.ConfigFile != defaultConfigFile {
		cfg.ConfigFile = preCfg.ConfigFile
	}

	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(cfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			return nil, nil, err
		}
		os.Exit(0)
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, err
	}
	initSeelogLogger(filepath.Join(cfg.LogDir, defaultLogFilename))
	setLogLevels(defaultLogLevel)

	if !validLogLevel(cfg.DebugLevel) {
		str := "the specified debug level [%v] is invalid"
		err := fmt.Errorf(str, cfg.DebugLevel)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}

// chainParams picks the network chainparams.Params matching cfg.TestNet.
func (cfg *config) chainParams() *chainparams.Params {
	if cfg.TestNet {
		return chainparams.TestNet
	}
	return chainparams.MainNet
}
