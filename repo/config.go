package repo

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/cpacia/multisig/version"
	"github.com/jessevdk/go-flags"
	"github.com/natefinch/lumberjack"
	"github.com/op/go-logging"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultConfigFilename = "multisig.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "multisig.log"
)

var (
	// DefaultHomeDir is the default data directory.
	DefaultHomeDir    = btcutil.AppDataDir("multisig", false)
	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(DefaultHomeDir, defaultLogDirname)

	fileLogFormat   = logging.MustStringFormatter(`%{time:2006-01-02T15:04:05} [%{level}] [%{module}] %{message}`)
	stdoutLogFormat = logging.MustStringFormatter(`%{color:reset}%{color}%{time:15:04:05.000} [%{level}] [%{module}] %{message}`)
)

// Config defines the configuration options for the multisig wallet.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	ShowVersion bool          `short:"v" long:"version" description:"Display version information and exit"`
	ConfigFile  string        `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string        `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string        `long:"logdir" description:"Directory to log output."`
	LogLevel    string        `short:"l" long:"loglevel" description:"set the logging level [debug, info, notice, warning, error, critical]" default:"info"`
	Network     string        `long:"network" description:"The bitcoin network to use [mainnet, testnet3, regtest, simnet]" default:"testnet3"`
	RPCHost     string        `long:"rpchost" description:"Host and port of the bitcoind JSON-RPC server. Defaults to localhost on the network's RPC port."`
	RPCUser     string        `long:"rpcuser" description:"Username for bitcoind RPC authentication"`
	RPCPass     string        `long:"rpcpass" description:"Password for bitcoind RPC authentication"`
	RPCTimeout  time.Duration `long:"rpctimeout" description:"Timeout for bitcoind RPC calls" default:"30s"`
	Proxy       string        `long:"proxy" description:"Connect to bitcoind through a SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	MinFeeRate  int64         `long:"minfeerate" description:"Minimum fee rate in satoshis per virtual byte" default:"1"`
	MinConf     int64         `long:"minconf" description:"Minimum confirmations required on a UTXO before it may be spent" default:"0"`
	Threshold   int           `long:"threshold" description:"Number of signatures required to spend from the multisig address" default:"2"`
	APIAddr     string        `long:"apiaddr" description:"Address the cosigner API listens on" default:"127.0.0.1:4102"`
	APIUser     string        `long:"apiuser" description:"Username for API basic authentication. If empty authentication is disabled."`
	APIPass     string        `long:"apipass" description:"Password for API basic authentication"`
	AllowedIPs  []string      `long:"allowedip" description:"Only allow API connections from these IPs"`
	Passphrase  string        `long:"passphrase" env:"MULTISIG_PASSPHRASE" description:"Passphrase used to open a sealed key file" no-ini:"true"`
}

// Params returns the chain parameters for the configured network.
func (cfg *Config) Params() (*chaincfg.Params, error) {
	switch strings.ToLower(cfg.Network) {
	case "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet3", "testnet", "test", "":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	}
	return nil, fmt.Errorf("unknown network %q", cfg.Network)
}

// RPCHostOrDefault returns the configured RPC host or bitcoind's default
// RPC port on localhost for the network.
func (cfg *Config) RPCHostOrDefault() string {
	if cfg.RPCHost != "" {
		return cfg.RPCHost
	}
	params, err := cfg.Params()
	if err != nil {
		return "127.0.0.1:18332"
	}
	switch params.Net {
	case chaincfg.MainNetParams.Net:
		return "127.0.0.1:8332"
	case chaincfg.RegressionNetParams.Net:
		return "127.0.0.1:18443"
	case chaincfg.SimNetParams.Net:
		return "127.0.0.1:18554"
	default:
		return "127.0.0.1:18332"
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
// 	1) Start with a default config with sane settings
// 	2) Pre-parse the command line to check for an alternative config file
// 	3) Load configuration file overwriting defaults with any specified options
// 	4) Parse CLI options and overwrite/add any specified options
//
// Options belonging to the subcommand being run are ignored here. Command
// line options always take precedence.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	// Default config.
	cfg := Config{
		DataDir:    DefaultHomeDir,
		ConfigFile: defaultConfigFile,
		LogDir:     defaultLogDir,
	}

	// Pre-parse the command line options to see if an alternative config
	// file, data directory or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.IgnoreUnknown)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, err
		}
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.String())
		os.Exit(0)
	}

	// A custom data directory moves the default config file and logs along
	// with it.
	if preCfg.DataDir != DefaultHomeDir {
		if preCfg.ConfigFile == defaultConfigFile {
			preCfg.ConfigFile = filepath.Join(preCfg.DataDir, defaultConfigFilename)
		}
		if preCfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(preCfg.DataDir, defaultLogDirname)
		}
	}
	preCfg.ConfigFile = cleanAndExpandPath(preCfg.ConfigFile)

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.IgnoreUnknown)
	if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
		err := createDefaultConfigFile(preCfg.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a "+
				"default config file: %v\n", err)
		}
	}

	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config "+
				"file: %v\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	cfg.ConfigFile = preCfg.ConfigFile
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	if _, err := cfg.Params(); err != nil {
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}
	if cfg.MinFeeRate < 1 {
		return nil, fmt.Errorf("minfeerate must be at least 1 sat/vbyte, got %d", cfg.MinFeeRate)
	}

	setupLogging(cfg.LogDir, cfg.LogLevel)

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.  Note this should go directly before the return.
	if configFileError != nil {
		log.Warningf("%v", configFileError)
	}
	return &cfg, nil
}

// createDefaultConfigFile writes the sample config to the given destination
// path, populated with a randomly generated API username and password.
func createDefaultConfigFile(destinationPath string) error {
	// Create the destination directory if it does not exists
	err := os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}

	// We generate a random user and password
	randomBytes := make([]byte, 20)
	_, err = rand.Read(randomBytes)
	if err != nil {
		return err
	}
	generatedAPIUser := base64.StdEncoding.EncodeToString(randomBytes)

	_, err = rand.Read(randomBytes)
	if err != nil {
		return err
	}
	generatedAPIPass := base64.StdEncoding.EncodeToString(randomBytes)

	dest, err := os.OpenFile(destinationPath,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	// We copy every line from the sample config file to the destination,
	// only replacing the two lines for apiuser and apipass
	reader := bufio.NewReader(strings.NewReader(sampleConfig))
	for err != io.EOF {
		var line string
		line, err = reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}

		if strings.HasPrefix(line, "; apiuser=") {
			line = "apiuser=" + generatedAPIUser + "\n"
		} else if strings.HasPrefix(line, "; apipass=") {
			line = "apipass=" + generatedAPIPass + "\n"
		}

		if _, err := dest.WriteString(line); err != nil {
			return err
		}
	}

	return nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = filepath.Dir(DefaultHomeDir)
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func setupLogging(logDir, logLevel string) {
	backendStdout := logging.NewLogBackend(os.Stdout, "", 0)
	backendStdoutFormatter := logging.NewBackendFormatter(backendStdout, stdoutLogFormat)

	if logDir != "" {
		rotator := &lumberjack.Logger{
			Filename:   path.Join(logDir, defaultLogFilename),
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}

		backendFile := logging.NewLogBackend(rotator, "", 0)
		backendFileFormatter := logging.NewBackendFormatter(backendFile, fileLogFormat)
		logging.SetBackend(backendStdoutFormatter, backendFileFormatter)
	} else {
		logging.SetBackend(backendStdoutFormatter)
	}

	logging.SetLevel(parseLevel(logLevel), "")
}

func parseLevel(logLevel string) logging.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return logging.DEBUG
	case "info":
		return logging.INFO
	case "notice":
		return logging.NOTICE
	case "warning":
		return logging.WARNING
	case "error":
		return logging.ERROR
	case "critical":
		return logging.CRITICAL
	default:
		return logging.INFO
	}
}

const sampleConfig = `[Application Options]

; ------------------------------------------------------------------------------
; Data settings
; ------------------------------------------------------------------------------

; The directory to store the key file, multisig commitment and database.
; datadir=~/.multisig

; The directory to write log files to.
; logdir=~/.multisig/logs

; Logging level [debug, info, notice, warning, error, critical].
; loglevel=info

; ------------------------------------------------------------------------------
; Bitcoin node
; ------------------------------------------------------------------------------

; The bitcoin network [mainnet, testnet3, regtest, simnet].
; network=testnet3

; Host and port of the bitcoind JSON-RPC server.
; rpchost=127.0.0.1:18332

; Credentials from bitcoin.conf.
; rpcuser=
; rpcpass=

; Timeout for a single RPC call.
; rpctimeout=30s

; SOCKS5 proxy to reach bitcoind through.
; proxy=127.0.0.1:9050

; ------------------------------------------------------------------------------
; Spending policy
; ------------------------------------------------------------------------------

; Minimum fee rate in satoshis per virtual byte.
; minfeerate=1

; Minimum confirmations on the UTXO being spent. 0 disables the check.
; minconf=0

; Signatures required to spend from the multisig address.
; threshold=2

; ------------------------------------------------------------------------------
; Cosigner API
; ------------------------------------------------------------------------------

; apiaddr=127.0.0.1:4102
; apiuser=
; apipass=

; Restrict API access to these IPs. May be repeated.
; allowedip=127.0.0.1
`
