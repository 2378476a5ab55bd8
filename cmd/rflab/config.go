package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/cobra"
	yml "gopkg.in/yaml.v2"

	"github.com/synteira/rflab/advantest"
	"github.com/synteira/rflab/fetch"
	"github.com/synteira/rflab/netscan"
	"github.com/synteira/rflab/rigol"
	"github.com/synteira/rflab/testbench"
)

var (
	// ConfigFileName is what it sounds like
	ConfigFileName = "rflab.yml"

	// EnvPrefix starts the variables that override the file,
	// RFLAB_INSTRUMENTS_DP832 sets instruments.dp832
	EnvPrefix = "RFLAB_"

	k   = koanf.New(".")
	cfg Config
)

// Instruments holds the addresses of the bench.  The Rigol addresses are a
// host, a host:port, or usb:<pid> for a USB-TMC connection.
type Instruments struct {
	DSA815 string `koanf:"dsa815" yaml:"dsa815"`
	DG4102 string `koanf:"dg4102" yaml:"dg4102"`
	DP832  string `koanf:"dp832" yaml:"dp832"`
	DHO924 string `koanf:"dho924" yaml:"dho924"`

	// Prologix is the serial port or host of the GPIB adapter
	Prologix string `koanf:"prologix" yaml:"prologix"`

	// R3271 is the GPIB address of the analyzer behind the adapter
	R3271 int `koanf:"r3271" yaml:"r3271"`
}

// Loader is the link to the bridge board that programs synthesizers
type Loader struct {
	// Port is a serial port, or a host:port for a bridge on the network
	Port string `koanf:"port" yaml:"port"`
	Baud int    `koanf:"baud" yaml:"baud"`
	Echo bool   `koanf:"echo" yaml:"echo"`
}

// Scan sets up the subnet ping sweep
type Scan struct {
	First   int           `koanf:"first" yaml:"first"`
	Last    int           `koanf:"last" yaml:"last"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
	Lookups int           `koanf:"lookups" yaml:"lookups"`
	Network string        `koanf:"network" yaml:"network"`
}

// Fetch sets up the document downloader
type Fetch struct {
	Workers   int    `koanf:"workers" yaml:"workers"`
	Suffix    string `koanf:"suffix" yaml:"suffix"`
	Dir       string `koanf:"dir" yaml:"dir"`
	UserAgent string `koanf:"useragent" yaml:"useragent"`
}

// Config is the whole configuration of the tool
type Config struct {
	// Addr is the address the HTTP server listens at
	Addr string `koanf:"addr" yaml:"addr"`

	// Firmware is the main.c that synth --patch rewrites
	Firmware string `koanf:"firmware" yaml:"firmware"`

	Instruments Instruments            `koanf:"instruments" yaml:"instruments"`
	Loader      Loader                 `koanf:"loader" yaml:"loader"`
	Scan        Scan                   `koanf:"scan" yaml:"scan"`
	Fetch       Fetch                  `koanf:"fetch" yaml:"fetch"`
	Analyzer    rigol.AnalyzerSettings `koanf:"analyzer" yaml:"analyzer"`
	Bench       testbench.Config       `koanf:"bench" yaml:"bench"`
}

// DefaultConfig is the configuration without a file
func DefaultConfig() Config {
	return Config{
		Addr:     ":8000",
		Firmware: "main.c",
		Instruments: Instruments{
			R3271: advantest.DefaultGPIBAddr,
		},
		Loader: Loader{Baud: 115200},
		Scan: Scan{
			First:   1,
			Last:    254,
			Timeout: netscan.DefaultTimeout,
			Lookups: netscan.DefaultLookups,
		},
		Fetch: Fetch{
			Workers: fetch.DefaultWorkers,
			Suffix:  ".pdf",
			Dir:     ".",
		},
		Analyzer: rigol.DefaultAnalyzerSettings(),
		Bench:    testbench.DefaultConfig(),
	}
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

// setupconfig layers the defaults, the file at path and the environment
func setupconfig(path string) error {
	k = koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such") { // file missing, who cares
			return fmt.Errorf("error loading config: %w", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return err
	}
	cfg = Config{}
	return k.Unmarshal("", &cfg)
}

var mkconfCmd = &cobra.Command{
	Use:   "mkconf",
	Short: "write the effective configuration to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Create(configFile)
		if err != nil {
			return err
		}
		if err = yml.NewEncoder(f).Encode(cfg); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

var confCmd = &cobra.Command{
	Use:   "conf",
	Short: "print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return yml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
	},
}

func init() {
	rootCmd.AddCommand(mkconfCmd, confCmd)
}
