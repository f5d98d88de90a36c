package reader

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/naoina/toml"

	"github.com/morph-l2/chaindb-reader/internal/debug"
)

// Config contains the settings of a Reader.
type Config struct {
	// Network selects a bundled chain configuration: mainnet, sepolia or holesky.
	Network string

	// ChainConfigFile points to a JSON chain configuration, either a bare
	// params.ChainConfig or a genesis file. It overrides Network.
	ChainConfigFile string `toml:",omitempty"`

	DatabaseCache   int // megabytes
	DatabaseHandles int

	// AncientDir is the freezer location. When empty, <db>/ancient is used if
	// it exists and the key-value store is read alone otherwise.
	AncientDir string `toml:",omitempty"`

	Log debug.LogConfig
}

// Defaults contains the default settings.
var Defaults = Config{
	Network:         "mainnet",
	DatabaseCache:   16,
	DatabaseHandles: 16,
	Log:             debug.DefaultLogConfig,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// LoadConfig decodes the TOML file on top of cfg.
func LoadConfig(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// MarshalConfig encodes cfg the way LoadConfig expects it.
func MarshalConfig(cfg *Config) ([]byte, error) {
	return tomlSettings.Marshal(cfg)
}

// ChainConfig resolves the chain configuration used to derive transaction
// signers.
func (c *Config) ChainConfig() (*params.ChainConfig, error) {
	if c.ChainConfigFile != "" {
		return loadChainConfig(c.ChainConfigFile)
	}
	switch strings.ToLower(c.Network) {
	case "", "mainnet":
		return params.MainnetChainConfig, nil
	case "sepolia":
		return params.SepoliaChainConfig, nil
	case "holesky":
		return params.HoleskyChainConfig, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, c.Network)
}

func loadChainConfig(file string) (*params.ChainConfig, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var genesis struct {
		Config *params.ChainConfig `json:"config"`
	}
	if err := json.Unmarshal(data, &genesis); err != nil {
		return nil, fmt.Errorf("invalid chain config %s: %v", file, err)
	}
	if genesis.Config != nil {
		log.Debug("Loaded chain config from genesis", "file", file, "chainid", genesis.Config.ChainID)
		return genesis.Config, nil
	}
	config := new(params.ChainConfig)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("invalid chain config %s: %v", file, err)
	}
	if config.ChainID == nil {
		return nil, fmt.Errorf("invalid chain config %s: missing chainId", file)
	}
	return config, nil
}

func (c *Config) ancientDir(db string) string {
	if c.AncientDir != "" {
		return c.AncientDir
	}
	dir := filepath.Join(db, "ancient")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}
