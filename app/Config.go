/*
Copyright 2011-2024 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"
	"strings"

	fse "github.com/flanglet/fse-go"
	"github.com/urfave/cli/v2"
	"sigs.k8s.io/yaml"
)

// Config holds the option values shared by the compress and decompress
// commands. It can be loaded from a YAML file, command line flags take
// precedence over the file values.
type Config struct {
	BlockSizeID uint   `json:"block"`
	TableLog    uint   `json:"tableLog"`
	Checksum    bool   `json:"checksum"`
	Force       bool   `json:"force"`
	Recursive   bool   `json:"recursive"`
	Verbose     uint   `json:"verbose"`
	Info        string `json:"info"`
}

// NewConfig creates a Config with default values
func NewConfig() *Config {
	return &Config{
		BlockSizeID: fse.DEFAULT_BLOCK_SIZE_ID,
		TableLog:    fse.DEFAULT_TABLELOG,
		Checksum:    true,
		Recursive:   true,
		Verbose:     1,
	}
}

// LoadConfig reads a YAML file. Keys missing from the file keep their
// default value.
func LoadConfig(fileName string) (*Config, error) {
	buf, err := os.ReadFile(fileName)

	if err != nil {
		return nil, err
	}

	this := NewConfig()

	if err = yaml.Unmarshal(buf, this); err != nil {
		return nil, fmt.Errorf("invalid configuration file '%s': %w", fileName, err)
	}

	if err = this.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration file '%s': %w", fileName, err)
	}

	return this, nil
}

// Validate checks the ranges of the option values
func (this *Config) Validate() error {
	if this.BlockSizeID > fse.MAX_BLOCK_SIZE_ID {
		return fmt.Errorf("invalid block size id %d, must be in [0..%d]", this.BlockSizeID, fse.MAX_BLOCK_SIZE_ID)
	}

	if this.TableLog < fse.MIN_TABLELOG || this.TableLog > fse.MAX_TABLELOG {
		return fmt.Errorf("invalid table log %d, must be in [%d..%d]", this.TableLog, fse.MIN_TABLELOG, fse.MAX_TABLELOG)
	}

	if this.Verbose > 4 {
		return fmt.Errorf("invalid verbosity level %d, must be in [0..4]", this.Verbose)
	}

	switch strings.ToLower(this.Info) {
	case "", "text", "csv":
	default:
		return fmt.Errorf("invalid info format '%s', must be 'text' or 'csv'", this.Info)
	}

	return nil
}

// buildArgs merges the configuration file and the command line flags
// into the argument map used by BlockCompressor and BlockDecompressor
func buildArgs(c *cli.Context, compress bool) (map[string]any, error) {
	cfg := NewConfig()

	if name := c.String("config"); len(name) > 0 {
		var err error

		if cfg, err = LoadConfig(name); err != nil {
			return nil, err
		}
	}

	if c.IsSet("force") {
		cfg.Force = c.Bool("force")
	}

	if c.IsSet("recursive") {
		cfg.Recursive = c.Bool("recursive")
	}

	if c.IsSet("verbose") {
		cfg.Verbose = c.Uint("verbose")
	}

	if c.IsSet("info") {
		cfg.Info = c.String("info")
	}

	if compress == true {
		if c.IsSet("block") {
			cfg.BlockSizeID = c.Uint("block")
		}

		if c.IsSet("table-log") {
			cfg.TableLog = c.Uint("table-log")
		}
	} else if c.IsSet("checksum") {
		cfg.Checksum = c.Bool("checksum")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inputName := c.String("input")

	if len(inputName) == 0 {
		inputName = c.Args().First()
	}

	if len(inputName) == 0 {
		return nil, fmt.Errorf("missing input name")
	}

	argsMap := make(map[string]any)
	argsMap["inputName"] = inputName
	argsMap["outputName"] = c.String("output")
	argsMap["overwrite"] = cfg.Force
	argsMap["recursive"] = cfg.Recursive
	argsMap["verbose"] = cfg.Verbose
	argsMap["info"] = strings.ToLower(cfg.Info)

	if compress == true {
		argsMap["blockSizeId"] = cfg.BlockSizeID
		argsMap["tableLog"] = cfg.TableLog
	} else {
		argsMap["checksum"] = cfg.Checksum
	}

	return argsMap, nil
}
