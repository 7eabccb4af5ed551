/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the network description (organizations, channels,
// orderers, CA admins) through viper and turns it into an immutable
// NetworkConfig value that is passed to every component.
package config

import (
	"bytes"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/core"
)

var logger = logging.NewLogger("delphi/config")

var logModules = [...]string{"delphi/config", "delphi/msp", "delphi/caclient", "delphi/topology",
	"delphi/comm", "delphi/peer", "delphi/orderer", "delphi/txn", "delphi/invoke", "delphi/channel",
	"delphi/retry", "delphi/harness", "delphi/metrics", "delphi/cmd"}

type options struct {
	envPrefix string
	client    *http.Client
}

const (
	cmdRoot = "DELPHI"

	remoteConfigPath = "/config/orgs"
)

// Option configures the package.
type Option func(opts *options) error

// WithEnvPrefix defines the prefix for environment variable overrides.
// See viper SetEnvPrefix for more information.
func WithEnvPrefix(prefix string) Option {
	return func(opts *options) error {
		opts.envPrefix = prefix
		return nil
	}
}

// WithHTTPClient sets the client used by FromURL
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) error {
		opts.client = client
		return nil
	}
}

// FromReader loads configuration from in.
// configType can be "json" or "yaml".
func FromReader(in io.Reader, configType string, opts ...Option) core.ConfigProvider {
	return func() ([]core.ConfigBackend, error) {
		return initFromReader(in, configType, opts...)
	}
}

// FromFile reads from named config file
func FromFile(name string, opts ...Option) core.ConfigProvider {
	return func() ([]core.ConfigBackend, error) {
		if name == "" {
			return nil, errors.New("filename is required")
		}
		backend, _, err := newBackend(opts...)
		if err != nil {
			return nil, err
		}

		backend.configViper.SetConfigFile(name)
		if err := backend.configViper.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "loading config file failed: %s", name)
		}
		setLogLevel(backend)

		return []core.ConfigBackend{backend}, nil
	}
}

// FromRaw will initialize the configs from a byte array
func FromRaw(configBytes []byte, configType string, opts ...Option) core.ConfigProvider {
	return func() ([]core.ConfigBackend, error) {
		return initFromReader(bytes.NewBuffer(configBytes), configType, opts...)
	}
}

// FromURL fetches the organization config published by the swarm manager
// at <baseURL>/config/orgs. The document is JSON.
func FromURL(baseURL string, opts ...Option) core.ConfigProvider {
	return func() ([]core.ConfigBackend, error) {
		_, o, err := newBackend(opts...)
		if err != nil {
			return nil, err
		}
		client := o.client
		if client == nil {
			client = &http.Client{Timeout: 10 * time.Second}
		}

		url := strings.TrimSuffix(baseURL, "/") + remoteConfigPath
		resp, err := client.Get(url)
		if err != nil {
			return nil, errors.Wrapf(err, "fetching config from %s failed", url)
		}
		defer resp.Body.Close()

		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "reading config response failed")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("fetching config from %s failed: %s", url, resp.Status)
		}
		logger.Debugf("fetched %d bytes of config from %s", len(body), url)

		return initFromReader(bytes.NewReader(body), "json", opts...)
	}
}

func initFromReader(in io.Reader, configType string, opts ...Option) ([]core.ConfigBackend, error) {
	if configType == "" {
		return nil, errors.New("empty config type")
	}
	backend, _, err := newBackend(opts...)
	if err != nil {
		return nil, err
	}

	// read config from bytes array, but must set ConfigType
	// for viper to properly unmarshal the bytes array
	backend.configViper.SetConfigType(configType)
	if err := backend.configViper.MergeConfig(in); err != nil {
		return nil, errors.Wrap(err, "parsing config failed")
	}
	setLogLevel(backend)

	return []core.ConfigBackend{backend}, nil
}

func newBackend(opts ...Option) (*defConfigBackend, options, error) {
	o := options{
		envPrefix: cmdRoot,
	}
	for _, option := range opts {
		if err := option(&o); err != nil {
			return nil, o, errors.WithMessage(err, "Error in options passed to create new config backend")
		}
	}

	return &defConfigBackend{configViper: newViper(o.envPrefix)}, o, nil
}

func newViper(cmdRootPrefix string) *viper.Viper {
	myViper := viper.New()
	myViper.SetEnvPrefix(cmdRootPrefix)
	myViper.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	myViper.SetEnvKeyReplacer(replacer)
	return myViper
}

// setLogLevel applies logging.level to all modules of this repository
func setLogLevel(backend core.ConfigBackend) {
	levelString, ok := backend.Lookup("logging.level")
	if !ok {
		return
	}
	level, err := logging.LogLevel(cast.ToString(levelString))
	if err != nil {
		logger.Warnf("ignoring logging.level: %s", err)
		return
	}
	for _, logModule := range logModules {
		logging.SetLevel(logModule, level)
	}
}

// defConfigBackend represents the default config backend
type defConfigBackend struct {
	configViper *viper.Viper
}

// Lookup gets the config item value by Key
func (c *defConfigBackend) Lookup(key string) (interface{}, bool) {
	value := c.configViper.Get(key)
	if value == nil {
		return nil, false
	}
	return value, true
}
