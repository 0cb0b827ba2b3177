/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package config

import (
	"encoding/json"
	"io/ioutil"

	"github.com/radondb/fedlink/xbase"

	"github.com/pkg/errors"
)

// ProxyConfig tuple.
type ProxyConfig struct {
	MetaDir  string `json:"meta-dir"`
	Endpoint string `json:"endpoint"`
	// ServerID identifies this node inside loop-check markers, it must be
	// unique across the federation.
	ServerID string `json:"server-id"`

	MaxConnections int    `json:"max-connections"`
	QueryTimeout   int    `json:"query-timeout"`
	PeerAddress    string `json:"peer-address,omitempty"`
	User           string `json:"user"`
	Password       string `json:"password"`
	TwopcEnable    bool   `json:"twopc-enable"`
	// MaxResultRows caps the rows fetched from one shard, 0 is unlimited.
	MaxResultRows int `json:"max-result-rows"`
}

// DefaultProxyConfig returns default proxy config.
func DefaultProxyConfig() *ProxyConfig {
	return &ProxyConfig{
		MetaDir:        "./fedlink-meta",
		Endpoint:       "127.0.0.1:3308",
		ServerID:       "fedlink-1",
		MaxConnections: 1024,
		QueryTimeout:   5 * 60 * 1000, // 5minutes
		PeerAddress:    "127.0.0.1:8080",
		User:           "mock",
		Password:       "pwd",
	}
}

// UnmarshalJSON interface on ProxyConfig.
func (c *ProxyConfig) UnmarshalJSON(b []byte) error {
	type confAlias *ProxyConfig
	conf := confAlias(DefaultProxyConfig())
	if err := json.Unmarshal(b, conf); err != nil {
		return err
	}
	*c = ProxyConfig(*conf)
	return nil
}

// RegistryConfig tuple.
type RegistryConfig struct {
	Partitions             int `json:"partitions"`
	MaxEndpointConnections int `json:"max-endpoint-connections"`
	MaxIdlePerLink         int `json:"max-idle-per-link"`
	// Milliseconds.
	IdleTimeout     int `json:"idle-timeout"`
	PingInterval    int `json:"ping-interval"`
	ConnWaitTimeout int `json:"conn-wait-timeout"`
}

// DefaultRegistryConfig returns default registry config.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		Partitions:             16,
		MaxEndpointConnections: 1024,
		MaxIdlePerLink:         64,
		IdleTimeout:            20 * 1000,
		PingInterval:           1000,
		ConnWaitTimeout:        5 * 1000,
	}
}

// UnmarshalJSON interface on RegistryConfig.
func (c *RegistryConfig) UnmarshalJSON(b []byte) error {
	type confAlias *RegistryConfig
	conf := confAlias(DefaultRegistryConfig())
	if err := json.Unmarshal(b, conf); err != nil {
		return err
	}
	*c = RegistryConfig(*conf)
	return nil
}

// DispatcherConfig tuple.
type DispatcherConfig struct {
	KillOnBreak   bool `json:"kill-on-break"`
	MaxResultSize int  `json:"max-result-size"`
	XARetries     int  `json:"xa-retries"`
}

// DefaultDispatcherConfig returns default dispatcher config.
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		KillOnBreak:   true,
		MaxResultSize: 1024 * 1024 * 1024, // 1GB
		XARetries:     10,
	}
}

// UnmarshalJSON interface on DispatcherConfig.
func (c *DispatcherConfig) UnmarshalJSON(b []byte) error {
	type confAlias *DispatcherConfig
	conf := confAlias(DefaultDispatcherConfig())
	if err := json.Unmarshal(b, conf); err != nil {
		return err
	}
	*c = DispatcherConfig(*conf)
	return nil
}

// MonitorConfig tuple.
type MonitorConfig struct {
	// Milliseconds between two probes of one link, 0 disables the link monitor.
	Interval int `json:"monitor-interval"`
	// Probes per second across all links.
	ProbeRate   int    `json:"probe-rate"`
	MaxFailures int    `json:"max-failures"`
	Address     string `json:"monitor-address,omitempty"`
}

// DefaultMonitorConfig returns default monitor config.
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		Interval:    10 * 1000,
		ProbeRate:   64,
		MaxFailures: 3,
		Address:     "127.0.0.1:13380",
	}
}

// UnmarshalJSON interface on MonitorConfig.
func (c *MonitorConfig) UnmarshalJSON(b []byte) error {
	type confAlias *MonitorConfig
	conf := confAlias(DefaultMonitorConfig())
	if err := json.Unmarshal(b, conf); err != nil {
		return err
	}
	*c = MonitorConfig(*conf)
	return nil
}

// RefreshConfig tuple.
type RefreshConfig struct {
	// Seconds, 0 disables the refresher.
	StsInterval int `json:"sts-interval"`
	CrdInterval int `json:"crd-interval"`
	Workers     int `json:"workers"`
}

// DefaultRefreshConfig returns default refresh config.
func DefaultRefreshConfig() *RefreshConfig {
	return &RefreshConfig{
		StsInterval: 10,
		CrdInterval: 51,
		Workers:     8,
	}
}

// UnmarshalJSON interface on RefreshConfig.
func (c *RefreshConfig) UnmarshalJSON(b []byte) error {
	type confAlias *RefreshConfig
	conf := confAlias(DefaultRefreshConfig())
	if err := json.Unmarshal(b, conf); err != nil {
		return err
	}
	*c = RefreshConfig(*conf)
	return nil
}

// LogConfig tuple.
type LogConfig struct {
	Level string `json:"level"`
}

// DefaultLogConfig returns default log config.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level: "ERROR",
	}
}

// UnmarshalJSON interface on LogConfig.
func (c *LogConfig) UnmarshalJSON(b []byte) error {
	type confAlias *LogConfig
	conf := confAlias(DefaultLogConfig())
	if err := json.Unmarshal(b, conf); err != nil {
		return err
	}
	*c = LogConfig(*conf)
	return nil
}

// Config tuple.
type Config struct {
	Proxy      *ProxyConfig      `json:"proxy"`
	Registry   *RegistryConfig   `json:"registry"`
	Dispatcher *DispatcherConfig `json:"dispatcher"`
	Monitor    *MonitorConfig    `json:"monitor"`
	Refresh    *RefreshConfig    `json:"refresh"`
	Log        *LogConfig        `json:"log"`
}

// DefaultConfig returns a config with every section set to its default.
func DefaultConfig() *Config {
	conf := &Config{}
	checkConfig(conf)
	return conf
}

func checkConfig(conf *Config) {
	if conf.Proxy == nil {
		conf.Proxy = DefaultProxyConfig()
	}

	if conf.Registry == nil {
		conf.Registry = DefaultRegistryConfig()
	}

	if conf.Dispatcher == nil {
		conf.Dispatcher = DefaultDispatcherConfig()
	}

	if conf.Monitor == nil {
		conf.Monitor = DefaultMonitorConfig()
	}

	if conf.Refresh == nil {
		conf.Refresh = DefaultRefreshConfig()
	}

	if conf.Log == nil {
		conf.Log = DefaultLogConfig()
	}
}

// LoadConfig used to load the config from file.
func LoadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	conf := &Config{}
	if err := json.Unmarshal([]byte(data), conf); err != nil {
		return nil, errors.WithStack(err)
	}
	checkConfig(conf)
	return conf, nil
}

// WriteConfig used to write the conf to file.
func WriteConfig(path string, conf interface{}) error {
	b, err := json.MarshalIndent(conf, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}
	return xbase.WriteFile(path, b)
}
