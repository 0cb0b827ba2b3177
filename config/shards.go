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
	"strings"

	"github.com/pkg/errors"
)

const (
	// LinkStatusActive is the status string of a healthy link.
	LinkStatusActive = "active"
	// LinkStatusRecovery is the status string of a link under recovery.
	LinkStatusRecovery = "recovery"
	// LinkStatusDisabled is the status string of a link never selected.
	LinkStatusDisabled = "disabled"
)

// LinkConfig tuple.
type LinkConfig struct {
	Address  string `json:"address"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"database"`
	Charset  string `json:"charset"`
	Status   string `json:"status"`
	Weight   int    `json:"weight"`
	// ForceDisconnect tears the connection down on release instead of pooling it.
	ForceDisconnect bool `json:"force-disconnect,omitempty"`
}

// DefaultLinkConfig returns default link config.
func DefaultLinkConfig() *LinkConfig {
	return &LinkConfig{
		Charset: "utf8",
		Status:  LinkStatusActive,
		Weight:  1,
	}
}

// UnmarshalJSON interface on LinkConfig.
func (c *LinkConfig) UnmarshalJSON(b []byte) error {
	type confAlias *LinkConfig
	conf := confAlias(DefaultLinkConfig())
	if err := json.Unmarshal(b, conf); err != nil {
		return err
	}
	*c = LinkConfig(*conf)
	return nil
}

// ShardConfig tuple.
type ShardConfig struct {
	Name string `json:"name"`
	// RemoteTable is the qualified name(db.tbl) of the table on the remote node.
	RemoteTable string        `json:"remote-table"`
	Links       []*LinkConfig `json:"links"`
}

// TableConfig tuple.
type TableConfig struct {
	// Name is the qualified name(db.tbl) of the federated table.
	Name   string         `json:"name"`
	Shards []*ShardConfig `json:"shards"`
}

// ShardsConfig tuple.
type ShardsConfig struct {
	Tables []*TableConfig `json:"tables"`
}

// Validate checks the table config.
func (c *TableConfig) Validate() error {
	if !strings.Contains(c.Name, ".") {
		return errors.Errorf("table[%s].name.must.be.qualified", c.Name)
	}
	if len(c.Shards) == 0 {
		return errors.Errorf("table[%s].shards.can't.be.empty", c.Name)
	}
	names := make(map[string]bool)
	for _, shard := range c.Shards {
		if names[shard.Name] {
			return errors.Errorf("table[%s].shard[%s].duplicate", c.Name, shard.Name)
		}
		names[shard.Name] = true
		if !strings.Contains(shard.RemoteTable, ".") {
			return errors.Errorf("table[%s].shard[%s].remote-table[%s].must.be.qualified", c.Name, shard.Name, shard.RemoteTable)
		}
		if len(shard.Links) == 0 {
			return errors.Errorf("table[%s].shard[%s].links.can't.be.empty", c.Name, shard.Name)
		}
		for i, link := range shard.Links {
			switch link.Status {
			case LinkStatusActive, LinkStatusRecovery, LinkStatusDisabled:
			default:
				return errors.Errorf("table[%s].shard[%s].link[%d].unknown.status[%s]", c.Name, shard.Name, i, link.Status)
			}
			if link.Weight < 0 {
				return errors.Errorf("table[%s].shard[%s].link[%d].weight[%d].can't.be.negative", c.Name, shard.Name, i, link.Weight)
			}
		}
	}
	return nil
}

// ReadTableConfig used to read the table config from the data.
func ReadTableConfig(data string) (*TableConfig, error) {
	conf := &TableConfig{}
	if err := json.Unmarshal([]byte(data), conf); err != nil {
		return nil, errors.WithStack(err)
	}
	return conf, nil
}

// ReadShardsConfig used to read the shards config from the data.
func ReadShardsConfig(data string) (*ShardsConfig, error) {
	conf := &ShardsConfig{}
	if err := json.Unmarshal([]byte(data), conf); err != nil {
		return nil, errors.WithStack(err)
	}
	return conf, nil
}
