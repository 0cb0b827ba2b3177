/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package config

var (
	// MockTablesConfig config.
	MockTablesConfig = []*TableConfig{
		&TableConfig{
			Name:   "sbtest.t1",
			Shards: MockShardsT1Config,
		},
	}

	// MockShardsT1Config config.
	MockShardsT1Config = []*ShardConfig{
		&ShardConfig{
			Name:        "s0",
			RemoteTable: "sbtest.t1_0",
			Links:       MockLinksConfig,
		},
		&ShardConfig{
			Name:        "s1",
			RemoteTable: "sbtest.t1_1",
			Links:       MockLinksConfig,
		},
	}

	// MockLinksConfig config.
	MockLinksConfig = []*LinkConfig{
		&LinkConfig{
			Address:  "127.0.0.1:3304",
			User:     "mock",
			Password: "pwd",
			DBName:   "sbtest",
			Charset:  "utf8",
			Status:   LinkStatusActive,
			Weight:   1,
		},
		&LinkConfig{
			Address:  "127.0.0.1:3305",
			User:     "mock",
			Password: "pwd",
			DBName:   "sbtest",
			Charset:  "utf8",
			Status:   LinkStatusRecovery,
			Weight:   2,
		},
	}

	// MockProxyConfig config.
	MockProxyConfig = &ProxyConfig{
		Endpoint:       ":5566",
		ServerID:       "fedlink-mock",
		MaxConnections: 1024,
		MetaDir:        "/tmp/fedlinkmeta",
		PeerAddress:    ":8080",
		User:           "mock",
		Password:       "pwd",
	}

	// MockLogConfig config.
	MockLogConfig = &LogConfig{
		Level: "DEBUG",
	}
)
