/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/radondb/fedlink/build"
	"github.com/radondb/fedlink/config"
	"github.com/radondb/fedlink/ctl"
	"github.com/radondb/fedlink/monitor"
	"github.com/radondb/fedlink/proxy"

	"github.com/xelabs/go-mysqlstack/xlog"
)

var (
	flagConf   string
	fcpu       *os.File
	pprofCpuOn = flag.Bool("pcpu", false, "is cpu prof enable, default false")
)

func init() {
	flag.StringVar(&flagConf, "c", "", "fedlink config file")
	flag.StringVar(&flagConf, "config", "", "fedlink config file")
}

func usage() {
	fmt.Println("Usage: " + os.Args[0] + " [-c|--config] <fedlink-config-file>")
}

func startPprof() {
	nowStr := time.Now().Format(time.RFC3339)
	if *pprofCpuOn {
		cpuFile := "pprof_cpu_" + nowStr
		var err error
		if fcpu, err = os.Create(cpuFile); err != nil {
			fmt.Println("start pprof cpu failed", err)
			os.Exit(1)
		}

		pprof.StartCPUProfile(fcpu)
		fmt.Println("[pprof cpu]:\t" + cpuFile)
	}
}

func stopPprof() {
	if *pprofCpuOn {
		pprof.StopCPUProfile()
		fcpu.Close()
	}
}

func main() {
	log := xlog.NewStdLog(xlog.Level(xlog.DEBUG))

	build := build.GetInfo()
	fmt.Printf("fedlink:[%+v]\n", build)

	// config
	flag.Usage = func() { usage() }
	flag.Parse()
	if flagConf == "" {
		usage()
		os.Exit(0)
	}

	conf, err := config.LoadConfig(flagConf)
	if err != nil {
		log.Panic("fedlink.load.config.error[%v]", err)
	}
	log.SetLevel(conf.Log.Level)

	// pprof
	startPprof()
	defer stopPprof()

	// Monitor
	monitor.Start(log, conf.Monitor.Address)

	// Proxy.
	proxy := proxy.NewProxy(log, flagConf, conf)
	proxy.Start()

	// Admin portal.
	admin := ctl.NewAdmin(log, proxy)
	if err := admin.Start(); err != nil {
		log.Panic("fedlink.admin.start.error[%v]", err)
	}

	// Handle SIGINT and SIGTERM.
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	log.Info("fedlink.signal:%+v", <-ch)

	// Stop the httpserver and the proxy.
	admin.Stop()
	proxy.Stop()
}
