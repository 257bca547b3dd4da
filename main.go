package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudverse/metering-center/api"
	"github.com/cloudverse/metering-center/config"
	"github.com/cloudverse/metering-center/core/dao"
	"github.com/cloudverse/metering-center/core/metering"
	"github.com/cloudverse/metering-center/core/tasklock"
	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/viper"
)

func main() {
	OsSignal := make(chan os.Signal, 1)

	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("reading config file: %v\n", err)
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("unmarshaling config file: %v\n", err)
	}
	config.Cfg = cfg
	if cfg.Mode == "debug" {
		logging.SetDebugLogging()
	}

	if err := dao.Init(&cfg); err != nil {
		log.Fatalf("initital: %v\n", err)
	}

	locks := tasklock.NewRegistry(
		tasklock.NewDBStore(),
		tasklock.NewSMTPMailer(cfg.Email),
		tasklock.DBUserDirectory{},
		cfg.SiteBrand,
	)

	var mgr *metering.Manager
	if !cfg.Metering.Disable {
		mgr = metering.New(cfg.Metering, locks, tasklock.NewSMTPMailer(cfg.Email))
		if err := mgr.Run(); err != nil {
			log.Fatalf("start metering jobs: %v\n", err)
		}
	}

	_, err := api.NewServer(cfg, locks)
	if err != nil {
		log.Fatalf("create api server: %v\n", err)
	}

	signal.Notify(OsSignal, syscall.SIGINT, syscall.SIGTERM)
	<-OsSignal
	if mgr != nil {
		mgr.Close()
	}

	fmt.Printf("Exiting received OsSignal\n")
}
