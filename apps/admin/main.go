package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/masomo/apps/shared"
	"github.com/trezcool/masomo/core"
	emailsvc "github.com/trezcool/masomo/services/email"
	logsvc "github.com/trezcool/masomo/services/logger"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB; `migrate` decides on migrations itself
	stores, err := shared.OpenStores(context.Background(), conf, false)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}
	core.ParseEmailTemplates(conf, logger)

	gb, err := shared.NewGradebook(conf, stores, logger, mailSvc)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up gradebook: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:        stores.DB,
		publisher: gb.Publisher,
		engine:    gb.Engine,
		out:       os.Stdout,
	}
	err = cli.run(os.Args)
	if cErr := stores.Close(); cErr != nil {
		logger.Error("closing database", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}
