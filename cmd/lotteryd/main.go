package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arkade-os/lotteryd/internal/config"
	httpservice "github.com/arkade-os/lotteryd/internal/interface/http"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Version will be set during build time
var Version string

func mainAction(_ *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	appSvc, err := cfg.AppService()
	if err != nil {
		return err
	}

	svcConfig := httpservice.Config{
		Port:     cfg.Port,
		Owner:    cfg.Owner,
		Decimals: cfg.CurrencyDecimals,
		Debug:    log.Level(cfg.LogLevel) >= log.DebugLevel,
	}
	svc, err := httpservice.NewService(svcConfig, appSvc, cfg.AdminService())
	if err != nil {
		return err
	}

	log.Infof("lottery server config: %s", cfg)

	log.Debug("starting service...")
	if err := svc.Start(); err != nil {
		return err
	}

	log.RegisterExitHandler(svc.Stop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Debug("shutting down service...")
	log.Exit(0)

	return nil
}

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "lotteryd"
	app.Usage = "run or manage the lottery server"
	app.UsageText = "Run the lottery server with:\n\tlotteryd\nManage the lottery server with:\n\tlotteryd [global options] command [command options]"
	app.Commands = append(
		app.Commands,
		infoCmd,
		buyTicketCmd,
		ticketsCmd,
		startRoundCmd,
		drawCmd,
		roundInfoCmd,
		verifyDrawCmd,
		roundsCmd,
		balanceCmd,
	)
	app.Action = mainAction
	app.Flags = append(app.Flags, urlFlag, accountFlag)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
