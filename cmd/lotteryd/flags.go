package main

import (
	"fmt"
	"time"

	"github.com/arkade-os/lotteryd/internal/config"
	"github.com/urfave/cli/v2"
)

const (
	urlFlagName        = "url"
	accountFlagName    = "account"
	amountFlagName     = "amount"
	ticketIdFlagName   = "id"
	ownerFlagName      = "owner"
	indexFlagName      = "index"
	roundFlagName      = "round"
	beforeDateFlagName = "before-date"
	afterDateFlagName  = "after-date"

	dateFormat = time.DateOnly
)

var (
	urlFlag = &cli.StringFlag{
		Name:  urlFlagName,
		Usage: "the url where to reach the lottery server",
		Value: fmt.Sprintf("http://localhost:%d", config.DefaultPort),
	}
	accountFlag = &cli.StringFlag{
		Name:    accountFlagName,
		Usage:   "the account on whose behalf requests are made",
		EnvVars: []string{"LOTTERYD_ACCOUNT"},
	}
	amountFlag = &cli.StringFlag{
		Name:     amountFlagName,
		Usage:    "amount paid for the ticket, must match the ticket price exactly",
		Required: true,
	}
	ticketIdFlag = &cli.Uint64Flag{
		Name:  ticketIdFlagName,
		Usage: "id of the ticket to get info",
	}
	ownerFlag = &cli.StringFlag{
		Name:  ownerFlagName,
		Usage: "list the tickets held by the given account, defaults to --account",
	}
	indexFlag = &cli.Int64Flag{
		Name:  indexFlagName,
		Usage: "get only the ticket at the given index of the owner's holdings",
		Value: -1,
	}
	roundFlag = &cli.Uint64Flag{
		Name:     roundFlagName,
		Usage:    "number of the round",
		Required: true,
	}
	beforeDateFlag = &cli.StringFlag{
		Name: beforeDateFlagName,
		Usage: fmt.Sprintf(
			"get numbers of rounds started before the given date, must be in %s format",
			dateFormat,
		),
	}
	afterDateFlag = &cli.StringFlag{
		Name: afterDateFlagName,
		Usage: fmt.Sprintf(
			"get numbers of rounds started after the given date, must be in %s format",
			dateFormat,
		),
	}
)
