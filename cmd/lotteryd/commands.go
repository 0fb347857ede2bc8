package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/urfave/cli/v2"
)

// commands
var (
	infoCmd = &cli.Command{
		Name:   "info",
		Usage:  "Get info about the current round and the last draw",
		Action: infoAction,
	}
	buyTicketCmd = &cli.Command{
		Name:   "buy",
		Usage:  "Buy a ticket of the current round for --account",
		Flags:  []cli.Flag{amountFlag},
		Action: buyTicketAction,
	}
	ticketsCmd = &cli.Command{
		Name:   "tickets",
		Usage:  "Get a ticket by id or list the tickets held by an account",
		Flags:  []cli.Flag{ticketIdFlag, ownerFlag, indexFlag},
		Action: ticketsAction,
	}
	startRoundCmd = &cli.Command{
		Name:   "start-round",
		Usage:  "Open a new round, only the owner can do this",
		Action: startRoundAction,
	}
	drawCmd = &cli.Command{
		Name:   "draw",
		Usage:  "Draw the winner of the current round once closed",
		Action: drawAction,
	}
	roundInfoCmd = &cli.Command{
		Name:   "round-info",
		Usage:  "Get the details of a round",
		Flags:  []cli.Flag{roundFlag},
		Action: roundInfoAction,
	}
	verifyDrawCmd = &cli.Command{
		Name:   "verify-draw",
		Usage:  "Recompute the draw of a settled round and check it against the record",
		Flags:  []cli.Flag{roundFlag},
		Action: verifyDrawAction,
	}
	roundsCmd = &cli.Command{
		Name:   "rounds",
		Usage:  "Get numbers of rounds in the given time range",
		Flags:  []cli.Flag{beforeDateFlag, afterDateFlag},
		Action: roundsInTimeRangeAction,
	}
	balanceCmd = &cli.Command{
		Name:   "balance",
		Usage:  "Get the wallet balance of an account and the amount held in escrow",
		Flags:  []cli.Flag{ownerFlag},
		Action: balanceAction,
	}
)

var timeout = time.Minute

func infoAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)

	url := fmt.Sprintf("%s/v1/info", baseURL)
	resp, err := get[map[string]any](url, "")
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func buyTicketAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	account, err := getAccount(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/tickets", baseURL)
	body := fmt.Sprintf(`{"amount": "%s"}`, ctx.String(amountFlagName))
	ticket, err := post[map[string]any](url, body, account)
	if err != nil {
		return err
	}

	fmt.Println("ticket successfully purchased:")
	return printJSON(ticket)
}

func ticketsAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)

	if ctx.IsSet(ticketIdFlagName) {
		url := fmt.Sprintf("%s/v1/tickets/%d", baseURL, ctx.Uint64(ticketIdFlagName))
		ticket, err := get[map[string]any](url, "")
		if err != nil {
			return err
		}
		return printJSON(ticket)
	}

	owner := ctx.String(ownerFlagName)
	if owner == "" {
		owner = ctx.String(accountFlagName)
	}
	if owner == "" {
		return fmt.Errorf("either --%s, --%s or --%s is required",
			ticketIdFlagName, ownerFlagName, accountFlagName)
	}

	url := fmt.Sprintf("%s/v1/accounts/%s/tickets", baseURL, url.PathEscape(owner))
	if index := ctx.Int64(indexFlagName); index >= 0 {
		url = fmt.Sprintf("%s/%d", url, index)
	}
	resp, err := get[map[string]any](url, "")
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func startRoundAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	account, err := getAccount(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/admin/round/start", baseURL)
	round, err := post[map[string]any](url, "", account)
	if err != nil {
		return err
	}

	fmt.Println("round successfully started:")
	return printJSON(round)
}

func drawAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	account, err := getAccount(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/draw", baseURL)
	result, err := post[map[string]any](url, "", account)
	if err != nil {
		return err
	}

	if rolledOver, _ := result["rolled_over"].(bool); rolledOver {
		fmt.Println("no tickets sold, pot rolled over to the next round:")
	} else {
		fmt.Println("lottery successfully drawn:")
	}
	return printJSON(result)
}

func roundInfoAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	account, err := getAccount(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/admin/rounds/%d", baseURL, ctx.Uint64(roundFlagName))
	resp, err := get[map[string]any](url, account)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func verifyDrawAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	account, err := getAccount(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/admin/rounds/%d/verify", baseURL, ctx.Uint64(roundFlagName))
	resp, err := get[map[string]any](url, account)
	if err != nil {
		return err
	}
	if valid, _ := resp["valid"].(bool); !valid {
		if err := printJSON(resp); err != nil {
			return err
		}
		return fmt.Errorf("draw of round %d does not match its record", ctx.Uint64(roundFlagName))
	}
	return printJSON(resp)
}

func roundsInTimeRangeAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	beforeDate := ctx.String(beforeDateFlagName)
	afterDate := ctx.String(afterDateFlagName)
	account, err := getAccount(ctx)
	if err != nil {
		return err
	}

	query := url.Values{}
	if afterDate != "" {
		afterTs, err := time.Parse(dateFormat, afterDate)
		if err != nil {
			return fmt.Errorf("invalid --after-date format, must be %s", dateFormat)
		}
		query.Set("after", fmt.Sprint(afterTs.Unix()))
	}
	if beforeDate != "" {
		beforeTs, err := time.Parse(dateFormat, beforeDate)
		if err != nil {
			return fmt.Errorf("invalid --before-date format, must be %s", dateFormat)
		}
		query.Set("before", fmt.Sprint(beforeTs.Unix()))
	}

	url := fmt.Sprintf("%s/v1/admin/rounds", baseURL)
	if len(query) > 0 {
		url = fmt.Sprintf("%s?%s", url, query.Encode())
	}
	resp, err := get[map[string]any](url, account)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func balanceAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	account, err := getAccount(ctx)
	if err != nil {
		return err
	}
	owner := ctx.String(ownerFlagName)
	if owner == "" {
		owner = account
	}

	url := fmt.Sprintf("%s/v1/admin/wallet/%s", baseURL, url.PathEscape(owner))
	balance, err := get[accountBalance](url, account)
	if err != nil {
		return err
	}

	fmt.Println(balance)
	return nil
}

func printJSON(v any) error {
	respJson, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to json encode response: %s", err)
	}
	fmt.Println(string(respJson))
	return nil
}
