package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/urfave/cli/v2"
)

const accountHeader = "X-Account"

type accountBalance struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
	Escrow  string `json:"escrow"`
}

func (b accountBalance) String() string {
	return fmt.Sprintf("account: %s\n   balance: %s\n   escrow: %s", b.Account, b.Balance, b.Escrow)
}

func getAccount(ctx *cli.Context) (string, error) {
	account := ctx.String(accountFlagName)
	if account == "" {
		return "", fmt.Errorf("missing --%s", accountFlagName)
	}
	return account, nil
}

func post[T any](url, body, account string) (result T, err error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest("POST", url, reader)
	if err != nil {
		return
	}
	return do[T](req, account)
}

func get[T any](url, account string) (result T, err error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return
	}
	return do[T](req, account)
}

func do[T any](req *http.Request, account string) (result T, err error) {
	req.Header.Add("Content-Type", "application/json")
	if len(account) > 0 {
		req.Header.Add(accountHeader, account)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	// nolint
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = fmt.Errorf("failed to %s: %s", strings.ToLower(req.Method), parseError(buf))
		return
	}

	err = json.Unmarshal(buf, &result)
	return
}

func parseError(buf []byte) string {
	res := struct {
		Error string `json:"error"`
	}{}
	if err := json.Unmarshal(buf, &res); err != nil || res.Error == "" {
		return string(buf)
	}
	return res.Error
}
