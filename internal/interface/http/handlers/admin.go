package handlers

import (
	"fmt"
	"net/http"

	"github.com/arkade-os/lotteryd/internal/core/application"
	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService application.AdminService
	handler      *Handler
	owner        string
	formatter
}

func NewAdminHandler(
	adminService application.AdminService, handler *Handler, owner string,
) *AdminHandler {
	return &AdminHandler{adminService, handler, owner, handler.formatter}
}

func (a *AdminHandler) Register(g *gin.RouterGroup) {
	g.Use(a.checkOwner)

	g.POST("/round/start", a.handler.startRound)
	g.POST("/round/draw", a.handler.drawLottery)
	g.GET("/rounds", a.getRounds)
	g.GET("/rounds/:number", a.getRoundDetails)
	g.GET("/rounds/:number/verify", a.verifyDraw)
	g.GET("/wallet/:account", a.getWalletBalance)
}

func (a *AdminHandler) checkOwner(c *gin.Context) {
	caller, err := parseAccount(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if caller != a.owner {
		abortWithError(c, domain.ErrUnauthorized)
		return
	}
	c.Next()
}

func (a *AdminHandler) getRounds(c *gin.Context) {
	after, err := parseIntQuery(c, "after")
	if err != nil {
		abortWithBadRequest(c, err)
		return
	}
	before, err := parseIntQuery(c, "before")
	if err != nil {
		abortWithBadRequest(c, err)
		return
	}
	if before > 0 && after >= before {
		abortWithBadRequest(c, fmt.Errorf("invalid range"))
		return
	}

	ctx := c.Request.Context()
	rounds, err := a.adminService.GetRounds(ctx, after, before)
	if err != nil {
		abortWithError(c, err)
		return
	}
	stats, err := a.adminService.GetRoundStats(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, roundsResponse{
		Rounds:           rounds,
		SettledRounds:    stats.SettledRounds,
		RolledOverRounds: stats.RolledOverRounds,
		TotalPaidOut:     a.amount(stats.TotalPaidOut),
	})
}

func (a *AdminHandler) getRoundDetails(c *gin.Context) {
	number, err := parseUintParam(c, "number")
	if err != nil {
		abortWithBadRequest(c, err)
		return
	}

	details, err := a.adminService.GetRoundDetails(c.Request.Context(), number)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.roundDetails(details))
}

func (a *AdminHandler) verifyDraw(c *gin.Context) {
	number, err := parseUintParam(c, "number")
	if err != nil {
		abortWithBadRequest(c, err)
		return
	}

	verification, err := a.adminService.VerifyDraw(c.Request.Context(), number)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.verification(verification))
}

func (a *AdminHandler) getWalletBalance(c *gin.Context) {
	ctx := c.Request.Context()
	account := c.Param("account")

	balance, err := a.adminService.GetWalletBalance(ctx, account)
	if err != nil {
		abortWithError(c, err)
		return
	}
	escrow, err := a.adminService.GetEscrowBalance(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, balanceResponse{
		Account: account,
		Balance: a.amount(balance),
		Escrow:  a.amount(escrow),
	})
}
