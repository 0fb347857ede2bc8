package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arkade-os/lotteryd/internal/core/application"
	"github.com/arkade-os/lotteryd/pkg/amount"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type buyTicketRequest struct {
	Amount string `json:"amount"`
}

type Handler struct {
	svc application.Service
	formatter

	eventsListenerHandler *broker[*eventMessage]
}

func NewHandler(svc application.Service, decimals int32) *Handler {
	h := &Handler{
		svc:                   svc,
		formatter:             formatter{decimals},
		eventsListenerHandler: newBroker[*eventMessage](),
	}

	go h.listenToEvents()

	return h
}

func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/info", h.getInfo)
	g.POST("/tickets", h.buyTicket)
	g.GET("/tickets/:id", h.getTicket)
	g.GET("/accounts/:account/tickets", h.getAccountTickets)
	g.GET("/accounts/:account/tickets/:index", h.getTicketOfOwnerByIndex)
	g.POST("/draw", h.drawLottery)
	g.GET("/events", h.getEventStream)
}

func (h *Handler) getInfo(c *gin.Context) {
	info, err := h.svc.GetLotteryInfo(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.info(info))
}

func (h *Handler) buyTicket(c *gin.Context) {
	buyer, err := parseAccount(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req buyTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBadRequest(c, fmt.Errorf("invalid request body: %s", err))
		return
	}
	paid, err := amount.Parse(req.Amount, h.decimals)
	if err != nil {
		abortWithBadRequest(c, err)
		return
	}

	ticket, err := h.svc.BuyTicket(c.Request.Context(), buyer, paid)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.ticket(ticket))
}

func (h *Handler) getTicket(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		abortWithBadRequest(c, err)
		return
	}

	ticket, err := h.svc.GetTicket(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ticket(ticket))
}

func (h *Handler) getAccountTickets(c *gin.Context) {
	tickets, err := h.svc.GetAccountTickets(c.Request.Context(), c.Param("account"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.accountTickets(tickets))
}

func (h *Handler) getTicketOfOwnerByIndex(c *gin.Context) {
	index, err := parseUintParam(c, "index")
	if err != nil {
		abortWithBadRequest(c, err)
		return
	}

	ticket, err := h.svc.GetTicketOfOwnerByIndex(
		c.Request.Context(), c.Param("account"), index,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ticket(ticket))
}

// drawLottery is shared by the public and the admin routes, the draw policy
// decides whether the caller is allowed.
func (h *Handler) drawLottery(c *gin.Context) {
	caller, err := parseAccount(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	result, err := h.svc.DrawLottery(c.Request.Context(), caller)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.draw(result))
}

func (h *Handler) startRound(c *gin.Context) {
	caller, err := parseAccount(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	round, err := h.svc.StartRound(c.Request.Context(), caller)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.round(round))
}

func (h *Handler) getEventStream(c *gin.Context) {
	listener := newListener[*eventMessage](uuid.NewString(), parseTopics(c))

	h.eventsListenerHandler.pushListener(listener)
	defer h.eventsListenerHandler.removeListener(listener.id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	// Let the client know the subscription is live before the first event.
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-listener.ch:
			data, err := json.Marshal(ev)
			if err != nil {
				log.WithError(err).Warn("failed to encode event")
				return true
			}
			c.SSEvent(ev.Type, string(data))
			return true
		}
	})
}

// listenToEvents forwards events from the application layer to the set of
// listeners, in the order they were committed.
func (h *Handler) listenToEvents() {
	channel := h.svc.GetEventsChannel(context.Background())
	for events := range channel {
		if !h.eventsListenerHandler.hasListeners() {
			continue
		}

		for _, event := range events {
			msg, ok := h.event(event)
			if !ok {
				continue
			}
			delivered, dropped := h.eventsListenerHandler.publish(msg, msg.Type)
			log.Debugf("forwarded %s event to %d listeners", msg.Type, delivered)
			if dropped > 0 {
				log.Warnf("%d slow listeners missed %s event", dropped, msg.Type)
			}
		}
	}
}
