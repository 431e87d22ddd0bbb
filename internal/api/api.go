package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/errors"
	"github.com/mutaician/p2p-coin-flip/internal/event"
	"github.com/mutaician/p2p-coin-flip/internal/participant"
	"github.com/mutaician/p2p-coin-flip/internal/session"
)

var pingInterval = 15 * time.Second

type Config struct {
	Router      gin.IRouter
	EventBus    *event.Bus
	Participant *participant.Participant
	Session     *session.Service
	Stream      *Stream

	// Redis, when set, receives a notification per player for every session
	// event this node publishes.
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// API is the HTTP surface of one local participant.
type API struct {
	p      *participant.Participant
	ss     *session.Service
	stream *Stream

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		p:      c.Participant,
		ss:     c.Session,
		stream: c.Stream,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	v1 := c.Router.Group("/v1")
	v1.POST("/sessions", a.CreateSession)
	v1.GET("/sessions", a.ListOpenSessions)
	v1.GET("/sessions/:id", a.GetSession)
	v1.POST("/sessions/:id/join", a.JoinSession)
	v1.POST("/flip", a.StartFlip)
	v1.POST("/cancel", a.CancelSession)
	v1.POST("/reset", a.Reset)
	v1.GET("/current", a.Current)
	v1.GET("/winners", a.RecentWinners)
	v1.GET("/events", a.Events)

	if a.redis != nil && c.EventBus != nil {
		c.EventBus.Subscribe(func(ctx context.Context, e event.Event) error {
			return a.PublishSessionEvent(ctx, e)
		}, domain.SessionEventNames...)
	}

	return a
}

type CreateSessionRequest struct {
	Name   string `json:"name"`
	Bet    int64  `json:"bet"`
	Choice string `json:"choice"`
}

func (a *API) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.Validation("invalid request body: %v", err))
		return
	}

	choice, err := participant.ParseChoice(req.Choice)
	if err != nil {
		abort(c, err)
		return
	}

	ss, err := a.p.CreateSession(c.Request.Context(), req.Name, req.Bet, choice)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, newSession(*ss))
}

type JoinSessionRequest struct {
	Name string `json:"name"`
}

func (a *API) JoinSession(c *gin.Context) {
	var req JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.Validation("invalid request body: %v", err))
		return
	}

	ss, err := a.p.JoinSession(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, newSession(*ss))
}

func (a *API) StartFlip(c *gin.Context) {
	ss, err := a.p.StartFlip(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, newSession(*ss))
}

func (a *API) CancelSession(c *gin.Context) {
	ss, err := a.p.CancelSession(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, newSession(*ss))
}

func (a *API) Reset(c *gin.Context) {
	a.p.Reset()
	c.Status(http.StatusNoContent)
}

func (a *API) GetSession(c *gin.Context) {
	id, err := participant.ValidateSessionID(c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}

	ss, err := a.ss.GetSession(c.Request.Context(), session.GetSessionRequest{SessionID: id})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, newSession(*ss))
}

func (a *API) Current(c *gin.Context) {
	c.JSON(http.StatusOK, newCurrent(a.p.Current()))
}

func (a *API) ListOpenSessions(c *gin.Context) {
	open, err := a.p.ListOpenSessions(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, newOpenSessions(open))
}

func (a *API) RecentWinners(c *gin.Context) {
	var limit int
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			abort(c, errors.Validation("limit must be a positive integer: limit=%q", raw))
			return
		}
		limit = n
	}

	winners, err := a.p.RecentWinners(c.Request.Context(), limit)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, newWinners(winners))
}

// Events streams every snapshot of the current session as server-sent events.
func (a *API) Events(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for _, ev := range a.stream.ReplayAfter(c.GetHeader("Last-Event-ID")) {
		writeEvent(c, ev)
	}
	c.Writer.Flush()

	ch := a.stream.Subscribe()
	defer a.stream.Unsubscribe(ch)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(c, ev)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"ts": time.Now().UnixMilli()})
			c.Writer.Flush()
		}
	}
}

func writeEvent(c *gin.Context, ev StreamEvent) {
	c.Render(-1, sse.Event{Id: ev.ID, Event: ev.Event, Data: ev.Data})
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Kind == errors.KindInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
