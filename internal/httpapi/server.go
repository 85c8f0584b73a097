package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"horse.fit/feedsift/internal/db"
	"horse.fit/feedsift/internal/dedup"
	"horse.fit/feedsift/internal/globaltime"
	"horse.fit/feedsift/internal/ingest"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// APITokenHash is the bcrypt hash mutating routes check bearer tokens
	// against. Empty disables the check.
	APITokenHash       string
	CORSAllowedOrigins []string
}

// feedStore is the storage the handlers use. *db.Pool implements it.
type feedStore interface {
	CreateFeed(ctx context.Context, in db.CreateFeedInput) (*db.FeedRecord, error)
	GetFeed(ctx context.Context, feedUUID string) (*db.FeedRecord, error)
	ListFeeds(ctx context.Context, limit int) ([]db.FeedRecord, error)
	UpdateFeedFilter(ctx context.Context, feedUUID string, filterQuery *string, expression json.RawMessage) (*db.FeedRecord, error)
	EditFeedExpression(ctx context.Context, feedUUID string, edit db.ExpressionEdit) (*db.FeedRecord, error)
	GetFeedItem(ctx context.Context, feedUUID, itemUUID string) (*db.FeedItemRecord, error)
	ListFeedItems(ctx context.Context, feedUUID string, opts db.ListFeedItemsOptions) ([]db.FeedItemRecord, error)
	MarkItemRead(ctx context.Context, feedUUID, itemUUID string, includeDuplicates bool) (int64, error)
}

type itemIngester interface {
	IngestPayload(ctx context.Context, feedUUID string, payload json.RawMessage) (ingest.Result, error)
}

type Server struct {
	store      feedStore
	ingester   itemIngester
	classifier dedup.Classifier
	logger     zerolog.Logger
	opts       Options
}

func NewServer(store feedStore, ingester itemIngester, classifier dedup.Classifier, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &Server{
		store:      store,
		ingester:   ingester,
		classifier: classifier,
		logger:     logger,
		opts: Options{
			Host:               host,
			Port:               port,
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			ShutdownTimeout:    shutdownTimeout,
			APITokenHash:       strings.TrimSpace(opts.APITokenHash),
			CORSAllowedOrigins: origins,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil || s.ingester == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.newEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().
		Str("addr", addr).
		Bool("auth", s.opts.APITokenHash != "").
		Msg("feedsift api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("feedsift api server stopped")
	return nil
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       3600,
	}))
	e.Use(s.observeRequests())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)

	api.POST("/query/tokenize", s.handleTokenize)
	api.POST("/query/serialize", s.handleSerialize)
	api.POST("/query/expression", s.handleQueryExpression)
	api.POST("/expressions/validate", s.handleValidateExpression)
	api.POST("/dedup/compare", s.handleCompare)

	api.GET("/feeds", s.handleListFeeds)
	api.GET("/feeds/:feed_id", s.handleGetFeed)
	api.GET("/feeds/:feed_id/items", s.handleListItems)
	api.GET("/feeds/:feed_id/items/:item_id", s.handleGetItem)

	requireToken := s.requireToken()
	api.POST("/feeds", s.handleCreateFeed, requireToken)
	api.PUT("/feeds/:feed_id/expression", s.handlePutExpression, requireToken)
	api.PUT("/feeds/:feed_id/query", s.handlePutQuery, requireToken)
	api.POST("/feeds/:feed_id/expression/placeholder", s.handleAddPlaceholder, requireToken)
	api.PUT("/feeds/:feed_id/expression/nodes/:node_id/expr", s.handleAttachNode, requireToken)
	api.PUT("/feeds/:feed_id/expression/nodes/:node_id", s.handleReplaceNode, requireToken)
	api.DELETE("/feeds/:feed_id/expression/nodes/:node_id", s.handleRemoveNode, requireToken)
	api.POST("/feeds/:feed_id/items", s.handleIngestItem, requireToken)
	api.POST("/feeds/:feed_id/items/:item_id/read", s.handleMarkRead, requireToken)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	isAPI := strings.HasPrefix(c.Request().URL.Path, "/api/")
	if isAPI {
		if status >= 500 {
			_ = internalError(c, "Internal server error")
			return
		}
		_ = fail(c, status, message, nil)
		return
	}

	_ = c.String(status, message)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "feedsift",
		"time":    globaltime.UTC(),
		"dedup": map[string]any{
			"similarity_threshold":          s.classifier.MaxDistance,
			"similarity_window_millisecond": s.classifier.Window.Milliseconds(),
		},
	})
}

// decodeJSONBody decodes a JSON request body into dst, rejecting unknown
// fields and trailing data.
func decodeJSONBody(c echo.Context, dst any) error {
	body := c.Request().Body
	if body == nil {
		return fmt.Errorf("request body is required")
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid JSON body: trailing data")
	}
	return nil
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parseBool(raw string) (bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(trimmed)
	if err != nil {
		return false, fmt.Errorf("must be a boolean")
	}
	return value, nil
}
