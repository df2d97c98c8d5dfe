package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Ratio1/cosmo_sdk_go/internal/metrics"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo"
	"github.com/Ratio1/cosmo_sdk_go/pkg/cosmo/mock"
)

type failConfig struct {
	rate float64
	code int
}

type serverOptions struct {
	latency        time.Duration
	fail           failConfig
	requireSubject bool
	registry       *prometheus.Registry
	log            *logrus.Entry
}

type sandbox struct {
	store *mock.Mock
	log   *logrus.Entry
}

// newRouter exposes store over the Cosmo wire API.
func newRouter(store *mock.Mock, opts serverOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if opts.registry != nil {
		collectors := metrics.NewServerCollectors(opts.registry)
		router.Use(observe(collectors))
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.registry, promhttp.HandlerOpts{})))
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s := &sandbox{store: store, log: opts.log}
	api := router.Group("")
	api.Use(requestLogger(opts.log), injectFaults(opts.latency, opts.fail))
	if opts.requireSubject {
		api.Use(requireSubject())
	}
	api.GET("/", s.datasets)
	api.GET("/:dataset", s.list)
	api.POST("/:dataset", s.create)
	api.GET("/:dataset/:id", s.fetch)
	api.PUT("/:dataset/:id", s.replace)
	api.DELETE("/:dataset/:id", s.remove)
	return router
}

type datasetInfo struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
}

// datasets reports the non-empty datasets and their sizes.
func (s *sandbox) datasets(c *gin.Context) {
	names := s.store.Datasets()
	out := make([]datasetInfo, 0, len(names))
	for _, name := range names {
		out = append(out, datasetInfo{Name: name, Records: s.store.Len(name)})
	}
	c.JSON(http.StatusOK, gin.H{"datasets": out})
}

func (s *sandbox) list(c *gin.Context) {
	data, err := s.store.List(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *sandbox) create(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: read body: %v", cosmo.ErrInvalidArgument, err))
		return
	}
	data, err := s.store.Create(c.Request.Context(), c.Param("dataset"), body)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusCreated, "application/json", data)
}

func (s *sandbox) fetch(c *gin.Context) {
	data, err := s.store.Fetch(c.Request.Context(), c.Param("dataset"), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *sandbox) replace(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: read body: %v", cosmo.ErrInvalidArgument, err))
		return
	}
	data, err := s.store.Replace(c.Request.Context(), c.Param("dataset"), c.Param("id"), body)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *sandbox) remove(c *gin.Context) {
	if err := s.store.Remove(c.Request.Context(), c.Param("dataset"), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *sandbox) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cosmo.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cosmo.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, mock.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError && s.log != nil {
		s.log.WithError(err).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func injectFaults(delay time.Duration, cfg failConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if cfg.rate > 0 && rand.Float64() < cfg.rate {
			status := cfg.code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "failure injected"})
			return
		}
		c.Next()
	}
}

func requireSubject() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader(cosmo.HeaderSubject)) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + cosmo.HeaderSubject + " header"})
			return
		}
		c.Next()
	}
}

func observe(collectors *metrics.Collectors) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collectors.Observe(c.Request.Method, route, c.Writer.Status(), time.Since(start), nil)
	}
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}
		log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"elapsed":    time.Since(start),
			"request_id": c.GetHeader("X-Request-Id"),
			"subject":    c.GetHeader(cosmo.HeaderSubject),
		}).Info("request served")
	}
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return failConfig{}, err
			}
			if val < 0 || val > 1 {
				return failConfig{}, fmt.Errorf("fail rate %v out of range [0,1]", val)
			}
			cfg.rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return failConfig{}, err
			}
			if val < 100 || val > 599 {
				return failConfig{}, fmt.Errorf("fail code %d is not an HTTP status", val)
			}
			cfg.code = val
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}
