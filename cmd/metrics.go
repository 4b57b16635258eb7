// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/panelbridge/pkg/telemetry"
)

type statusVar struct {
	Name      string    `json:"name"`
	Value     *float64  `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type statusResponse struct {
	Connected bool        `json:"connected"`
	Vars      []statusVar `json:"vars"`
}

// newStatusRouter serves /metrics from reg and /status from tel
func newStatusRouter(reg prometheus.Gatherer, tel *telemetry.Bridge) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/status", func(c *gin.Context) {
		resp := statusResponse{Connected: tel.Connected(), Vars: []statusVar{}}
		for _, v := range tel.Snapshot() {
			sv := statusVar{Name: v.Name, UpdatedAt: v.UpdatedAt}
			if v.Valid {
				value := v.Value
				sv.Value = &value
			}
			resp.Vars = append(resp.Vars, sv)
		}
		c.JSON(http.StatusOK, resp)
	})
	return r
}

// serveMetrics starts the status server and returns its shutdown function
func serveMetrics(addr string, reg prometheus.Gatherer, tel *telemetry.Bridge) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:           newStatusRouter(reg, tel),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
