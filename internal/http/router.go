/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "time"

    "github.com/gin-contrib/cors"
    "github.com/gin-gonic/gin"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
    "github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc any) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context) {
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
    })
    r.Use(cors.New(cors.Config{
        AllowOrigins:     cfg.AllowedOrigins,
        AllowMethods:     []string{"GET", "POST", "OPTIONS"},
        AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
        AllowCredentials: true,
        MaxAge:           12 * time.Hour,
    }))

    h := NewHandlers(cfg, log, svc)

    r.GET("/health", h.Health)

    bugs := r.Group("/bugs")
    bugs.GET("", h.ListBugs)
    bugs.POST("/sync", h.SyncBugs)
    bugs.POST("/triage/batch", h.BatchTriage)
    bugs.GET("/triage/status", h.TriageStatus)
    bugs.GET("/statuses/list", h.ListStatuses)
    bugs.GET("/priorities/list", h.ListPriorities)
    bugs.GET("/:key", h.GetBug)
    bugs.POST("/:key/triage", h.TriageBug)
    bugs.GET("/:key/commits", h.BugCommits)

    analytics := r.Group("/analytics")
    analytics.GET("/overview", h.Overview)
    analytics.GET("/trends", h.Trends)
    analytics.GET("/resolution-times", h.ResolutionTimes)

    gh := r.Group("/github")
    gh.POST("/sync", h.SyncCommits)
    gh.GET("/commits", h.ListCommits)
    gh.GET("/status", h.GitHubStatus)

    return r
}
