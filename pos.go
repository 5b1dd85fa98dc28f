//go:build !cli
// +build !cli

package main

import (
	"context"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"pos.GO/agent"
	"pos.GO/api"
	_ "pos.GO/api/pos"
	"pos.GO/autosync"
	"pos.GO/cart"
	"pos.GO/catalog"
	"pos.GO/checkout"
	"pos.GO/config"
	"pos.GO/cron"
	"pos.GO/cron/jobs"
	"pos.GO/customer"
	"pos.GO/edge"
	"pos.GO/register"
	"pos.GO/store"
)

func main() {
	config.LoadEnv()
	config.LoadAppConfig()
	cfg := config.AppConfig

	// Initialize Redis
	config.InitRedis()
	redisStatus := "Redis not configured, snapshot mirroring disabled."
	if config.RedisClient != nil {
		err := config.RedisClient.Ping(config.RedisCtx()).Err()
		if err == nil {
			redisStatus = "Redis connection successful."
		} else {
			config.RedisClient = nil // Disable Redis if not reachable
			redisStatus = "Redis configured but not reachable, snapshot mirroring disabled."
		}
	}
	log.Println(redisStatus)

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}
	if config.RedisClient != nil {
		st.SetRedis(config.RedisClient)
	}
	log.Printf("Local store at %s", cfg.StorePath)

	reg := agent.NewRegistry(cfg.OfficialAgentURL, cfg.UnofficialAgentURL)
	ix := catalog.NewIndex()
	loader := catalog.NewLoader(reg, ix, st)

	// Come up on yesterday's catalogs, refresh from the agents right after.
	loader.Restore(st.LoadSnapshot)
	for _, k := range agent.Keys {
		log.Printf("%s catalog: %d items restored", k, ix.Count(k))
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		for k, err := range loader.Reload(ctx, agent.Keys[:]...) {
			if err != nil {
				log.Printf("initial catalog load for %s failed (serving restored snapshot): %v", k, err)
			}
		}
	}()

	crt := cart.New()
	monitor := edge.NewMonitor(reg)
	resolver := customer.NewResolver(reg)
	orch := checkout.NewOrchestrator(reg, crt, resolver, monitor, nil, st)
	orch.PricingCurrency = cfg.PricingCurrency
	orch.ExchangeRate = cfg.ExchangeRate

	session := register.NewSession(register.Deps{
		Agents:   reg,
		Index:    ix,
		Engine:   catalog.NewEngine(ix),
		Loader:   loader,
		Cart:     crt,
		Monitor:  monitor,
		Resolver: resolver,
		Orch:     orch,
		Store:    st,
	})

	scheduler := autosync.NewScheduler(reg, loader, monitor, session)
	session.OnVisible(func() {
		go scheduler.Kick(context.Background())
	})
	monitor.OnRecover(func(k agent.Key) {
		log.Printf("%s edge recovered, kicking catalog refresh", k)
		go scheduler.Kick(context.Background())
	})

	jobs.Bind(monitor, scheduler)
	c := cron.StartCron()
	defer c.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())
	e.Use(middleware.Decompress())

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start).Milliseconds()
			c.Response().Header().Set("X-Request-Duration-ms", strconv.FormatInt(duration, 10))
			return err
		}
	})

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"status":     "ok",
			"official":   ix.Count(agent.Official),
			"unofficial": ix.Count(agent.Unofficial),
		})
	})

	apiGroup := e.Group("/api")
	api.ApplyModules(apiGroup, session)
	api.ApplyRoutes(e, session)

	// ASCII banner on start (random font each run)
	fonts := []string{"banner", "big", "block", "slant", "standard", "small", "shadow", "speed", "thick", "doom", "larry3d", "puffy", "rectangles"}
	fig := figure.NewFigure("POS ->", fonts[rand.Intn(len(fonts))], true)
	fig.Print()

	log.Printf("Register server on :%s (official=%s unofficial=%s)", cfg.Port, cfg.OfficialAgentURL, cfg.UnofficialAgentURL)
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
