package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/acme/autocert"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/bootstrap"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/config"
	apirouter "github.com/gunhoflash/Project-ComputerGraphics/internal/platform/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	gin.SetMode(cfg.GinMode)

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("snapshot store init: %v", err)
	}
	defer stores.Close()
	log.Printf("snapshot store: %s", stores.Description)

	svc := districtstats.NewService(bootstrap.NewLoader(cfg), stores.Snapshots, stores.Runs, nil)
	if err := svc.Restore(ctx); err != nil && !errors.Is(err, districtstats.ErrNoSnapshot) {
		log.Printf("restore snapshot: %v", err)
	}
	if _, err := svc.Start(districtstats.TriggerStartup); err != nil {
		log.Printf("startup refresh: %v", err)
	}

	if cfg.RefreshCron != "" {
		sched, err := districtstats.StartSchedule(cfg.RefreshCron, svc, func(msg string) { log.Print(msg) })
		if err != nil {
			log.Fatalf("refresh schedule: %v", err)
		}
		defer sched.Stop()
		log.Printf("refresh scheduled: %s", cfg.RefreshCron)
	}

	if cfg.WatchDataDir {
		if info, err := os.Stat(cfg.DataDir); err == nil && info.IsDir() {
			if _, err := districtstats.WatchDir(ctx, cfg.DataDir, 0, svc, func(msg string) { log.Print(msg) }); err != nil {
				log.Printf("watch %s: %v", cfg.DataDir, err)
			} else {
				log.Printf("watching %s for dataset changes", cfg.DataDir)
			}
		} else {
			log.Printf("data dir %s not found, file watching disabled", cfg.DataDir)
		}
	}

	router := apirouter.NewRouter(svc, apirouter.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		CacheTTL:       cfg.CacheTTL,
		PublicURL:      cfg.PublicURL,
	})

	var servers []*http.Server
	if cfg.Domain != "" {
		servers = domainServers(cfg.Domain, router)
		log.Printf("serving https://%s with Let's Encrypt certificates", cfg.Domain)
	} else {
		servers = []*http.Server{{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}}
		log.Printf("server listening on :%s", cfg.Port)
	}

	for _, srv := range servers {
		go func(srv *http.Server) {
			var err error
			if srv.TLSConfig != nil {
				err = srv.ListenAndServeTLS("", "")
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && err != http.ErrServerClosed {
				log.Fatalf("server %s error: %v", srv.Addr, err)
			}
		}(srv)
	}

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server %s shutdown error: %v", srv.Addr, err)
		}
	}
	log.Println("server exited")
}

// domainServers builds the :443 server with certificates from Let's Encrypt and
// the :80 server that answers ACME challenges and redirects everything else.
func domainServers(domain string, handler http.Handler) []*http.Server {
	certMgr := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache("certs"),
		HostPolicy: func(_ context.Context, host string) error {
			if host == domain || host == "www."+domain {
				return nil
			}
			return errors.New("acme/autocert: host not configured")
		},
	}

	redirect := http.NewServeMux()
	redirect.Handle("/.well-known/acme-challenge/", certMgr.HTTPHandler(nil))
	redirect.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		host := strings.Split(r.Host, ":")[0]
		http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
	})

	tlsConfig := certMgr.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	return []*http.Server{
		{
			Addr:              ":443",
			Handler:           handler,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
		},
		{
			Addr:              ":80",
			Handler:           redirect,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}
