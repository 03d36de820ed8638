package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kmcneish/go-studio-server/internal/config"
	"github.com/kmcneish/go-studio-server/providers/openai"
	"github.com/kmcneish/go-studio-server/providers/perplexity"
	"github.com/kmcneish/go-studio-server/server"
	"github.com/kmcneish/go-studio-server/sessions"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("godotenv.Load: %w", err)
	}

	c := config.New()
	displayAppname(c.GetAppName())

	sessionRepo, closeRepo, err := newSessionRepo(c)
	if err != nil {
		return fmt.Errorf("newSessionRepo: %w", err)
	}
	defer closeRepo()

	metrics := server.NewMetrics(prometheus.DefaultRegisterer)

	srv, err := server.New(c, sessionRepo, newOpenAIService(c, metrics), newResearchService(c, metrics), metrics)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	sweeper := server.StartSessionSweeper(sessionRepo)
	defer sweeper.Stop()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// newSessionRepo picks the session store from config: "sqlite" persists
// under the data folder, anything else stays in memory.
func newSessionRepo(c config.Config) (sessions.Repo, func(), error) {
	if c.GetSessionStore() != "sqlite" {
		return sessions.NewInMemoryRepo(), func() {}, nil
	}

	if err := os.MkdirAll(c.GetDataFolder(), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data folder: %w", err)
	}
	repo, err := sessions.NewSQLiteRepo(filepath.Join(c.GetDataFolder(), "sessions.db"))
	if err != nil {
		return nil, nil, err
	}
	return repo, func() {
		if err := repo.Close(); err != nil {
			log.Printf("Failed to close session store: %v\n", err)
		}
	}, nil
}

func newOpenAIService(c config.Config, metrics *server.Metrics) server.OpenAIService {
	key := c.GetOpenAIAPIKey()
	if key == "" {
		log.Printf("OpenAI API key not set, generation endpoints disabled\n")
		return nil
	}
	return openai.New(openai.Config{
		APIKey:        key,
		Model:         c.GetOpenAIModel(),
		Timeout:       c.GetGenerateTimeout(),
		StatusTimeout: c.GetStatusTimeout(),
		VideoTimeout:  c.GetVideoTimeout(),
		MaxRetries:    c.GetMaxRetries(),
		CacheTTL:      c.GetModelCacheTTL(),
		OnRetry:       func(int) { metrics.UpstreamRetries.Inc() },
	})
}

func newResearchService(c config.Config, metrics *server.Metrics) server.ResearchService {
	key := c.GetPerplexityAPIKey()
	if key == "" {
		log.Printf("Perplexity API key not set, research endpoint disabled\n")
		return nil
	}
	return perplexity.New(perplexity.Config{
		APIKey:     key,
		Model:      c.GetPerplexityModel(),
		Timeout:    c.GetGenerateTimeout(),
		MaxRetries: c.GetMaxRetries(),
		OnRetry:    func(int) { metrics.UpstreamRetries.Inc() },
	})
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
