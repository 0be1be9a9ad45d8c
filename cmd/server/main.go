package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/flight-seat-reservation/internal/catalog"
	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/console"
	"github.com/iliyamo/flight-seat-reservation/internal/engine"
	"github.com/iliyamo/flight-seat-reservation/internal/events"
	"github.com/iliyamo/flight-seat-reservation/internal/handler"
	"github.com/iliyamo/flight-seat-reservation/internal/ledger"
	"github.com/iliyamo/flight-seat-reservation/internal/logging"
	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
	"github.com/iliyamo/flight-seat-reservation/internal/mirror"
	"github.com/iliyamo/flight-seat-reservation/internal/router"
	"github.com/iliyamo/flight-seat-reservation/internal/server"
	"github.com/iliyamo/flight-seat-reservation/internal/txlog"
	"github.com/iliyamo/flight-seat-reservation/internal/utils"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, flush, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}
	err = run(cfg, logger)
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
	flush()
	if err != nil {
		os.Exit(1)
	}
}

// hashPassword reads a password from stdin and prints the bcrypt hash to
// put in ADMIN_PASSWORD_HASH.
func hashPassword() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read password: %w", err)
	}
	hash, err := utils.HashPassword(strings.TrimRight(line, "\r\n"), utils.OperatorPasswordCost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handleSignal(cancel, logger)

	cat, err := loadCatalog(cfg, logger)
	if err != nil {
		return err
	}
	led, err := loadLedger(cfg, logger)
	if err != nil {
		return err
	}
	journal, err := txlog.Open(cfg.TxLogPath)
	if err != nil {
		return fmt.Errorf("open transaction log: %w", err)
	}
	defer journal.Close()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else if cfg.Redis.Addr != "" {
		logger.Warn("redis unavailable, invoice mirror and login rate limit disabled", zap.String("addr", cfg.Redis.Addr))
	}

	opts := []engine.Option{
		engine.WithLogger(logger.Named("engine")),
		engine.WithSnapshots(cfg.CatalogSnapshot, cfg.InvoicePath),
	}
	dispatcher, err := newDispatcher(cfg.Events, logger.Named("events"))
	if err != nil {
		return err
	}
	if dispatcher != nil {
		defer dispatcher.Close()
		opts = append(opts, engine.WithObserver(dispatcher))
	}
	if rdb != nil {
		opts = append(opts, engine.WithObserver(mirror.NewInvoiceMirror(rdb, cfg.Redis.InvoiceKey, logger.Named("mirror"))))
	}
	eng := engine.New(cat, led, journal, opts...)

	if cfg.Replay {
		if _, err := eng.Recover(ctx); err != nil {
			return fmt.Errorf("replay %s: %w", cfg.TxLogPath, err)
		}
	} else {
		logger.Info("replay disabled, starting from snapshot state")
	}

	h := server.NewHandler(eng, logger.Named("handler"))
	var srv server.Server
	switch cfg.Transport {
	case "udp":
		srv, err = server.ListenUDP(cfg.ListenAddr(), h, logger)
	default:
		srv, err = server.ListenTCP(cfg.ListenAddr(), h, logger)
	}
	if err != nil {
		return fmt.Errorf("listen %s %s: %w", cfg.Transport, cfg.ListenAddr(), err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })

	if cfg.Admin.Enabled() {
		e := newAdminServer(cfg, eng, rdb)
		g.Go(func() error {
			logger.Info("admin API listening", zap.String("addr", cfg.Admin.Addr))
			if err := e.Start(cfg.Admin.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin API: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return e.Shutdown(sctx)
		})
	}

	if cfg.Console {
		// Not part of the group: a read on stdin cannot be interrupted.
		go func() {
			err := console.New(eng, os.Stdout).Run(gctx, os.Stdin)
			if errors.Is(err, console.ErrExit) {
				logger.Info("shutdown requested from console")
				cancel()
			} else if err != nil && gctx.Err() == nil {
				logger.Warn("console stopped", zap.Error(err))
			}
		}()
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// loadCatalog reads the flight catalog.  With replay disabled the last
// snapshot, when present, stands in for it.
func loadCatalog(cfg config.Config, logger *zap.Logger) (*catalog.Store, error) {
	path := cfg.CatalogPath
	if !cfg.Replay && cfg.CatalogSnapshot != "" {
		if _, err := os.Stat(cfg.CatalogSnapshot); err == nil {
			path = cfg.CatalogSnapshot
		}
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded", zap.String("path", path), zap.Int("flights", cat.Len()))
	return cat, nil
}

// loadLedger starts from an empty ledger when the log is replayed.  Without
// replay the invoice snapshot is the only record of the balances.
func loadLedger(cfg config.Config, logger *zap.Logger) (*ledger.Ledger, error) {
	if cfg.Replay {
		return ledger.New(cfg.MaxAgencies), nil
	}
	led, err := ledger.Load(cfg.InvoicePath, cfg.MaxAgencies)
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	logger.Info("invoices loaded", zap.String("path", cfg.InvoicePath), zap.Int("agencies", len(led.Balances())))
	return led, nil
}

func newDispatcher(ec config.EventsConfig, logger *zap.Logger) (*events.Dispatcher, error) {
	var pub events.Publisher
	switch ec.Backend {
	case "", "none":
		return nil, nil
	case "amqp":
		pub = events.NewAMQPPublisher(ec.AMQPURL, ec.Queue)
	case "kafka":
		pub = events.NewKafkaPublisher(ec.KafkaBrokers, ec.KafkaTopic)
	default:
		return nil, fmt.Errorf("unknown events backend %q", ec.Backend)
	}
	logger.Info("publishing transaction events", zap.String("backend", ec.Backend))
	return events.NewDispatcher(pub, ec.Buffer, logger), nil
}

func newAdminServer(cfg config.Config, eng *engine.Engine, rdb *redis.Client) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.RegisterRoutes(e)
	auth := handler.NewAuthHandler(cfg.Admin.JWTSecret, cfg.Admin.PasswordHash, cfg.Admin.TokenTTL())
	router.RegisterAuth(e, auth, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterAdmin(e, handler.NewAdminHandler(eng), cfg.Admin.JWTSecret)
	return e
}

func handleSignal(cancel context.CancelFunc, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		sig := <-sigCh
		logger.Info("got signal, exiting", zap.Stringer("signal", sig))
		cancel()
	}()
}
