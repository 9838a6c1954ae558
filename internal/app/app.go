// Package app assembles the service: config, logging, storage, the local
// dispatch queue, notifiers, the reminder coordinator and the HTTP API.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Suraj-Gov/guri/internal/config"
	"github.com/Suraj-Gov/guri/internal/dispatch"
	"github.com/Suraj-Gov/guri/internal/notifier"
	"github.com/Suraj-Gov/guri/internal/reminder"
	"github.com/Suraj-Gov/guri/internal/server"
	"github.com/Suraj-Gov/guri/internal/storage"
	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	store storage.Store
	queue *dispatch.Local
	coord *reminder.Coordinator
	srv   *server.Server

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := storage.Open(mapStorage(cfg), log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	dcfg, err := mapDispatch(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	queue := dispatch.NewLocal(dcfg, store, log)

	notif, err := buildNotifier(cfg, log)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	coord := reminder.New(reminder.Config{
		CallbackURL: callbackURL(cfg.Server.BaseURL),
	}, store, queue, notif, log)

	scfg, err := mapServer(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	srv := server.New(scfg, store, coord, log)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		queue:   queue,
		coord:   coord,
		srv:     srv,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	// Transactional config reload: a bad edit is rejected before commit.
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.queue.Start(ctx); err != nil {
		return err
	}
	if err := a.srv.Start(ctx); err != nil {
		return err
	}

	// Hot-reload: only logging is re-applied live; storage, dispatch and
	// server settings take effect on restart.
	wctx, cancel := context.WithCancel(context.Background())
	a.watchCancel = cancel
	sub := a.cfgm.Subscribe(4)
	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		if err := a.cfgm.Watch(wctx); err != nil && wctx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer a.watchWG.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-wctx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(mapLogging(cfg))
				a.log.Info("config reloaded")
			}
		}
	}()

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchWG.Wait()
	}
	a.srv.Stop(ctx)
	a.queue.Stop(ctx)
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}

// ---- config mapping ----

func validate(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Server.Secret) == "" {
		return fmt.Errorf("server.secret is required")
	}
	if strings.TrimSpace(cfg.Server.BaseURL) == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	for _, f := range []struct{ path, raw string }{
		{"server.read_timeout", cfg.Server.ReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeout},
		{"server.idle_timeout", cfg.Server.IdleTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"dispatch.sweep_every", cfg.Dispatch.SweepEvery},
		{"dispatch.retry_base", cfg.Dispatch.RetryBase},
		{"dispatch.deliver_timeout", cfg.Dispatch.DeliverTimeout},
	} {
		if _, err := config.ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if cfg.Dispatch.RetryMax < 0 {
		return fmt.Errorf("dispatch.retry_max must be >= 0")
	}
	if cfg.Notifier.Email.Enabled {
		if strings.TrimSpace(cfg.Notifier.Email.Host) == "" || cfg.Notifier.Email.Port <= 0 {
			return fmt.Errorf("notifier.email: host and port are required when enabled")
		}
		if strings.TrimSpace(cfg.Notifier.Email.From) == "" {
			return fmt.Errorf("notifier.email.from is required when enabled")
		}
	}
	if cfg.Notifier.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notifier.Telegram.Token) == "" || cfg.Notifier.Telegram.ChatID == 0 {
			return fmt.Errorf("notifier.telegram: token and chat_id are required when enabled")
		}
	}
	return nil
}

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorage(cfg *config.Config) storage.Config {
	busy, _ := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}

func mapDispatch(cfg *config.Config) (dispatch.Config, error) {
	sweep, err := config.ParseDurationField("dispatch.sweep_every", cfg.Dispatch.SweepEvery)
	if err != nil {
		return dispatch.Config{}, err
	}
	base, err := config.ParseDurationField("dispatch.retry_base", cfg.Dispatch.RetryBase)
	if err != nil {
		return dispatch.Config{}, err
	}
	timeout, err := config.ParseDurationField("dispatch.deliver_timeout", cfg.Dispatch.DeliverTimeout)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		Secret:         cfg.Server.Secret,
		SweepEvery:     sweep,
		RetryMax:       cfg.Dispatch.RetryMax,
		RetryBase:      base,
		DeliverTimeout: timeout,
	}, nil
}

func mapServer(cfg *config.Config) (server.Config, error) {
	read, err := config.ParseDurationOrDefault("server.read_timeout", cfg.Server.ReadTimeout, 10*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("server.write_timeout", cfg.Server.WriteTimeout, 30*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("server.idle_timeout", cfg.Server.IdleTimeout, time.Minute)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Addr:         cfg.Server.Addr,
		Secret:       cfg.Server.Secret,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, nil
}

// buildNotifier assembles the reminder channels: email when enabled, an
// optional Telegram mirror, a Nop when nothing is configured.
func buildNotifier(cfg *config.Config, log logx.Logger) (notifier.Notifier, error) {
	var targets []notifier.Notifier
	if cfg.Notifier.Email.Enabled {
		targets = append(targets, notifier.NewEmail(notifier.EmailConfig{
			Host:       cfg.Notifier.Email.Host,
			Port:       cfg.Notifier.Email.Port,
			Username:   cfg.Notifier.Email.Username,
			Password:   cfg.Notifier.Email.Password,
			From:       cfg.Notifier.Email.From,
			RatePerSec: cfg.Notifier.Email.RatePerSec,
		}, log))
	}
	if cfg.Notifier.Telegram.Enabled {
		tg, err := notifier.NewTelegram(notifier.TelegramConfig{
			Token:  cfg.Notifier.Telegram.Token,
			ChatID: cfg.Notifier.Telegram.ChatID,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("notifier.telegram: %w", err)
		}
		targets = append(targets, tg)
	}
	switch len(targets) {
	case 0:
		log.Warn("no notifier configured; reminders will not be delivered")
		return notifier.Nop{}, nil
	case 1:
		return targets[0], nil
	default:
		return notifier.NewFanout(log, targets...), nil
	}
}

func callbackURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/api/tasks/notify"
}
