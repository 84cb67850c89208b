package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nhle/taskhub/internal/credential"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
	"github.com/nhle/taskhub/internal/source/email"
	"github.com/nhle/taskhub/internal/source/httpapi"
	"github.com/nhle/taskhub/internal/source/memory"
	"github.com/nhle/taskhub/internal/store"
)

// newLogger builds a console logger writing to path at the configured
// level. The returned AtomicLevel can be changed while running.
func newLogger(level string, verbose bool, path string) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("log.level: %w", err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	atom := zap.NewAtomicLevelAt(lvl)

	if path != "stderr" && path != "stdout" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, zap.AtomicLevel{}, fmt.Errorf("creating log directory: %w", err)
		}
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = atom
	cfg.Development = false
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	log, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("building logger: %w", err)
	}
	return log, atom, nil
}

// openBackend connects to the backend selected in cfg. The returned
// closer may be nil.
func openBackend(cfg *model.AppConfig, log *zap.Logger) (source.Backend, func() error, error) {
	switch cfg.Backend.Kind {
	case model.BackendSQLite:
		path := cfg.Backend.DBPath
		if path != store.MemoryPath {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		s, err := store.NewSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("opened sqlite backend", zap.String("path", path))
		return s, s.Close, nil

	case model.BackendHTTP:
		token, err := lookupOptional(credential.KeyAPIToken)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("using http backend", zap.String("base_url", cfg.Backend.BaseURL))
		return httpapi.NewAdapter(cfg.Backend.BaseURL, token, httpapi.WithLogger(log)), nil, nil

	case model.BackendMemory:
		return memory.New(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
}

// notificationSource returns the IMAP inbox when it is enabled, or nil to
// read notifications from the backend.
func notificationSource(cfg *model.AppConfig, log *zap.Logger) (source.NotificationSource, error) {
	ec := cfg.Notifications.Email
	if !ec.Enabled {
		return nil, nil
	}
	if ec.Host == "" || ec.Username == "" {
		return nil, errors.New("notifications.email requires host and username")
	}
	password, err := credential.Lookup(credential.KeyEmailPassword)
	if err != nil {
		return nil, fmt.Errorf("email notifications: %w", err)
	}
	log.Debug("reading notifications from IMAP", zap.String("host", ec.Host))
	return email.NewAdapter(ec.Host, ec.Port, ec.Username, password, ec.TLS), nil
}

// lookupOptional returns "" when the credential is simply absent.
func lookupOptional(key string) (string, error) {
	v, err := credential.Lookup(key)
	if errors.Is(err, credential.ErrNotFound) {
		return "", nil
	}
	return v, err
}
