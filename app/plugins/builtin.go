package plugins

import (
	"context"
	"time"

	"github.com/kilianp07/rescue/config"
	"github.com/kilianp07/rescue/core/events"
	"github.com/kilianp07/rescue/core/factory"
	"github.com/kilianp07/rescue/core/journal"
	"github.com/kilianp07/rescue/core/store"
	"github.com/kilianp07/rescue/infra/notify/local"
	"github.com/kilianp07/rescue/infra/notify/mqtt"
	"github.com/kilianp07/rescue/infra/notify/redis"
	"github.com/kilianp07/rescue/infra/store/sqldb"
)

// dialTimeout bounds backend connection checks at startup.
const dialTimeout = 10 * time.Second

func init() {
	_ = RegisterStore("memory", func(map[string]any) (store.Store, error) {
		return store.NewMemoryStore(), nil
	})
	_ = RegisterStore("sqlite", func(conf map[string]any) (store.Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "rescue.db"
		}
		return sqldb.OpenSQLite(c.Path)
	})
	_ = RegisterStore("postgres", func(conf map[string]any) (store.Store, error) {
		var c struct {
			DSN string `json:"dsn"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		return sqldb.OpenPostgres(ctx, c.DSN)
	})

	_ = RegisterNotifier("local", func(conf map[string]any) (events.Publisher, error) {
		var c local.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return local.New(c), nil
	})
	_ = RegisterNotifier("mqtt", func(conf map[string]any) (events.Publisher, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return mqtt.NewPublisher(c)
	})
	_ = RegisterNotifier("redis", func(conf map[string]any) (events.Publisher, error) {
		var c redis.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		return redis.NewPublisher(ctx, c)
	})

	_ = RegisterJournalStore("jsonl", func(conf map[string]any) (journal.Store, error) {
		var jc config.JournalConfig
		if err := factory.Decode(conf, &jc); err != nil {
			return nil, err
		}
		return journal.NewJSONLStore(jc.Path, jc.MaxSizeMB, jc.MaxBackups, jc.MaxAgeDays)
	})
	_ = RegisterJournalStore("sqlite", func(conf map[string]any) (journal.Store, error) {
		var jc config.JournalConfig
		if err := factory.Decode(conf, &jc); err != nil {
			return nil, err
		}
		return journal.NewSQLiteStore(jc.Path)
	})
}

// JournalModule turns the journal section into a factory module. It
// returns false when journaling is disabled.
func JournalModule(jc config.JournalConfig) (factory.ModuleConfig, bool) {
	if jc.Backend == "none" {
		return factory.ModuleConfig{}, false
	}
	return factory.ModuleConfig{Type: jc.Backend, Conf: map[string]any{
		"path":         jc.Path,
		"max_size_mb":  jc.MaxSizeMB,
		"max_backups":  jc.MaxBackups,
		"max_age_days": jc.MaxAgeDays,
	}}, true
}
