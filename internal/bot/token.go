package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/internal/config"
	"github.com/radovskyb/watcher"
	"github.com/rs/zerolog"
)

// watchToken polls path and hands every new token to apply. Unreadable or
// empty files are logged and skipped; the previous token stays in use.
func watchToken(ctx context.Context, path string, interval time.Duration, apply func(string), log zerolog.Logger) error {
	if interval <= 0 {
		interval = time.Second
	}
	w := watcher.New()
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Write, watcher.Create)
	if err := w.Add(path); err != nil {
		return fmt.Errorf("watch token file %s: %w", path, err)
	}

	errc := make(chan error, 1)
	go func() { errc <- w.Start(interval) }()
	w.Wait()
	defer w.Close()

	log.Info().Str("path", path).Msg("watching token file")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.Event:
			token, err := config.ReadSecretFile(path)
			if err != nil {
				log.Warn().Err(err).Str("op", ev.Op.String()).Msg("token file changed but could not be read")
				continue
			}
			apply(token)
		case err := <-w.Error:
			log.Warn().Err(err).Msg("token watcher error")
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("token watcher: %w", err)
			}
			return nil
		case <-w.Closed:
			return nil
		}
	}
}
