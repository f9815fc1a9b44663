package replay

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/compression"
	"github.com/ajitpratap0/feaout/pkg/errors"
)

// FollowOptions tunes a follow
type FollowOptions struct {
	// IdleTimeout ends the follow when the trace has not grown for this
	// long; zero follows until the context is cancelled
	IdleTimeout time.Duration
}

// Follow replays rd and then keeps replaying lines appended to path while a
// solver writes it. It returns when ctx is done, when the trace is removed
// or renamed, or after IdleTimeout without new data.
func Follow(ctx context.Context, r *Replayer, rd *Reader, path string, opts FollowOptions) error {
	if compression.FromExtension(path) != compression.None {
		return errors.New(errors.ErrorTypeConfig, "compressed traces cannot be followed").
			WithDetail("path", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create trace watcher")
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to watch trace").
			WithDetail("path", path)
	}

	rd.follow = true
	if err := r.Drain(ctx, rd); err != nil && ctx.Err() == nil {
		return err
	}

	var idle <-chan time.Time
	var timer *time.Timer
	if opts.IdleTimeout > 0 {
		timer = time.NewTimer(opts.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	r.logger.Info("following trace", zap.String("path", path))
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-idle:
			r.logger.Info("trace idle, stopping", zap.Duration("idle", opts.IdleTimeout))
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Op&fsnotify.Write != 0:
				if err := r.Drain(ctx, rd); err != nil && ctx.Err() == nil {
					return err
				}
				if timer != nil {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(opts.IdleTimeout)
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				r.logger.Info("trace removed, stopping", zap.String("path", event.Name))
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, errors.ErrorTypeFile, "trace watcher failed")
		}
	}
}
