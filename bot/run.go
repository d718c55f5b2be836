package bot

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nyabot/nyabot/api"
	"github.com/nyabot/nyabot/errors"
)

// RunFrontend starts the bot and blocks until the process receives an
// interrupt, the context is cancelled, or the gateway connection is
// lost. Connection loss is treated as fatal: the bot shuts down
// cleanly instead of limping on without a gateway.
func (c *Client) RunFrontend(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case s := <-sig:
		c.log.Infow("Signal received", "signal", s.String())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.router.Done():
		return errors.ErrConnectionClosed
	}
}

// RunBackend starts the bot in a background goroutine and returns an
// API handle once the gateway reports its lifecycle connect event. The
// embedding program keeps running; Shutdown stops the bot.
func (c *Client) RunBackend(ctx context.Context) (*api.Caller, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}

	select {
	case <-c.startup:
		return c.caller, nil
	case <-time.After(startupTimeout):
		c.Shutdown(context.Background())
		return nil, errors.Newf("gateway sent no lifecycle event within %s", startupTimeout)
	case <-ctx.Done():
		c.Shutdown(context.Background())
		return nil, ctx.Err()
	case <-c.router.Done():
		c.Shutdown(context.Background())
		return nil, errors.ErrConnectionClosed
	}
}
