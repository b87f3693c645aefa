package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/pauliuspaskevicius/libARUtils/config"
	"github.com/pauliuspaskevicius/libARUtils/logger"
	"github.com/pauliuspaskevicius/libARUtils/perfmetrics"
	"github.com/pauliuspaskevicius/libARUtils/terminal"
	"github.com/pauliuspaskevicius/libARUtils/transfer"
	"github.com/pauliuspaskevicius/libARUtils/transport"
)

// app is one connected client with its terminal helpers.
type app struct {
	cfg  *config.Config
	log  *zap.Logger
	out  io.Writer
	conn *transfer.Connection

	theme     *terminal.ThemeManager
	table     *terminal.TableFormatter
	completer *terminal.CommandCompleter
}

// openApp loads the configuration named by the flags, asks for a missing
// password and connects.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadConfigFromFilepath(cfgFileFlag)
	if err != nil {
		return nil, err
	}
	cfg.SetServer(addressFlag, userFlag)
	if cfg.Server.Password == "" && cfg.Server.Username != "anonymous" {
		if cfg.Server.Password, err = readPassword(cmd.ErrOrStderr(), cfg.Server.Username); err != nil {
			return nil, err
		}
	}

	log, err := logger.SetUpLog(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a, err := newApp(cfg, log, cmd.OutOrStdout())
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

func readPassword(prompt io.Writer, user string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprintf(prompt, "Password for %s: ", user)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func newApp(cfg *config.Config, log *zap.Logger, out io.Writer) (*app, error) {
	theme, err := terminal.NewThemeManager(cfg.Terminal.Theme, out)
	if err != nil {
		return nil, err
	}

	opts := []transfer.Option{
		transfer.WithDialer(transport.NewDialer(log, cfg.Transfer.ChunkSize)),
		transfer.WithLogger(log),
		transfer.WithMaxMemory(cfg.Transfer.MaxMemory),
		transfer.WithRetry(transfer.RetryPolicy{
			Attempts:  cfg.Transfer.Retries,
			BaseDelay: cfg.Transfer.RetryDelay.Duration,
			MaxDelay:  transfer.DefaultRetryPolicy.MaxDelay,
		}),
	}
	if cfg.Transfer.MetricsFile != "" {
		opts = append(opts, transfer.WithObserver(perfmetrics.NewRecorder(cfg.Transfer.MetricsFile, log)))
	}
	conn, err := transfer.Dial(cfg.Login(), opts...)
	if err != nil {
		return nil, err
	}

	completer := terminal.NewCommandCompleter()
	completer.SetLister(conn)
	return &app{
		cfg:       cfg,
		log:       log,
		out:       out,
		conn:      conn,
		theme:     theme,
		table:     terminal.NewTableFormatter(out),
		completer: completer,
	}, nil
}

func (a *app) close() {
	if err := a.conn.Close(); err != nil {
		a.log.Debug("close", zap.Error(err))
	}
	_ = a.log.Sync()
}

// interruptible runs fn with SIGINT mapped to Cancel, then re-arms the
// connection for the next call.
func (a *app) interruptible(fn func() error) error {
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sig, os.Interrupt)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-sig:
			if err := a.conn.Cancel(); err != nil {
				a.log.Warn("cancel", zap.Error(err))
			}
		case <-done:
		}
	}()

	err := fn()
	signal.Stop(sig)
	close(done)
	wg.Wait()

	if a.conn.Gate().Signaled() {
		if rerr := a.conn.ResetCancel(); rerr != nil {
			a.log.Warn("reset cancel", zap.Error(rerr))
		}
	}
	if errors.Is(err, transfer.ErrCanceled) {
		return errors.New("transfer canceled")
	}
	return err
}
