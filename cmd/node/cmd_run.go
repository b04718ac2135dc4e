package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tolelom/qorachain/crypto"
	"github.com/tolelom/qorachain/forging"
	"github.com/tolelom/qorachain/mempool"
	"github.com/tolelom/qorachain/metrics"
	"github.com/tolelom/qorachain/rpc"
	"github.com/tolelom/qorachain/synchronizer"
	"github.com/tolelom/qorachain/wallet"
	"golang.org/x/sync/errgroup"
)

const metricsShutdownTimeout = 5 * time.Second

type runCommand struct {
	global *globalOptions
}

func newRunCommand(global *globalOptions) *runCommand {
	return &runCommand{global: global}
}

func (x *runCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"run",
		"Run the node",
		"Open the chain database, create the genesis block on first "+
			"start, then forge with the configured keys and serve "+
			"RPC and metrics until interrupted",
		x,
	)
	return err
}

func (x *runCommand) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := openNode(ctx, x.global.Config)
	if err != nil {
		return err
	}
	defer n.Close()

	password, err := x.global.env(passwordEnv)
	if err != nil {
		return err
	}
	keys := make([]crypto.PrivateKey, 0, len(n.cfg.ForgingKeys))
	for _, path := range n.cfg.ForgingKeys {
		priv, err := wallet.LoadKey(path, password)
		if err != nil {
			return fmt.Errorf("load forging key %s: %w", path, err)
		}
		n.log.WithField("address", priv.Public().Address()).Info("Loaded forging key")
		keys = append(keys, priv)
	}
	if len(keys) == 0 {
		n.log.Warn("No forging keys configured, following the chain only")
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	m.Subscribe(n.emitter)

	clk := forging.NewAdjustedClock(clock.NewDefaultClock())
	clk.SetOffset(n.cfg.ClockOffset())
	pool := mempool.New(clk)
	forger := forging.New(n.chain, pool, clk, forging.Config{
		Keys:     keys,
		Interval: n.cfg.ForgeInterval(),
		Emitter:  n.emitter,
		Log:      n.log,
	})

	token, err := x.global.env(rpcTokenEnv)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return forger.Run(ctx) })

	if len(n.cfg.Peers) > 0 {
		peers := make([]synchronizer.Peer, len(n.cfg.Peers))
		for i, url := range n.cfg.Peers {
			peers[i] = rpc.NewClient(url, token)
		}
		syncer := synchronizer.New(n.chain, pool, clk, n.emitter, n.log)
		g.Go(func() error { return syncer.Run(ctx, peers, n.cfg.SyncInterval()) })
	}

	if n.cfg.RPCAddr != "" {
		srv := rpc.NewServer(rpc.NewHandler(n.store, pool), rpc.ServerConfig{
			Addr:              n.cfg.RPCAddr,
			AuthToken:         token,
			RequestsPerSecond: n.cfg.RPCRequestsPerSecond,
			Burst:             int(n.cfg.RPCRequestsPerSecond) + 1,
			Log:               n.log,
		})
		g.Go(func() error { return srv.Serve(ctx) })
	}

	if addr := n.cfg.MetricsAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			n.log.WithField("addr", addr).Info("Metrics server listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	n.log.Info("Node stopped")
	return err
}
