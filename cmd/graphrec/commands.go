package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rushteam/graphrec/core"
	"github.com/rushteam/graphrec/engine"
	"github.com/rushteam/graphrec/explain"
	"github.com/rushteam/graphrec/retrain"
)

func newTrainCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train LightGCN embeddings from an edge CSV and publish a version",
		Example: `  graphrec train --edges edges.csv
  GRAPHREC_TRAIN_MAX_EPOCHS=100 graphrec train -c graphrec.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			res, v, err := a.trainAndPublish(ctx)
			if err != nil {
				return err
			}
			out := map[string]any{
				"version":    v,
				"users":      res.Users.Len(),
				"items":      res.Items.Len(),
				"epochs":     len(res.Losses),
				"state":      res.State.String(),
				"persisted":  a.codec != nil,
				"best_epoch": res.BestEpoch,
			}
			if n := len(res.Losses); n > 0 {
				out["first_loss"] = res.Losses[0]
				out["last_loss"] = res.Losses[n-1]
			}
			if len(res.Recalls) > 0 {
				out["best_recall"] = res.BestRecall
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newRecommendCmd(g *globalFlags) *cobra.Command {
	var (
		userID   int64
		topK     int
		fallback bool
		genres   []string
		exclude  []int64
		expr     string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend items for a known user",
		Example: `  graphrec recommend --user 42 --top-k 5
  graphrec recommend --user 42 --filter 'item.id != 7' --fallback --genres Drama`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.ensureVersion(ctx); err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			opts := engine.UserOptions{
				FallbackToColdStart: fallback,
				ExcludeItemIDs:      exclude,
				Filter:              expr,
			}
			if len(genres) > 0 {
				opts.ColdStart = &core.ColdStartRequest{Genres: genres}
			}
			res, err := e.RecommendForUser(ctx, userID, topK, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.Int64Var(&userID, "user", 0, "user id")
	f.IntVarP(&topK, "top-k", "k", 0, "number of items (default engine.default_top_k)")
	f.BoolVar(&fallback, "fallback", false, "fall back to cold start for unknown users")
	f.StringSliceVar(&genres, "genres", nil, "preferred genres used by the cold-start fallback")
	f.Int64SliceVar(&exclude, "exclude", nil, "item ids to exclude")
	f.StringVar(&expr, "filter", "", "CEL expression; only items for which it is true are kept")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newColdStartCmd(g *globalFlags) *cobra.Command {
	var req core.ColdStartRequest
	cmd := &cobra.Command{
		Use:     "coldstart",
		Short:   "Recommend items from stated preferences",
		Example: `  graphrec coldstart --genres Action,Comedy --seeds 101,205 -k 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.ensureVersion(ctx); err != nil {
				// 没有可用版本时仍可按类型推荐
				a.logger.Warn().Err(err).Msg("no embedding version, genre heuristic only")
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			res, err := e.RecommendColdStart(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&req.Genres, "genres", nil, "preferred genres")
	f.Int64SliceVar(&req.SeedItemIDs, "seeds", nil, "liked item ids")
	f.StringVar(&req.Query, "query", "", "free-text query (needs a text embedder)")
	f.IntVarP(&req.TopK, "top-k", "k", 0, "number of items (default engine.default_top_k)")
	return cmd
}

func newExplainCmd(g *globalFlags) *cobra.Command {
	var req explain.Request
	cmd := &cobra.Command{
		Use:     "explain",
		Short:   "Explain why an item is recommended",
		Example: `  graphrec explain --item 101 --user 42 --genres Action --seeds 205`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.ensureVersion(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("no embedding version, genre facts only")
			}
			var ex *explain.Explainer
			if a.catalog != nil {
				ex = explain.NewExplainer(a.store, a.catalog)
			} else {
				ex = explain.NewExplainer(a.store, nil)
			}
			out, err := ex.Explain(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	f := cmd.Flags()
	f.Int64Var(&req.ItemID, "item", 0, "item id")
	f.Int64Var(&req.UserID, "user", 0, "user id (omit for cold start)")
	f.StringSliceVar(&req.Genres, "genres", nil, "requested genres")
	f.Int64SliceVar(&req.SeedItemIDs, "seeds", nil, "liked item ids")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newScheduleCmd(g *globalFlags) *cobra.Command {
	var (
		runNow      bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Retrain on retrain.schedule until interrupted",
		Example: `  graphrec schedule --run-now
  GRAPHREC_RETRAIN_SCHEDULE='@every 6h' graphrec schedule --metrics-addr :9100`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			opts := []retrain.Option{retrain.WithLogger(a.logger), retrain.WithTimeout(a.cfg.Retrain.Timeout)}
			if a.codec != nil {
				opts = append(opts, retrain.WithCodec(a.codec))
			}
			s := retrain.New(a.trainer(), a.store, a.loadEdges, opts...)
			if a.cfg.Retrain.Schedule == "" {
				return errors.New("retrain.schedule is empty")
			}
			if _, err := s.Schedule(a.cfg.Retrain.Schedule); err != nil {
				return err
			}

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error().Err(err).Msg("metrics server stopped")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			if runNow {
				if _, err := s.RunOnce(ctx); err != nil {
					a.logger.Error().Err(err).Msg("initial retrain failed")
				}
			}
			s.Start()
			<-ctx.Done()
			<-s.Stop().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "retrain once before waiting for the schedule")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}
