package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/internal/domain/scoring"
)

func init() {
	rootCmd.AddCommand(recalculateCmd, breakdownCmd, historyCmd, verifyCmd, auditCmd, weightsCmd, triggerCmd)
	weightsCmd.AddCommand(weightsGetCmd, weightsSetCmd)

	recalculateCmd.Flags().StringP("reason", "r", string(model.ReasonManualAdmin), "Reason recorded on the ledger event")
	triggerCmd.Flags().StringP("reason", "r", string(model.ReasonRecalculation), "Reason carried by the request")
	historyCmd.Flags().IntP("limit", "n", 0, "Page size (0 uses the configured default)")
	historyCmd.Flags().Int("offset", 0, "Events to skip")
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate USER_ID...",
	Short: "Recalculate and settle scores synchronously",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, err := reasonFlag(cmd)
		if err != nil {
			return err
		}
		return withStack(cmd, func(ctx context.Context, rt *stack) error {
			for _, userID := range args {
				diff, err := rt.svc.Recalculate(ctx, userID, reason, map[string]any{"source": "cli"})
				if err != nil {
					return fmt.Errorf("recalculate %s: %w", userID, err)
				}
				if err := printJSON(cmd.OutOrStdout(), diff); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var breakdownCmd = &cobra.Command{
	Use:   "breakdown USER_ID",
	Short: "Compute a score without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, rt *stack) error {
			rep, err := rt.svc.Breakdown(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history USER_ID",
	Short: "Show a user's score changes, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		return withStack(cmd, func(ctx context.Context, rt *stack) error {
			page, err := rt.svc.History(ctx, args[0], limit, offset)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page)
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify USER_ID...",
	Short: "Check that each ledger chains and ends at the stored score",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, rt *stack) error {
			var broken int
			for _, userID := range args {
				err := rt.svc.Verify(ctx, userID)
				switch {
				case err == nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tok\n", userID)
				case errors.Is(err, model.ErrBrokenChain):
					broken++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tbroken\t%v\n", userID, err)
				default:
					return err
				}
			}
			if broken > 0 {
				return fmt.Errorf("%d of %d ledgers broken", broken, len(args))
			}
			return nil
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit USER_ID",
	Short: "Replay every ledger event from its recorded inputs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, rt *stack) error {
			report, err := rt.svc.Audit(ctx, args[0])
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Consistent() {
				return fmt.Errorf("ledger of %s is inconsistent", args[0])
			}
			return nil
		})
	},
}

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Inspect or change scoring weights",
}

var weightsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the active weights and admin overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStack(cmd, func(ctx context.Context, rt *stack) error {
			w, err := rt.svc.Weights(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), w)
		})
	},
}

var weightsSetCmd = &cobra.Command{
	Use:   "set KEY=VALUE...",
	Short: "Override weights; existing scores change on their next recalculation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		partial, err := parseWeights(args)
		if err != nil {
			return err
		}
		return withStack(cmd, func(ctx context.Context, rt *stack) error {
			w, err := rt.svc.SetWeights(ctx, partial)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), w)
		})
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger USER_ID...",
	Short: "Publish recompute requests to the configured Kafka topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, err := reasonFlag(cmd)
		if err != nil {
			return err
		}
		return withStack(cmd, func(ctx context.Context, rt *stack) error {
			if rt.publisher == nil {
				return errors.New("kafka_brokers is not configured")
			}
			for _, userID := range args {
				r := model.RecomputeRequest{ID: uuid.NewString(), UserID: userID, Reason: reason, RequestedAt: time.Now().UTC()}
				if err := rt.publisher.Publish(ctx, r); err != nil {
					return fmt.Errorf("publish %s: %w", userID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", userID, r.ID)
			}
			return nil
		})
	},
}

func withStack(cmd *cobra.Command, fn func(ctx context.Context, rt *stack) error) error {
	ctx := cmd.Context()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(ctx, rt)
}

func reasonFlag(cmd *cobra.Command) (model.Reason, error) {
	raw, _ := cmd.Flags().GetString("reason")
	return model.ParseReason(raw)
}

// parseWeights turns KEY=VALUE arguments into a partial weight config.
func parseWeights(args []string) (scoring.WeightConfig, error) {
	partial := make(scoring.WeightConfig, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: %q is not KEY=VALUE", model.ErrInvalidWeightConfig, arg)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", model.ErrInvalidWeightConfig, key, err)
		}
		partial[strings.TrimSpace(key)] = v
	}
	return partial, scoring.Validate(partial)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
