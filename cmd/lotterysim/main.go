package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	lottery "github.com/kydenul/lotterysim"
	"github.com/kydenul/lotterysim/server"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lotterysim",
		Short:         "Seven-prize draw simulator with bet pricing and settlement",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading %s: %w", envFile, err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading configuration")
	cmd.AddCommand(serveCmd(), drawCmd(), priceCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().StringP("config", "c", "", "config file (default: search ./config.yaml, ./config, /etc/lotterysim)")
	cmd.Flags().Bool("watch", true, "reload rules when the config file changes")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	watch, _ := cmd.Flags().GetBool("watch")

	bootLogger := lottery.NewSlogLogger(lottery.LogOptions{})
	cm := lottery.NewConfigManagerWithLogger(bootLogger)
	if configFile != "" {
		cm.SetConfigFile(configFile)
	}

	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	logger := lottery.NewSlogLogger(lottery.LogOptions{
		Level:  config.Log.Level,
		Format: config.Log.Format,
	})

	rt, err := lottery.NewRuntime(config, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("close: %v", err)
		}
	}()

	if watch {
		if err := cm.WatchConfig(func(c *lottery.Config) {
			if err := rt.ApplyConfig(c); err != nil {
				logger.Error("config reload rejected: %v", err)
			}
		}); err != nil {
			return err
		}
	}

	auth := lottery.NewAuthenticator(config.Auth, lottery.NewLogMailer(logger), logger)
	srv := server.New(server.Options{
		Settler:       rt.Settler,
		Authenticator: auth,
		Breaker:       rt.Breaker,
		Config:        config.Server,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth.StartCleanup(ctx, lottery.DefaultLimiterCleanup)

	return srv.Run(ctx)
}

func drawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Print a draw; fresh unless --seed and --timestamp replay one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			draw, err := drawFromFlags(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd, draw)
		},
	}
	addDrawFlags(cmd)
	return cmd
}

func priceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price one leg offline against a draw",
		Example: "  lotterysim price --mode thousand --selections 1518 --placements 1,2,3,4,5,6 " +
			"--stake 10 --seed abc --timestamp 2024-01-01T00:00:00.000Z",
		RunE: runPrice,
	}
	addDrawFlags(cmd)
	cmd.Flags().String("mode", "", "group, ten, hundred or thousand")
	cmd.Flags().StringSlice("selections", nil, "selections, comma separated")
	cmd.Flags().IntSlice("placements", []int{1}, "placements 1..7, comma separated")
	cmd.Flags().String("stake", "1.00", "stake in coins")
	cmd.Flags().String("selection-pricing", string(lottery.SelectionEach), "each or split")
	cmd.Flags().String("placement-pricing", string(lottery.PlacementSplit), "split or cover")
	cmd.Flags().String("table", string(lottery.DefaultMultiplierTable), "multiplier table: standard or boosted")
	cmd.Flags().String("placement-seven", string(lottery.DefaultPlacementSevenPolicy), "reject or drop")
	_ = cmd.MarkFlagRequired("mode")
	_ = cmd.MarkFlagRequired("selections")
	return cmd
}

func runPrice(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	modeName, _ := flags.GetString("mode")
	selections, _ := flags.GetStringSlice("selections")
	placements, _ := flags.GetIntSlice("placements")
	stakeText, _ := flags.GetString("stake")
	selectionPricing, _ := flags.GetString("selection-pricing")
	placementPricing, _ := flags.GetString("placement-pricing")
	table, _ := flags.GetString("table")
	seven, _ := flags.GetString("placement-seven")

	mode, err := lottery.ParseMode(modeName)
	if err != nil {
		return err
	}
	stake, err := decimal.NewFromString(stakeText)
	if err != nil {
		return lottery.ErrInvalidStake.WithDetails(err.Error())
	}

	rulesConfig := lottery.DefaultRulesConfig()
	rulesConfig.MultiplierTable = table
	rulesConfig.PlacementSeven = seven
	rules, err := lottery.NewRules(rulesConfig)
	if err != nil {
		return err
	}

	leg := lottery.Leg{
		Mode:             mode,
		Placements:       placements,
		SelectionPricing: lottery.SelectionPricing(selectionPricing),
		PlacementPricing: lottery.PlacementPricing(placementPricing),
		Stake:            stake,
	}
	for _, s := range selections {
		leg.Selections = append(leg.Selections, lottery.Selection(s))
	}

	leg, err = leg.Normalize(rules)
	if err != nil {
		return err
	}

	draw, err := drawFromFlags(cmd)
	if err != nil {
		return err
	}

	result, err := lottery.PriceLeg(leg, draw.PrizeList(), rules.Multipliers)
	if err != nil {
		return err
	}

	return printJSON(cmd, map[string]any{
		"seed":      draw.Seed,
		"timestamp": draw.Timestamp,
		"prizes":    draw.Prizes,
		"leg":       result,
	})
}

func addDrawFlags(cmd *cobra.Command) {
	cmd.Flags().String("seed", "", "replay seed")
	cmd.Flags().String("timestamp", "", "replay timestamp, e.g. 2024-01-01T00:00:00.000Z")
	cmd.MarkFlagsRequiredTogether("seed", "timestamp")
}

func drawFromFlags(cmd *cobra.Command) (lottery.Draw, error) {
	seed, _ := cmd.Flags().GetString("seed")
	timestamp, _ := cmd.Flags().GetString("timestamp")
	if seed != "" {
		return lottery.GenerateDraw(seed, timestamp), nil
	}

	seed, timestamp, err := lottery.NewUUIDSeedSource().Next()
	if err != nil {
		return lottery.Draw{}, err
	}
	return lottery.GenerateDraw(seed, timestamp), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
