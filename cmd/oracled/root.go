package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GPTx-global/sun-network-oracle/oracle/config"
	"github.com/GPTx-global/sun-network-oracle/oracle/daemon"
	"github.com/GPTx-global/sun-network-oracle/oracle/log"
	"github.com/GPTx-global/sun-network-oracle/oracle/sign"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

const (
	flagHome      = "home"
	flagLogLevel  = "log_level"
	flagLogFormat = "log_format"
	flagOverwrite = "overwrite"
	flagStep      = "step"
	flagToken     = "token"
)

// NewRootCmd creates the oracled command tree
func NewRootCmd() *cobra.Command {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:           "oracled",
		Short:         "Withdrawal oracle for the side chain bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(flagHome, config.DefaultHome(), "oracle daemon home directory")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "log level (debug|info|error), overrides the config file")
	rootCmd.PersistentFlags().String(flagLogFormat, "", "log format (plain|json), overrides the config file")

	_ = v.BindPFlag("home", rootCmd.PersistentFlags().Lookup(flagHome))
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup(flagLogLevel))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup(flagLogFormat))

	rootCmd.AddCommand(
		newStartCmd(v),
		newInitCmd(v),
		newDelayCmd(),
		newHashCmd(),
	)

	return rootCmd
}

func newStartCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the oracle daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home := v.GetString("home")

			if err := config.Load(home); err != nil {
				return err
			}
			config.ApplyOverrides(v)
			if err := config.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			var out io.Writer = cmd.OutOrStdout()
			if config.LogToFile() {
				f, err := log.OpenFile(home)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			logger, err := log.New(out, config.LogLevel(), config.LogFormat())
			if err != nil {
				return err
			}

			d, err := daemon.New(logger)
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return d.Run(ctx)
		},
	}
}

func newInitCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the home directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home := v.GetString("home")
			path := filepath.Join(home, config.FileName)

			overwrite, _ := cmd.Flags().GetBool(flagOverwrite)
			if _, err := os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("%s already exists, use --%s to replace it", path, flagOverwrite)
			}

			if err := config.WriteDefault(home); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().Bool(flagOverwrite, false, "replace an existing config file")
	return cmd
}

func newDelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delay [own_sign] [peer_signs...]",
		Short: "Show the broadcast rank and delay for a signature set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := cmd.Flags().GetDuration(flagStep)
			if err != nil {
				return err
			}

			own, peers := args[0], args[1:]
			rank, present := sign.Rank(own, peers)

			fmt.Fprintf(cmd.OutOrStdout(), "rank: %d\npresent: %t\ndelay: %s\n", rank, present, sign.GetDelay(own, peers, step))
			return nil
		},
	}

	cmd.Flags().Duration(flagStep, sign.DefaultDelayStep, "delay per rank")
	return cmd
}

func newHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash [trx|trc10|trc20] [from] [value] [nonce]",
		Short: "Show the withdraw data hash the oracles sign",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseEventType(args[0])
			if err != nil {
				return err
			}

			token, _ := cmd.Flags().GetString(flagToken)
			if t != types.EventTypeWithdrawTRX && token == "" {
				return fmt.Errorf("--%s is required for %s", flagToken, args[0])
			}

			hash, err := sign.WithdrawDataHash(types.Withdrawal{
				Type:  t,
				From:  args[1],
				Value: args[2],
				Nonce: args[3],
				Token: token,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%x\n", hash)
			return nil
		},
	}

	cmd.Flags().String(flagToken, "", "token id (trc10) or token contract (trc20)")
	return cmd
}

func parseEventType(s string) (types.EventType, error) {
	for _, t := range types.EventTypes {
		if strings.EqualFold(strings.TrimPrefix(t.String(), "WITHDRAW_"), s) || strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}

	return types.EventTypeUnspecified, types.ErrUnknownEventType.Wrap(s)
}

func execute(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := cmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
