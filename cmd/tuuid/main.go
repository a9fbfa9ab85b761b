package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Lzww0608/tuuid"
	"github.com/Lzww0608/tuuid/internal/config"
	logpkg "github.com/Lzww0608/tuuid/internal/log"
	"github.com/Lzww0608/tuuid/noderegistry"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuuid",
		Short:         "Time-based UUID tool",
		Long:          "tuuid generates and inspects version 1, 6 and 7 UUIDs and COMB identifiers.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "override log level (debug, info, warn, error)")

	// gen
	genCmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate UUIDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			count, _ := cmd.Flags().GetInt("count")
			parallel, _ := cmd.Flags().GetInt("parallel")
			comb, _ := cmd.Flags().GetString("comb")
			if count < 0 {
				return fmt.Errorf("count must not be negative")
			}

			if comb != "" {
				return genComb(cmd.OutOrStdout(), comb, count)
			}

			if cmd.Flags().Changed("version") {
				cfg.Version, _ = cmd.Flags().GetInt("version")
			}
			if cmd.Flags().Changed("node") {
				cfg.Node, _ = cmd.Flags().GetString("node")
			}
			if cmd.Flags().Changed("overrun") {
				cfg.Overrun, _ = cmd.Flags().GetString("overrun")
			}

			version, err := cfg.GeneratorVersion()
			if err != nil {
				return err
			}
			opts, err := cfg.Options()
			if err != nil {
				return err
			}
			if cfg.Node == "" && version != tuuid.VersionUnixTime && cfg.Registry.Kind != "" {
				reg, node, err := leaseNode(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer reg.Close()
				opts = append(opts, tuuid.WithNodeIdentifier(node))
			}
			opts = append(opts, tuuid.WithLogger(logger))

			ids, err := generate(version, opts, count, parallel)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	genCmd.Flags().Int("version", 7, "UUID version: 1, 6 or 7")
	genCmd.Flags().IntP("count", "n", 1, "number of UUIDs to generate")
	genCmd.Flags().Int("parallel", 1, "number of independent generators sharing one clock sequence pool")
	genCmd.Flags().String("node", "", "node identifier override (MAC, 0x-hex or decimal)")
	genCmd.Flags().String("overrun", "", "overrun policy: advance, increment or fail")
	genCmd.Flags().String("comb", "", "generate COMB UUIDs with the timestamp as prefix or suffix")
	rootCmd.AddCommand(genCmd)

	// inspect
	inspectCmd := &cobra.Command{
		Use:   "inspect <uuid>...",
		Short: "Decode the fields of UUIDs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comb, _ := cmd.Flags().GetString("comb")
			for i, arg := range args {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				u, err := tuuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}
				if err := inspect(cmd.OutOrStdout(), u, comb); err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}
			}
			return nil
		},
	}
	inspectCmd.Flags().String("comb", "", "decode a version 4 UUID as COMB prefix or suffix")
	rootCmd.AddCommand(inspectCmd)

	// node
	nodeCmd := &cobra.Command{
		Use:   "node",
		Short: "Show the node identifier this host resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Registry.Kind != "" {
				reg, node, err := leaseNode(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer reg.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "node:   %s\norigin: %s\n", node, cfg.Registry.Kind)
				return nil
			}

			var source tuuid.NodeSource
			if cfg.Node != "" {
				n, err := tuuid.ParseNodeIdentifier(cfg.Node)
				if err != nil {
					return err
				}
				source = tuuid.FixedNode(n)
			} else if source, err = tuuid.ParseNodeSource(cfg.NodeSource); err != nil {
				return err
			}
			p := tuuid.NewNodeIdentifierProvider(source, nil, logger)
			fmt.Fprintf(cmd.OutOrStdout(), "node:   %s\norigin: %s\n", p.Resolve(), p.Origin())
			return nil
		},
	}
	rootCmd.AddCommand(nodeCmd)

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	cfg.Log.Output = cmd.ErrOrStderr()
	logpkg.Init(cfg.Log)

	logger := logpkg.Component("tuuid")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logpkg.WithLogger(ctx, logger))
	return cfg, logger, nil
}

// leaseNode opens the configured registry and leases a node identifier.
// Lease events are logged through the logger carried by ctx.
func leaseNode(ctx context.Context, cfg *config.Config) (noderegistry.Registry, tuuid.NodeIdentifier, error) {
	reg, err := noderegistry.Open(ctx, noderegistry.Config{
		Kind:      cfg.Registry.Kind,
		DSN:       cfg.Registry.DSN,
		ZKServers: cfg.Registry.ZKServers,
		Service:   cfg.Registry.Service,
		Timeout:   cfg.Registry.Timeout,
		Logger:    *logpkg.Ctx(ctx),
	})
	if err != nil {
		return nil, 0, err
	}
	node, err := reg.Lease(ctx)
	if err != nil {
		reg.Close()
		return nil, 0, err
	}
	return reg, node, nil
}

// generate produces count UUIDs using parallel generators that share one pool.
// Output keeps each generator's values contiguous.
func generate(version tuuid.Version, opts []tuuid.Option, count, parallel int) ([]tuuid.UUID, error) {
	if parallel < 1 {
		parallel = 1
	}
	if parallel > count && count > 0 {
		parallel = count
	}
	opts = append(opts, tuuid.WithClockSequencePool(tuuid.NewClockSequencePool()))

	ids := make([]tuuid.UUID, count)
	chunk := (count + parallel - 1) / max(parallel, 1)

	var g errgroup.Group
	for w := 0; w < parallel; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, count)
		if lo >= hi {
			break
		}
		gen, err := tuuid.NewGenerator(version, opts...)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				id, err := gen.New()
				if err != nil {
					return err
				}
				ids[i] = id
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

func parseCombKind(s string) (tuuid.CombKind, error) {
	switch strings.ToLower(s) {
	case "prefix":
		return tuuid.CombPrefix, nil
	case "suffix":
		return tuuid.CombSuffix, nil
	default:
		return 0, fmt.Errorf("unknown COMB kind %q (want prefix or suffix)", s)
	}
}

func genComb(w io.Writer, kind string, count int) error {
	k, err := parseCombKind(kind)
	if err != nil {
		return err
	}
	gen, err := tuuid.NewCombGenerator(k)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		id, err := gen.New()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, id)
	}
	return nil
}

func inspect(w io.Writer, u tuuid.UUID, comb string) error {
	fmt.Fprintf(w, "uuid:           %s\n", u)
	fmt.Fprintf(w, "version:        %d\n", u.Version())
	fmt.Fprintf(w, "variant:        %s\n", u.Variant())

	if comb != "" {
		k, err := parseCombKind(comb)
		if err != nil {
			return err
		}
		t, err := tuuid.ExtractCombTime(u, k)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "time:           %s\n", t.Format("2006-01-02T15:04:05.000Z07:00"))
		return nil
	}

	if !u.Version().IsTimeBased() {
		return errors.New("not a time-based UUID; use --comb for COMB values")
	}
	switch v := u.Version(); v {
	case tuuid.VersionTimeBased, tuuid.VersionReorderedTime:
		f, err := tuuid.ExtractFields(u, v)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "timestamp:      %d\n", uint64(f.Timestamp))
		fmt.Fprintf(w, "time:           %s\n", f.Timestamp.Time().Format("2006-01-02T15:04:05.0000000Z07:00"))
		fmt.Fprintf(w, "clock sequence: %d\n", f.ClockSequence)
		fmt.Fprintf(w, "node:           %s\n", f.Node)
		fmt.Fprintf(w, "multicast:      %t\n", f.Node.IsMulticast())
	case tuuid.VersionUnixTime:
		f, err := tuuid.ExtractV7Fields(u)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "unix ms:        %d\n", f.UnixMilli)
		fmt.Fprintf(w, "time:           %s\n", u.Time().Format("2006-01-02T15:04:05.000Z07:00"))
		fmt.Fprintf(w, "rand_a:         %#03x\n", f.RandA)
		fmt.Fprintf(w, "rand_b:         %#016x\n", f.RandB)
	}
	return nil
}
