package main

import (
	"context"
	"crowd-route-service/internal/adapters/importer"
	"crowd-route-service/internal/adapters/signals"
	"crowd-route-service/internal/api/dto"
	"crowd-route-service/internal/config"
	"crowd-route-service/internal/crowd"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/ports"
	"crowd-route-service/internal/routing"
	"crowd-route-service/internal/services"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// offlineFlags are shared by every command that needs a crowd snapshot.
type offlineFlags struct {
	topology string
	tables   string
	readings string
	at       string
	seed     uint64
}

func (f *offlineFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tables, "tables", "", "YAML file overriding thresholds, multipliers and weights")
	cmd.Flags().StringVar(&f.readings, "readings", "", "JSON array of {location_id,count,flow_rate}; synthetic readings when empty")
	cmd.Flags().StringVar(&f.at, "at", "", "evaluation time (RFC3339); defaults to now")
	cmd.Flags().Uint64Var(&f.seed, "seed", 1, "seed for synthetic readings")
}

func (f *offlineFlags) clock() (func() time.Time, error) {
	if f.at == "" {
		return time.Now, nil
	}
	t, err := time.Parse(time.RFC3339, f.at)
	if err != nil {
		return nil, fmt.Errorf("--at: %w", err)
	}
	return func() time.Time { return t }, nil
}

func readReadings(path string) ([]signals.StaticReading, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read readings: %w", err)
	}
	var out []signals.StaticReading
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("read readings %q: %w", path, err)
	}
	return out, nil
}

// open builds a venue service over the topology file with one published snapshot.
func (f *offlineFlags) open(ctx context.Context) (*services.VenueService, error) {
	tables, err := config.LoadTables(f.tables)
	if err != nil {
		return nil, err
	}
	now, err := f.clock()
	if err != nil {
		return nil, err
	}

	loader := importer.NewJSONLoader(f.topology)
	g, err := services.LoadGraph(ctx, loader)
	if err != nil {
		return nil, err
	}

	var source ports.SignalSource
	if f.readings != "" {
		readings, err := readReadings(f.readings)
		if err != nil {
			return nil, err
		}
		source = signals.NewStaticSource(readings)
	} else {
		source = crowd.NewSyntheticSource(tables.Multipliers, f.seed)
	}

	model := crowd.NewModel(g, source,
		crowd.WithClock(now),
		crowd.WithPredictor(crowd.NewTablePredictor(tables.Multipliers)),
	)
	if err := model.Init(ctx); err != nil {
		return nil, err
	}

	planner, err := routing.NewPlanner(tables.Weights, nil)
	if err != nil {
		return nil, err
	}

	return services.NewVenueService(g, services.VenueDeps{
		Loader:     loader,
		Model:      model,
		Planner:    planner,
		Thresholds: tables.Thresholds,
		Now:        now,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd() *cobra.Command {
	var topology string

	root := &cobra.Command{
		Use:           "venuectl",
		Short:         "Inspect a venue topology, plan routes and derive alerts offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&topology, "topology", "data/topology.json", "topology JSON file")

	root.AddCommand(
		newValidateCmd(&topology),
		newPlanCmd(&topology),
		newAlertsCmd(&topology),
		newSnapshotCmd(&topology),
	)
	return root
}

func newValidateCmd(topology *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the topology builds into a valid graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := services.LoadGraph(cmd.Context(), importer.NewJSONLoader(*topology))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok locations=%d connections=%d\n", g.Len(), len(g.Connections()))
			return err
		},
	}
}

func newPlanCmd(topology *string) *cobra.Command {
	var (
		f          offlineFlags
		from, to   string
		policy     string
		policies   []string
		avoid      bool
		accessible bool
		mode       string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan routes between two locations for each policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.topology = *topology

			profile := domain.PreferenceProfile{AvoidCrowds: avoid, AccessibilityRequired: accessible}
			if policy != "" {
				p, err := domain.ParsePolicy(policy)
				if err != nil {
					return err
				}
				profile.Policy = p
			}
			m, err := domain.ParseTransportMode(mode)
			if err != nil {
				return err
			}
			profile.TransportMode = m

			req := routing.PlanRequest{Start: from, End: to, Profile: profile}
			for _, raw := range policies {
				p, err := domain.ParsePolicy(raw)
				if err != nil {
					return err
				}
				req.Policies = append(req.Policies, p)
			}

			svc, err := f.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.PlanRoutes(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto.FromPlanResult(res))
		},
	}

	f.bind(cmd)
	cmd.Flags().StringVar(&from, "from", "", "start location id or custom_<lat>_<lng>")
	cmd.Flags().StringVar(&to, "to", "", "destination location id or custom_<lat>_<lng>")
	cmd.Flags().StringVar(&policy, "policy", "", "preferred policy; accessible also plans the accessible policy")
	cmd.Flags().StringSliceVar(&policies, "policies", nil, "policies to plan (default optimal,fastest,safest)")
	cmd.Flags().BoolVar(&avoid, "avoid-crowds", true, "penalize crowded destinations")
	cmd.Flags().BoolVar(&accessible, "accessible", false, "require accessible connections")
	cmd.Flags().StringVar(&mode, "mode", "walking", "transport mode: walking, wheelchair, e_rickshaw")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newAlertsCmd(topology *string) *cobra.Command {
	var f offlineFlags

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Print safety alerts for one crowd snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.topology = *topology
			svc, err := f.open(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto.FromAlerts(svc.CurrentAlerts()))
		},
	}
	f.bind(cmd)
	return cmd
}

func newSnapshotCmd(topology *string) *cobra.Command {
	var (
		f       offlineFlags
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print one crowd snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.topology = *topology
			svc, err := f.open(cmd.Context())
			if err != nil {
				return err
			}
			if summary {
				return printJSON(cmd.OutOrStdout(), svc.Summary())
			}
			return printJSON(cmd.OutOrStdout(), dto.FromSnapshot(svc.Snapshot()))
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&summary, "summary", false, "print the aggregate summary instead of every entry")
	return cmd
}
