package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/arnavshah/shift-solver-api/pkg/app"
	"github.com/arnavshah/shift-solver-api/pkg/auth"
	"github.com/arnavshah/shift-solver-api/pkg/config"
	"github.com/arnavshah/shift-solver-api/pkg/database"
	"github.com/arnavshah/shift-solver-api/pkg/logging"
	"github.com/arnavshah/shift-solver-api/pkg/models"
	"github.com/arnavshah/shift-solver-api/pkg/planner"
	"github.com/arnavshah/shift-solver-api/pkg/scheduler"
)

func main() {
	config.LoadDotEnv()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SOLVERCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "solverctl",
		Short:         "Shift solver command line",
		Long:          "Solve shift snapshots offline, run multi-day plans against the database, mint API keys and serve the HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().String("solver-config", "", "solver tuning YAML file")
	root.PersistentFlags().String("timezone", "", "IANA timezone for calendar days (default UTC)")
	_ = v.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	_ = v.BindPFlag("solver-config", root.PersistentFlags().Lookup("solver-config"))
	_ = v.BindPFlag("timezone", root.PersistentFlags().Lookup("timezone"))

	root.AddCommand(solveCmd(v))
	root.AddCommand(historyCmd(v))
	root.AddCommand(importCmd(v))
	root.AddCommand(planCmd(v))
	root.AddCommand(keygenCmd())
	root.AddCommand(serveCmd())
	return root
}

// solverOptions builds solver options from the --solver-config and --timezone flags
func solverOptions(v *viper.Viper) (scheduler.Options, error) {
	sc := config.DefaultSolverConfig()
	if path := v.GetString("solver-config"); path != "" {
		var err error
		if sc, err = config.LoadSolverConfig(path); err != nil {
			return scheduler.Options{}, err
		}
	}
	loc := time.UTC
	if tz := v.GetString("timezone"); tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return scheduler.Options{}, fmt.Errorf("timezone %q: %w", tz, err)
		}
	}
	return sc.Options(loc), nil
}

func readJSON(path string, dst any) error {
	if path == "" {
		return errors.New("--input is required")
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(header)
	return tw
}

func solveCmd(v *viper.Viper) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve one day from a JSON snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := solverOptions(v)
			if err != nil {
				return err
			}
			var req models.SolveRequest
			if err := readJSON(input, &req); err != nil {
				return err
			}
			in, err := scheduler.InputFromRequest(req, opts.Location)
			if err != nil {
				return err
			}
			res, err := scheduler.NewSolver(opts).Solve(in)
			if err != nil {
				return err
			}
			res.RunID = uuid.NewString()

			out := cmd.OutOrStdout()
			if v.GetBool("json") {
				return printJSON(out, res)
			}

			tw := newTable(out, table.Row{"Shift", "Task", "Start", "End", "Assigned"})
			for _, sh := range res.Shifts {
				tw.AppendRow(table.Row{
					sh.ID, sh.TaskID,
					sh.Start.In(opts.Location).Format("2006-01-02 15:04"),
					sh.End.In(opts.Location).Format("2006-01-02 15:04"),
					strings.Join(sh.AssignedPersonIDs, ", "),
				})
			}
			tw.AppendFooter(table.Row{"", "", "", "assigned", res.AssignedCount})
			tw.Render()

			if len(res.Diagnostics.Shortfalls) > 0 {
				st := newTable(out, table.Row{"Shift", "Task", "Role", "Required", "Filled"})
				for _, s := range res.Diagnostics.Shortfalls {
					st.AppendRow(table.Row{s.ShiftID, s.TaskID, s.RoleID, s.Required, s.Filled})
				}
				st.Render()
			}
			fmt.Fprintf(out, "run %s  fairness %.1f\n", res.RunID, res.FairnessScore)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "snapshot JSON file, - for stdin")
	return cmd
}

func historyCmd(v *viper.Viper) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Aggregate history scores from past shifts",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := solverOptions(v)
			if err != nil {
				return err
			}
			var req models.HistoryRequest
			if err := readJSON(input, &req); err != nil {
				return err
			}
			ref, err := scheduler.ParseDate(req.ReferenceDate, opts.Location)
			if err != nil {
				return fmt.Errorf("reference_date: %w", err)
			}

			scores := scheduler.NewHistoryAggregator(opts).Aggregate(req.PastShifts, req.Templates, req.PersonIDs, ref, req.WindowDays)
			out := cmd.OutOrStdout()
			if v.GetBool("json") {
				return printJSON(out, scores)
			}

			ids := make([]string, 0, len(scores))
			for id := range scores {
				ids = append(ids, id)
			}
			slices.Sort(ids)
			tw := newTable(out, table.Row{"Person", "Load", "Shifts", "Critical"})
			for _, id := range ids {
				s := scores[id]
				tw.AppendRow(table.Row{id, fmt.Sprintf("%.2f", s.TotalLoadScore), s.ShiftsCount, s.CriticalShiftCount})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "history request JSON file, - for stdin")
	return cmd
}

// dataFile is the import format: the same records the solve snapshot carries
type dataFile struct {
	People      []models.Person               `json:"people"`
	Templates   []models.TaskTemplate         `json:"templates"`
	Shifts      []models.Shift                `json:"shifts"`
	Constraints []models.SchedulingConstraint `json:"constraints"`
}

func openStore() (*config.Config, *database.Store, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.DatabaseURL, cfg.DataPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, database.NewStore(db), nil
}

func importCmd(v *viper.Viper) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load people, templates, shifts and constraints into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			var data dataFile
			if err := readJSON(input, &data); err != nil {
				return err
			}
			if err := scheduler.ValidateInput(scheduler.Input{
				Date:        time.Now(),
				People:      data.People,
				Templates:   data.Templates,
				Shifts:      data.Shifts,
				Constraints: data.Constraints,
			}); err != nil {
				return err
			}
			_, store, err := openStore()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := store.SavePeople(ctx, data.People); err != nil {
				return err
			}
			if err := store.SaveTemplates(ctx, data.Templates); err != nil {
				return err
			}
			if err := store.SaveShifts(ctx, data.Shifts); err != nil {
				return err
			}
			if err := store.SaveConstraints(ctx, data.Constraints); err != nil {
				return err
			}

			counts := map[string]int{
				"people":      len(data.People),
				"templates":   len(data.Templates),
				"shifts":      len(data.Shifts),
				"constraints": len(data.Constraints),
			}
			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), counts)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d people, %d templates, %d shifts, %d constraints\n",
				counts["people"], counts["templates"], counts["shifts"], counts["constraints"])
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "data JSON file, - for stdin")
	return cmd
}

func planCmd(v *viper.Viper) *cobra.Command {
	var (
		from, to string
		tasks    []string
		reset    bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Solve and persist every day of a date range against the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := openStore()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, "console")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			first, err := scheduler.ParseDate(from, cfg.Location)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			last, err := scheduler.ParseDate(to, cfg.Location)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			p := planner.New(store, scheduler.NewSolver(cfg.Solver.Options(cfg.Location)),
				planner.WithLogger(logger.Named("planner")),
				planner.WithHistoryDays(cfg.Solver.HistoryDays),
			)
			days, runErr := p.Run(cmd.Context(), first, last, planner.RunOptions{SelectedTaskIDs: tasks, ResetUnlocked: reset})
			cancelled := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
			if runErr != nil && !cancelled {
				return runErr
			}
			resp := planner.Summarize(days)
			resp.Cancelled = cancelled

			out := cmd.OutOrStdout()
			if v.GetBool("json") {
				if err := printJSON(out, resp); err != nil {
					return err
				}
				return runErr
			}
			tw := newTable(out, table.Row{"Date", "Status", "Assigned", "Shortfalls", "Run", "Error"})
			for _, d := range resp.Days {
				tw.AppendRow(table.Row{d.Date, d.Status, d.AssignedCount, d.Shortfalls, d.RunID, d.Error})
			}
			summary := fmt.Sprintf("%d ok / %d failed", resp.Succeeded, resp.Failed)
			if resp.Cancelled {
				summary += " (cancelled)"
			}
			tw.AppendFooter(table.Row{"", summary})
			tw.Render()
			return runErr
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&tasks, "task", nil, "restrict to these task ids")
	cmd.Flags().BoolVar(&reset, "reset-unlocked", false, "clear unlocked assignments before solving")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen <userID>",
		Short: "Mint an HMAC API key for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("API_MASTER_SECRET")
			if secret == "" {
				return errors.New("API_MASTER_SECRET is not set")
			}
			key := auth.New("", secret).GenerateHMACKey(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Generated Key for %s:\n%s\n", args[0], key)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			r, err := app.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("server starting", zap.String("port", cfg.Port))
			return r.Run(":" + cfg.Port)
		},
	}
}
