package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/analyzer"
	"github.com/rk-analyzer/internal/config"
	"github.com/rk-analyzer/internal/dataset"
	"github.com/rk-analyzer/internal/progress"
	"github.com/rk-analyzer/internal/store/memstore"
	"github.com/rk-analyzer/internal/web"
)

// createAnalyzeCmd analyses the named datasets
func createAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [dataset...]",
		Short: "Analyse datasets and store their quality state",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasets(cmd.Context(), args, nil, 1)
		},
	}
}

// createAnalyzeAllCmd analyses every registered dataset
func createAnalyzeAllCmd() *cobra.Command {
	var (
		skip     []string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "analyze-all",
		Short: "Analyse every registered dataset",
		Example: `  # Analyse everything except two datasets, three at a time
  analyzer analyze-all --skip legacy_roads,test_layer --parallel 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasets(cmd.Context(), nil, skip, parallel)
		},
	}

	cmd.Flags().StringSliceVar(&skip, "skip", nil, "Datasets to leave out")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "Datasets analysed at once")
	return cmd
}

// runDatasets analyses names, or every registered dataset when names is empty
func runDatasets(ctx context.Context, names, skip []string, parallel int) error {
	conn, st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if len(names) == 0 {
		if names, err = st.Datasets(ctx); err != nil {
			return err
		}
	}

	tracker := progress.NewTracker()
	sink := progressSink(tracker)
	a, err := newAnalyzer(ctx, st, sink)
	if err != nil {
		return err
	}

	outcomes, err := analyzer.NewRunner(a, sink).
		WithSkip(skip...).
		WithParallel(parallel).
		Run(ctx, names)
	printOutcomes(outcomes)
	return err
}

func printOutcomes(outcomes []analyzer.Outcome) {
	for _, o := range outcomes {
		switch {
		case o.State != nil:
			p := o.State.Properties
			fmt.Printf("%-40s geometry=%-5v address=%-5v address_features=%-5v geometry_features=%-5v connected=%-5v enriched=%-5v published=%v\n",
				o.Dataset, p.HasGeometry, p.HasAddress, p.HasAddressFeatures, p.HasGeometryFeatures, p.Connected, p.Enriched, p.Published)
		case o.Err != nil:
			fmt.Printf("%-40s error: %v\n", o.Dataset, o.Err)
		case o.Skipped:
			fmt.Printf("%-40s skipped\n", o.Dataset)
		}
	}
}

// loadFileStore builds an in-memory store from a data file and its structure
func loadFileStore(data, structure string) (*memstore.Store, string, error) {
	docs, err := memstore.LoadDocuments(data)
	if err != nil {
		return nil, "", err
	}
	st, err := memstore.LoadStructure(structure)
	if err != nil {
		return nil, "", err
	}
	if st.Name == "" {
		return nil, "", fmt.Errorf("%w: structure %s names no dataset", dataset.ErrConfiguration, structure)
	}

	s := memstore.New(settings.Locale)
	s.Add(st.Dataset(docs))
	return s, st.Name, nil
}

// createAnalyzeFileCmd analyses a dataset file without a database
func createAnalyzeFileCmd() *cobra.Command {
	var data, structure, out string

	cmd := &cobra.Command{
		Use:   "analyze-file",
		Short: "Analyse a JSONL, JSON or Parquet file",
		Example: `  analyzer analyze-file --data shops.parquet --structure shops.yaml --out state.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, name, err := loadFileStore(data, structure)
			if err != nil {
				return err
			}
			env, err := analyzer.NewEnv(settings, logger)
			if err != nil {
				return err
			}

			state, err := analyzer.New(env, s, progress.NewLogSink(logger)).Analyze(cmd.Context(), name)
			if err != nil {
				return err
			}
			return writeOutput(out, state)
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "Dataset file (.jsonl, .json or .parquet)")
	cmd.Flags().StringVar(&structure, "structure", "", "Dataset structure (YAML)")
	cmd.Flags().StringVar(&out, "out", "", "Output file, stdout when empty")
	cmd.MarkFlagRequired("data")
	cmd.MarkFlagRequired("structure")
	return cmd
}

func writeOutput(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}

// createSuggestRolesCmd proposes address roles for undeclared fields
func createSuggestRolesCmd() *cobra.Command {
	var data, structure string

	cmd := &cobra.Command{
		Use:   "suggest-roles [dataset]",
		Short: "Suggest address roles for fields without one",
		Long: `Parses the values of every string field without a role and proposes the
address role most values agree on. Reads a file with --data/--structure,
otherwise the named dataset from PostgreSQL.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := analyzer.NewEnv(settings, logger)
			if err != nil {
				return err
			}

			var a *analyzer.Analyzer
			var name string
			if data != "" {
				s, n, err := loadFileStore(data, structure)
				if err != nil {
					return err
				}
				a, name = analyzer.New(env, s, nil), n
			} else {
				if len(args) == 0 {
					return errors.New("dataset name or --data is required")
				}
				conn, st, err := openStore(ctx)
				if err != nil {
					return err
				}
				defer conn.Close()
				a, name = analyzer.New(env, st, nil), args[0]
			}

			suggestions, err := a.SuggestRoles(ctx, name)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Println("No suggestions")
				return nil
			}
			for _, s := range suggestions {
				v, _ := s.Support.Get()
				fmt.Printf("%-30s %-12s %.2f\n", s.Field, s.RoleTag, v)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "Dataset file (.jsonl, .json or .parquet)")
	cmd.Flags().StringVar(&structure, "structure", "", "Dataset structure (YAML)")
	cmd.MarkFlagsRequiredTogether("data", "structure")
	return cmd
}

// createLoadCmd imports a dataset file into PostgreSQL
func createLoadCmd() *cobra.Command {
	var data, structure, textConfig string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Import a dataset file with its structure into PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			docs, err := memstore.LoadDocuments(data)
			if err != nil {
				return err
			}
			st, err := memstore.LoadStructure(structure)
			if err != nil {
				return err
			}
			ds := st.Dataset(docs)
			if ds.Name == "" {
				return fmt.Errorf("%w: structure %s names no dataset", dataset.ErrConfiguration, structure)
			}

			conn, pg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := pg.ImportDocuments(ctx, ds.Name, ds.Docs); err != nil {
				return err
			}
			if err := pg.SaveFields(ctx, ds.Name, ds.Fields); err != nil {
				return err
			}
			if err := pg.SaveRecord(ctx, ds.Record); err != nil {
				return err
			}
			for _, ix := range ds.Indexes {
				for i, key := range ix.Keys {
					if err := pg.CreateIndex(ctx, ds.Name, fmt.Sprintf("%s_%d", ix.Name, i), dataset.SplitPath(key), ""); err != nil {
						return err
					}
				}
				for i, key := range ix.TextKeys {
					if err := pg.CreateIndex(ctx, ds.Name, fmt.Sprintf("%s_text_%d", ix.Name, i), dataset.SplitPath(key), textConfig); err != nil {
						return err
					}
				}
			}
			logger.Info("Dataset loaded", zap.String("dataset", ds.Name), zap.Int("documents", len(ds.Docs)), zap.Int("fields", len(ds.Fields)))
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "Dataset file (.jsonl, .json or .parquet)")
	cmd.Flags().StringVar(&structure, "structure", "", "Dataset structure (YAML)")
	cmd.Flags().StringVar(&textConfig, "text-config", "russian", "Full-text search configuration of text indexes")
	cmd.MarkFlagRequired("data")
	cmd.MarkFlagRequired("structure")
	return cmd
}

// createMigrateCmd creates the metadata schema and seeds the registry
func createMigrateCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create schemas, collation and metadata tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := st.Migrate(ctx, settings.Locale); err != nil {
				return err
			}
			if !seed {
				return nil
			}
			dict, err := config.LoadDictionary(settings.DictionaryPath)
			if err != nil {
				return err
			}
			return st.SeedRegistry(ctx, dict.Regions)
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", true, "Seed the region registry from the dictionary")
	return cmd
}

// createPingCmd creates a command to test database connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Println("Database connection successful!")

			names, err := st.Datasets(ctx)
			if err != nil {
				logger.Warn("Failed to list datasets", zap.Error(err))
				return nil
			}
			fmt.Printf("Registered datasets: %d\n", len(names))
			if len(names) > 0 {
				fmt.Println(strings.Join(names, "\n"))
			}
			return nil
		},
	}
}

// createServeCmd starts the HTTP API
func createServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg := web.ConfigFromSettings(settings.Server)
			if configFile != "" {
				var err error
				if cfg, err = web.LoadConfig(configFile); err != nil {
					return err
				}
			}

			conn, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			tracker := progress.NewTracker()
			a, err := newAnalyzer(ctx, st, progressSink(tracker))
			if err != nil {
				return err
			}

			server := web.NewServer(cfg, web.Deps{
				Analyzer: a,
				Store:    st,
				Tracker:  tracker,
				DB:       conn,
				Logger:   logger,
			})
			return server.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "JSON web configuration overriding the environment")
	return cmd
}
