package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"logicforge/internal/app"
	"logicforge/internal/config"
	"logicforge/internal/db"
	"logicforge/internal/domain"
	"logicforge/internal/engine"
	"logicforge/internal/repo"
	"logicforge/internal/search"
	"logicforge/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "logicforge",
	Short: "LogicForge CLI",
	Long: `LogicForge guides education programs through a five-step logical framework design.
- Programs move forward through Problem, Stakeholders, Proven Models, Outcomes and Review.
- A step can only be completed once its gate holds (completed problem statement, a stakeholder, an outcome).
- The catalog holds proven models; search ranks them by embedding similarity and falls back to keywords.
- Export renders the design document and completes a program at the last step.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LOGICFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".logicforge", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/logicforge.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "local-user", "acting user id")
	for _, name := range []string{"workspace", "config", "json", "user"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(programCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(apikeyCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the workspace, migrate the database and write a default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Println("Wrote", cfgPath)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				fmt.Println("Workspace ready at", workspace)
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
				if addr != "" {
					rt.Config.Server.Addr = addr
				}
				if rt.Config.Server.JWTSecret == "" && !rt.Config.Server.AllowLegacyUserHeader {
					rt.Logger.Warn("no jwt secret configured; only API keys will authenticate")
				}
				handler, err := rt.Handler()
				if err != nil {
					return err
				}
				server.NewWebhookDispatcher(rt.Engine, rt.Logger).Start(ctx)
				srv := &http.Server{Addr: rt.Config.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				rt.Logger.Info("serving LogicForge API",
					zap.String("addr", rt.Config.Server.Addr),
					zap.String("base_path", rt.Config.Server.BasePath),
					zap.String("docs", "/docs"))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func programCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "program", Short: "Manage programs"}
	cmd.AddCommand(programCreateCmd())
	cmd.AddCommand(programListCmd())
	cmd.AddCommand(programShowCmd())
	cmd.AddCommand(programDeleteCmd())
	cmd.AddCommand(programCompleteStepCmd())
	return cmd
}

func programCreateCmd() *cobra.Command {
	var title, desc, templateID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create program, optionally from a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var (
					p   domain.Program
					err error
				)
				if templateID != "" {
					p, err = rt.Engine.CreateFromTemplate(ctx, templateID, currentUser(), title)
				} else {
					p, err = rt.Engine.CreateProgram(ctx, engine.ProgramCreateOptions{UserID: currentUser(), Title: title, Description: desc})
				}
				if err != nil {
					return err
				}
				return printPrograms([]domain.Program{p})
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "program title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&templateID, "template", "", "template id")
	return cmd
}

func programListCmd() *cobra.Command {
	var f repo.ProgramFilters
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if !all {
					f.UserID = currentUser()
				}
				items, err := rt.Engine.ListPrograms(ctx, f)
				if err != nil {
					return err
				}
				return printPrograms(items)
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max programs")
	cmd.Flags().BoolVar(&all, "all", false, "include every user's programs")
	return cmd
}

func programShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a program with its components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if _, err := rt.Engine.Auth.RequireProgramOwner(ctx, nil, args[0], currentUser()); err != nil {
					return err
				}
				snap, err := rt.Engine.Repo.Snapshot(ctx, nil, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Section", "Item", "Detail"})
				tw.AppendRow(table.Row{"program", snap.Program.Title, fmt.Sprintf("step %d, %s", snap.Program.CurrentStep, snap.Program.Status)})
				if snap.Problem != nil {
					tw.AppendRow(table.Row{"problem", snap.Problem.Theme, snap.Problem.ChallengeText})
				}
				for _, s := range snap.Stakeholders {
					tw.AppendRow(table.Row{"stakeholder", s.Name, s.Priority})
				}
				for _, m := range snap.Models {
					tw.AppendRow(table.Row{"model", m.Model.Name, m.Notes})
				}
				for _, o := range snap.Outcomes {
					tw.AppendRow(table.Row{"outcome", o.Description, fmt.Sprintf("%d indicators", len(o.Indicators))})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func programDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a program and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if _, err := rt.Engine.Auth.RequireProgramOwner(ctx, nil, args[0], currentUser()); err != nil {
					return err
				}
				if err := rt.Engine.DeleteProgram(ctx, args[0], currentUser()); err != nil {
					return err
				}
				fmt.Println("Deleted", args[0])
				return nil
			})
		},
	}
}

func programCompleteStepCmd() *cobra.Command {
	var step int
	cmd := &cobra.Command{
		Use:   "complete-step <id>",
		Short: "Complete the program's current step (or --step)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.Auth.RequireProgramOwner(ctx, nil, args[0], currentUser())
				if err != nil {
					return err
				}
				if step == 0 {
					step = p.CurrentStep
				}
				res, err := rt.Engine.CompleteStep(ctx, args[0], step, currentUser())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if !res.Advanced {
					fmt.Printf("No change: program is at step %d\n", res.Program.CurrentStep)
					return nil
				}
				fmt.Printf("Advanced to step %d (%s)\n", res.Program.CurrentStep, res.Program.Status)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&step, "step", 0, "step to complete (default current step)")
	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "Manage the proven model catalog"}
	cmd.AddCommand(catalogImportCmd())
	cmd.AddCommand(catalogListCmd())
	cmd.AddCommand(catalogSearchCmd())
	return cmd
}

// catalogEntry is the import file format; unlike the API it carries embeddings.
type catalogEntry struct {
	domain.ProvenModel
	Embedding []float32 `json:"embedding,omitempty"`
}

func catalogImportCmd() *cobra.Command {
	var embed bool
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Upsert models by name from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var entries []catalogEntry
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				models := make([]domain.ProvenModel, len(entries))
				for i, entry := range entries {
					models[i] = entry.ProvenModel
					models[i].Embedding = entry.Embedding
					if embed && len(entry.Embedding) == 0 {
						vec, err := rt.Search.Embedder.EmbedQuery(ctx, entry.Name+"\n"+entry.Description)
						if err != nil {
							return fmt.Errorf("embed %q: %w", entry.Name, err)
						}
						models[i].Embedding = vec
					}
				}
				n, err := rt.Engine.ImportModels(ctx, models)
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d models\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&embed, "embed", false, "compute missing embeddings with the configured provider")
	return cmd
}

func catalogListCmd() *cobra.Command {
	var theme string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListModels(ctx, theme, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Themes"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.Name, strings.Join(m.Themes, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "theme filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "max models")
	return cmd
}

func catalogSearchCmd() *cobra.Command {
	var theme string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Recommend models for a problem description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Search.Search(ctx, search.Query{Text: strings.Join(args, " "), Theme: theme, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if res.Degraded {
					fmt.Printf("Keyword results (semantic search unavailable: %s)\n", res.Reason)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"#", "Name", "Themes", "Distance"})
				for i, m := range res.Matches {
					dist := "-"
					if m.Distance != nil {
						dist = fmt.Sprintf("%.4f", *m.Distance)
					}
					tw.AppendRow(table.Row{i + 1, m.Model.Name, strings.Join(m.Model.Themes, ", "), dist})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "theme filter")
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "max results")
	return cmd
}

func exportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export <program-id>",
		Short: "Render the program design document to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if _, err := rt.Engine.Auth.RequireProgramOwner(ctx, nil, args[0], currentUser()); err != nil {
					return err
				}
				res, err := rt.Engine.GenerateDocument(ctx, args[0], format, currentUser())
				if err != nil {
					return err
				}
				path := out
				if path == "" {
					path = res.Document.Filename
				}
				if err := os.WriteFile(path, res.Content, 0o644); err != nil {
					return err
				}
				abs, _ := filepath.Abs(path)
				fmt.Printf("Wrote %s (%d bytes); program is %s\n", abs, len(res.Content), res.Program.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json, csv or text")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default derived from title)")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show XP, level and badges for the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				stats, err := rt.Engine.UserStats(ctx, currentUser())
				if err != nil {
					return err
				}
				badges, err := rt.Engine.ListBadges(ctx, currentUser())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"stats": stats, "badges": badges})
				}
				fmt.Printf("%s: level %d %s, %d XP (%d to next), %d/%d programs completed\n",
					stats.UserID, stats.Level, stats.LevelTitle, stats.TotalXP, stats.XPToNextLevel,
					stats.ProgramsCompleted, stats.ProgramsCreated)
				tw := newTable()
				tw.AppendHeader(table.Row{"Step", "Badge", "Earned"})
				for _, b := range badges {
					tw.AppendRow(table.Row{b.StepNumber, b.Name, b.Earned})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func leaderboardCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank users by XP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				entries, err := rt.Engine.Leaderboard(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Rank", "User", "XP", "Level"})
				for _, en := range entries {
					tw.AppendRow(table.Row{en.Rank, en.UserID, en.TotalXP, fmt.Sprintf("%d %s", en.Level, en.LevelTitle)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "max entries")
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key for --user; the key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				key, secret, err := rt.Engine.CreateAPIKey(ctx, currentUser(), name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "user_id": key.UserID, "name": key.Name, "key": secret})
				}
				fmt.Printf("API key for %s (store it now, it is not shown again):\n%s\n", key.UserID, secret)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key label")
	cmd.AddCommand(create)
	return cmd
}

// --- helpers ---

func currentUser() string {
	return viper.GetString("user")
}

// applyEnv layers LOGICFORGE_* variables over the file config.
func applyEnv(cfg *config.Config) {
	if v := viper.GetString("ai_api_key"); v != "" {
		cfg.AI.APIKey = v
		if cfg.AI.Provider == config.ProviderNone || cfg.AI.Provider == "" {
			cfg.AI.Provider = config.ProviderOpenAI
		}
	}
	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := viper.GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.Logging.Level = v
	}
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	rt, err := app.Open(ctx, app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
		Override:   applyEnv,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printPrograms(items []domain.Program) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Title", "Step", "Status", "Owner"})
	for _, p := range items {
		tw.AppendRow(table.Row{p.ID, p.Title, p.CurrentStep, p.Status, p.UserID})
	}
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
