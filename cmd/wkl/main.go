package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"worklist/internal/app"
	"worklist/internal/config"
	"worklist/internal/db"
	"worklist/internal/domain"
	"worklist/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "wkl",
	Short: "Worklist CLI",
	Long: `Worklist keeps the shared task list of a team working at one or more locations.
- Tasks are SHOPPING items, TODOs or NOTEs; they move OPEN -> IN_PROGRESS -> DONE and end ARCHIVED.
- Every task belongs to a tenant and a location; you only see your own location unless you can view all.
- Personal tasks are visible to their creator only and never have assignees.
- Similar active titles are rejected as duplicates; check first with 'wkl task dupes'.
- Every change lands in the task history, shown with 'wkl task history'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("WORKLIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.BoolP("verbose", "v", false, "debug logging on stderr")
	flags.String("user", "local-user", "acting user id")
	flags.String("tenant", "default", "tenant id")
	flags.String("location", "default", "location id")
	flags.Bool("manager", false, "act as a manager")
	flags.Bool("can-view-all", false, "see every location of the tenant")
	flags.Bool("can-manage-all", false, "manage every task in scope")
	for _, name := range []string{"workspace", "json", "verbose", "user", "tenant", "location", "manager", "can-view-all", "can-manage-all"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func permissionContext() domain.PermissionContext {
	return domain.PermissionContext{
		UserID:       viper.GetString("user"),
		TenantID:     viper.GetString("tenant"),
		LocationID:   viper.GetString("location"),
		IsManager:    viper.GetBool("manager"),
		CanViewAll:   viper.GetBool("can-view-all"),
		CanManageAll: viper.GetBool("can-manage-all"),
	}
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create worklist.yml and the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"config": path})
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect worklist.yml",
		Long:  "Config tunes the store driver, duplicate threshold, page sizes, the day-boundary timezone and the API server. Missing keys keep their defaults.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate worklist.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task statistics for your scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				st, err := rt.Engine.GetStatistics(ctx, permissionContext())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Metric", "Count"})
				tw.AppendRows([]table.Row{
					{"total", st.Total},
					{"open", st.ByStatus.Open},
					{"in progress", st.ByStatus.InProgress},
					{"done", st.ByStatus.Done},
					{"archived", st.ByStatus.Archived},
					{"shopping", st.ByType.Shopping},
					{"todo", st.ByType.Todo},
					{"note", st.ByType.Note},
					{"urgent", st.ByPriority.Urgent},
					{"overdue", st.OverdueTasks},
					{"completed today", st.CompletedToday},
					{"assigned to me", st.AssignedToMe},
				})
				tw.Render()
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowHeaders bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if !cmd.Flags().Changed("addr") {
					addr = rt.Config.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") {
					basePath = rt.Config.Server.BasePath
				}
				authCfg := server.AuthConfig{
					JWTSecret:          os.Getenv("WORKLIST_JWT_SECRET"),
					AllowHeaderContext: allowHeaders,
					Logger:             logger,
				}
				if authCfg.JWTSecret == "" && !allowHeaders {
					return fmt.Errorf("WORKLIST_JWT_SECRET is required for bearer auth")
				}
				handler, err := server.New(server.Config{Engine: rt.Engine, BasePath: basePath, Auth: authCfg, Logger: logger})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logger.Info("serving worklist API", "addr", addr, "base_path", basePath, "driver", rt.Config.Store.Driver)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				logger.Info("server stopped")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowHeaders, "allow-header-context", false, "accept X-User-Id style headers without a token (development only)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the current identity flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := server.IssueToken(os.Getenv("WORKLIST_JWT_SECRET"), permissionContext(), ttl)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	rt, err := app.Open(ctx, viper.GetString("workspace"), newLogger())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
