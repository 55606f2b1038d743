package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/IntricEight/MentalHealthDungeon/internal/app"
	"github.com/IntricEight/MentalHealthDungeon/internal/catalog"
	"github.com/IntricEight/MentalHealthDungeon/internal/clock"
	"github.com/IntricEight/MentalHealthDungeon/internal/db"
	"github.com/IntricEight/MentalHealthDungeon/internal/events"
	"github.com/IntricEight/MentalHealthDungeon/internal/migrate"
	"github.com/IntricEight/MentalHealthDungeon/internal/progression"
	"github.com/IntricEight/MentalHealthDungeon/internal/server"
	"github.com/IntricEight/MentalHealthDungeon/internal/store"
)

const taskElapsedMessage = "Time's up!"

var rootCmd = &cobra.Command{
	Use:   "mhd",
	Short: "MentalHealthDungeon CLI",
	Long: `MentalHealthDungeon turns small self-care chores into a dungeon crawl.
- Tasks: chores with a point value and a deadline. Finish in time to earn
  inspiration points; let the timer run out and the points are gone.
- Inspiration points: the currency. The balance is capped; dungeon
  rewards raise the cap.
- Adventures: spend points to enter a dungeon, wait out its timer, then
  collect the reward. One adventure at a time.
- Event log: diary of every change, view with 'mhd log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
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
	viper.SetEnvPrefix("MHD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().StringP("account", "a", "", "account id")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("account", rootCmd.PersistentFlags().Lookup("account"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(dungeonCmd())
	rootCmd.AddCommand(presetsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func accountCmd() *cobra.Command {
	acct := &cobra.Command{Use: "account", Short: "Manage accounts"}
	acct.AddCommand(accountCreateCmd())
	acct.AddCommand(accountShowCmd())
	acct.AddCommand(accountListCmd())
	return acct
}

func accountCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				doc, err := svc.CreateAccount(ctx, accountID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(doc)
				}
				fmt.Printf("Created account %s (capacity %d)\n", accountID, doc.Capacity)
				return nil
			})
		},
	}
	return cmd
}

func accountShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show account state",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				doc, err := svc.Account(ctx, accountID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(doc)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRow(table.Row{"Account", accountID})
				tw.AppendRow(table.Row{"Inspiration points", fmt.Sprintf("%d / %d", doc.InspirationPoints, doc.Capacity)})
				tw.AppendRow(table.Row{"Active tasks", len(doc.TaskList)})
				tw.AppendRow(table.Row{"Tasks completed", doc.TasksCompleted})
				tw.AppendRow(table.Row{"Dungeons completed", doc.DungeonsCompleted})
				if doc.ActiveDungeonName != "" {
					tw.AppendRow(table.Row{"Adventure", doc.ActiveDungeonName})
					if doc.DungeonEndTime != nil {
						tw.AppendRow(table.Row{"Ends at", doc.DungeonEndTime.Format(time.RFC3339)})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func accountListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				ids, err := svc.ListAccounts(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ids)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID"})
				for _, id := range ids {
					tw.AppendRow(table.Row{id})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskPresetCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskCompleteCmd())
	task.AddCommand(taskDropCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var (
		name, details string
		points        int
		hours         float64
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a custom task",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				task, err := svc.AddTask(ctx, accountID, name, details, points, hours)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(task)
				}
				fmt.Printf("Added %q (%d pts, due %s): %s\n", task.Name, task.Points,
					task.ExpirationTime.Format(time.RFC3339), task.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&details, "details", "", "task details")
	cmd.Flags().IntVar(&points, "points", 1, "points earned on completion")
	cmd.Flags().Float64Var(&hours, "hours", 24, "hours until the deadline")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func taskPresetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset <name>",
		Short: "Add a task from the preset catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				task, err := svc.AddPresetTask(ctx, accountID, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(task)
				}
				fmt.Printf("Added %q (%d pts, due %s): %s\n", task.Name, task.Points,
					task.ExpirationTime.Format(time.RFC3339), task.ID)
				return nil
			})
		},
	}
	return cmd
}

func taskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				tasks, err := svc.ListTasks(ctx, accountID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				now := time.Now()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Points", "Remaining"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Points, clock.Remaining(now, t.ExpirationTime, taskElapsedMessage)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Complete a task",
		Long:  "Removes the task. Points are credited only when the deadline has not passed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				credited, err := svc.CompleteTask(ctx, accountID, args[0])
				if err != nil {
					return err
				}
				if credited {
					fmt.Println("Task complete, points credited")
				} else {
					fmt.Println("Deadline passed, no points credited")
				}
				return nil
			})
		},
	}
	return cmd
}

func taskDropCmd() *cobra.Command {
	var completed bool
	cmd := &cobra.Command{
		Use:   "drop <task-id>",
		Short: "Drop a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				if err := svc.RemoveTask(ctx, accountID, args[0], completed); err != nil {
					return err
				}
				fmt.Println("Task dropped")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "credit the task's points anyway")
	return cmd
}

func dungeonCmd() *cobra.Command {
	dungeon := &cobra.Command{Use: "dungeon", Short: "Dungeon adventures"}
	dungeon.AddCommand(dungeonListCmd())
	dungeon.AddCommand(dungeonBeginCmd())
	dungeon.AddCommand(dungeonStatusCmd())
	dungeon.AddCommand(dungeonCompleteCmd())
	return dungeon
}

func dungeonListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dungeon definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				dungeons := svc.Catalog.Dungeons()
				if viper.GetBool("json") {
					return printJSON(dungeons)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Cost", "Hours", "Rewards"})
				for _, d := range dungeons {
					var rewards []string
					for _, r := range d.Rewards {
						tag := r.Raw
						if tag == "" {
							tag = string(r.Kind)
						}
						rewards = append(rewards, fmt.Sprintf("%s+%d", tag, r.Value))
					}
					tw.AppendRow(table.Row{d.ID, d.Name, d.Cost, d.Hours, strings.Join(rewards, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func dungeonBeginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "begin <dungeon-name>",
		Short: "Spend points to begin an adventure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				adv, err := svc.BeginAdventure(ctx, accountID, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(adv)
				}
				fmt.Printf("Entered %s for %d points. Returns at %s\n",
					adv.DungeonName, adv.Cost, adv.EndsAt.Format(time.RFC3339))
				return nil
			})
		},
	}
	return cmd
}

func dungeonStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current adventure",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				status, err := svc.AdventureStatus(ctx, accountID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(status)
				}
				switch status.State {
				case progression.StateIdle:
					fmt.Println("No adventure underway")
				case progression.StateActive:
					fmt.Printf("In %s. %s remaining\n", status.DungeonName, status.Remaining)
				case progression.StateResolvable:
					fmt.Printf("%s finished. Run 'mhd dungeon complete' to collect the reward\n", status.DungeonName)
				}
				return nil
			})
		},
	}
	return cmd
}

func dungeonCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Collect a finished adventure's reward",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				doc, err := svc.CompleteAdventure(ctx, accountID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(doc)
				}
				fmt.Printf("Adventure complete! Capacity is now %d (%d dungeons cleared)\n",
					doc.Capacity, doc.DungeonsCompleted)
				return nil
			})
		},
	}
	return cmd
}

func presetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List preset task definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				presets := svc.Catalog.Presets()
				if viper.GetBool("json") {
					return printJSON(presets)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Points", "Hours"})
				for _, p := range presets {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Points, p.Hours})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail an account's events",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount()
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(ctx context.Context, conn *sql.DB) error {
				tail, err := events.Tail(ctx, conn, accountID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tail)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Payload"})
				for _, e := range tail {
					payload, _ := json.Marshal(e.Payload)
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, string(payload)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service) error {
				handler, err := server.New(server.Config{Service: svc, BasePath: basePath})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving MentalHealthDungeon API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func requireAccount() (string, error) {
	accountID := viper.GetString("account")
	if accountID == "" {
		return "", fmt.Errorf("--account required (or MHD_ACCOUNT)")
	}
	return accountID, nil
}

func withService(ctx context.Context, fn func(context.Context, *app.Service) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	svc := app.New(store.NewSQLite(conn), cat)
	return fn(ctx, svc)
}

func withDB(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, conn)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
