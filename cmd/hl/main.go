package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireline/internal/app"
	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/engine"
	"hireline/internal/migrate"
	"hireline/internal/repo"
	"hireline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hl",
	Short: "Hireline CLI",
	Long: `Hireline tracks job applications through per-job hiring pipelines.
Core concepts:
- Workspace: your .hireline directory holding only the database; configs live in the DB and are imported explicitly.
- Company: the tenant that owns jobs, tags, and api keys. Every command and API call is scoped to one company.
- Job: a position with its own ordered pipeline of stages (e.g. Triagem -> Entrevista -> Contratação).
- Application: a candidate's submission to a job; starts unplaced, then moves stage to stage.
- Stage history: the append-only ledger of moves; replaying it always reproduces the current stage.
- Tags: reusable company-wide labels attached to applications (hl tag / hl application tag).`,
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
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load(filepath.Join(viper.GetString("workspace"), ".env"))
	viper.SetEnvPrefix("HIRELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "recruiter identifier")
	rootCmd.PersistentFlags().String("company", "", "company id (overrides the single-company default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("company", rootCmd.PersistentFlags().Lookup("company"))
}

func registerCommands() {
	rootCmd.AddCommand(companyCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(tagCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func companyCmd() *cobra.Command {
	c := &cobra.Command{Use: "company", Short: "Manage companies"}
	c.AddCommand(companyInitCmd())
	c.AddCommand(companyListCmd())
	c.AddCommand(companyShowCmd())
	c.AddCommand(companyConfigCmd())
	return c
}

func companyInitCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg := config.Default(id)
			e := engine.New(conn, cfg)
			c, err := e.InitCompany(cmd.Context(), id, name, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "company id")
	cmd.Flags().StringVar(&name, "name", "", "company name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func companyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListCompanies(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func companyShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active company",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetCompany(ctx, e.Config.Company.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func companyConfigCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage company config",
	}
	cfg.AddCommand(companyConfigShowCmd())
	cfg.AddCommand(companyConfigImportCmd())
	cfg.AddCommand(companyConfigValidateCmd())
	return cfg
}

func companyConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show company config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func companyConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import company config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			cfg, err := config.FromYAML(data)
			if err != nil {
				return err
			}
			companyID := cfg.Company.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if companyID == "" {
					companyID = e.Config.Company.ID
				}
				if err := e.Repo.UpsertCompanyConfig(ctx, companyID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func companyConfigValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
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
	return cmd
}

func jobCmd() *cobra.Command {
	job := &cobra.Command{
		Use:   "job",
		Short: "Manage jobs",
		Long:  "Jobs are open positions. Each owns an ordered pipeline of stages; statuses go draft -> published -> paused/closed.",
	}
	job.AddCommand(jobCreateCmd())
	job.AddCommand(jobListCmd())
	job.AddCommand(jobGetCmd())
	job.AddCommand(jobStatusCmd())
	job.AddCommand(jobStagesCmd())
	job.AddCommand(jobBoardCmd())
	return job
}

func jobCreateCmd() *cobra.Command {
	var opts engine.JobCreateOptions
	var stages []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job",
		Long:  "Create a job with its pipeline. --stage is repeatable and ordered; omit it to use the company's default pipeline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			for i, name := range stages {
				opts.Stages = append(opts.Stages, engine.StageInput{Name: name, OrderIndex: i})
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.CompanyID == "" {
					opts.CompanyID = e.Config.Company.ID
				}
				job, jobStages, err := e.CreateJob(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"job": job, "stages": jobStages})
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "job id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringArrayVar(&stages, "stage", []string{}, "stage name in pipeline order (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func jobListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				jobs, err := e.Repo.ListJobs(ctx, repo.JobFilters{CompanyID: e.Config.Company.ID, Status: status})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(jobs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Created"})
				for _, j := range jobs {
					tw.AppendRow(table.Row{j.ID, j.Title, j.Status, j.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func jobGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get job with its pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.Repo.GetJob(ctx, e.Config.Company.ID, id)
				if err != nil {
					return err
				}
				stages, err := e.Repo.ListStages(ctx, id, false)
				if err != nil {
					return err
				}
				counts, err := e.Repo.CountApplicationsByStage(ctx, e.Config.Company.ID, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"job": j, "stages": stages, "application_counts": counts})
			})
		},
	}
	return cmd
}

func jobStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Update job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.SetJobStatus(ctx, e.Config.Company.ID, id, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (published, paused, closed)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func jobStagesCmd() *cobra.Command {
	stagesCmd := &cobra.Command{
		Use:   "stages",
		Short: "Manage a job's pipeline",
	}
	stagesCmd.AddCommand(jobStagesListCmd())
	stagesCmd.AddCommand(jobStagesSetCmd())
	return stagesCmd
}

func jobStagesListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list <job-id>",
		Short: "List pipeline stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetJob(ctx, e.Config.Company.ID, jobID); err != nil {
					return err
				}
				stages, err := e.Repo.ListStages(ctx, jobID, !all)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stages)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Order", "ID", "Name", "Active"})
				for _, s := range stages {
					tw.AppendRow(table.Row{s.OrderIndex, s.ID, s.Name, s.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include deactivated stages")
	return cmd
}

func jobStagesSetCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "set <job-id>",
		Short: "Replace a job's pipeline from a JSON file",
		Long: `Replace the pipeline with the stage list in --file (JSON array of
{"id","name","description","order_index"}). Stages holding applications cannot
be dropped; stages referenced only by history are deactivated instead of
deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var rows []struct {
				ID          string `json:"id"`
				Name        string `json:"name"`
				Description string `json:"description"`
				OrderIndex  int    `json:"order_index"`
			}
			if err := json.Unmarshal(data, &rows); err != nil {
				return fmt.Errorf("parse stage file: %w", err)
			}
			inputs := make([]engine.StageInput, 0, len(rows))
			for _, row := range rows {
				inputs = append(inputs, engine.StageInput{ID: row.ID, Name: row.Name, Description: row.Description, OrderIndex: row.OrderIndex})
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stages, err := e.RewriteStages(ctx, e.Config.Company.ID, jobID, inputs)
				if err != nil {
					return err
				}
				return printJSONOrTable(stages)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to JSON stage list")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func jobBoardCmd() *cobra.Command {
	var sort string
	cmd := &cobra.Command{
		Use:   "board <job-id>",
		Short: "Show the job's pipeline board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				board, err := e.GetBoard(ctx, e.Config.Company.ID, jobID, repo.BoardSort(sort))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(board)
				}
				for _, col := range board.Columns {
					fmt.Printf("%s (%d)\n", col.Stage.Name, len(col.Applications))
					for _, a := range col.Applications {
						fmt.Printf("  %s  %s %s\n", a.ID, a.FirstName, a.LastName)
					}
				}
				if len(board.Unplaced) > 0 {
					fmt.Printf("Unplaced (%d)\n", len(board.Unplaced))
					for _, a := range board.Unplaced {
						fmt.Printf("  %s  %s %s\n", a.ID, a.FirstName, a.LastName)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sort, "sort", "recent", "column ordering (recent, score)")
	return cmd
}

func applicationCmd() *cobra.Command {
	appCmd := &cobra.Command{
		Use:   "application",
		Short: "Manage applications",
		Long:  "Applications are candidate submissions. They start unplaced; 'hl application move' places them on the board and every move lands in the stage history ledger.",
	}
	appCmd.AddCommand(applicationCreateCmd())
	appCmd.AddCommand(applicationListCmd())
	appCmd.AddCommand(applicationGetCmd())
	appCmd.AddCommand(applicationMoveCmd())
	appCmd.AddCommand(applicationHistoryCmd())
	appCmd.AddCommand(applicationVerifyCmd())
	appCmd.AddCommand(applicationTagCmd())
	return appCmd
}

func applicationCreateCmd() *cobra.Command {
	var opts engine.ApplicationCreateOptions
	var email, phone string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an application",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Email = optionalString(email)
			opts.Phone = optionalString(phone)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.CompanyID == "" {
					opts.CompanyID = e.Config.Company.ID
				}
				a, err := e.CreateApplication(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "application id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.JobID, "job", "", "job id")
	cmd.Flags().StringVar(&opts.FirstName, "first-name", "", "candidate first name")
	cmd.Flags().StringVar(&opts.LastName, "last-name", "", "candidate last name")
	cmd.Flags().StringVar(&email, "email", "", "candidate email")
	cmd.Flags().StringVar(&phone, "phone", "", "candidate phone")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	return cmd
}

func applicationListCmd() *cobra.Command {
	var f repo.ApplicationFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications for a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.CompanyID = e.Config.Company.ID
				items, err := e.Repo.ListApplications(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Stage", "Created"})
				for _, a := range items {
					stage := "unplaced"
					if a.CurrentStageID != nil {
						stage = *a.CurrentStageID
					}
					tw.AppendRow(table.Row{a.ID, a.FirstName + " " + a.LastName, stage, a.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.JobID, "job", "", "job id")
	cmd.Flags().StringVar(&f.StageID, "stage", "", "stage filter")
	cmd.Flags().BoolVar(&f.Unplaced, "unplaced", false, "only unplaced applications")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "page size")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func applicationGetCmd() *cobra.Command {
	var jobID string
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get an application with its tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Repo.GetApplication(ctx, e.Config.Company.ID, jobID, id)
				if err != nil {
					return err
				}
				tags, err := e.ListApplicationTags(ctx, e.Config.Company.ID, jobID, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"application": a, "tags": tags})
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job id")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func applicationMoveCmd() *cobra.Command {
	var opts engine.MoveOptions
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move an application to a stage",
		Long:  "Move the application to --to-stage. Moving to its current stage is a no-op; a concurrent move of the same application makes this command fail so it can be retried against the fresh board.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ApplicationID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.CompanyID = e.Config.Company.ID
				res, err := e.MoveApplication(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if !res.Changed {
					fmt.Println("already at that stage")
					return nil
				}
				fmt.Printf("moved %s to %s\n", res.Application.ID, opts.ToStageID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.JobID, "job", "", "job id")
	cmd.Flags().StringVar(&opts.ToStageID, "to-stage", "", "target stage id")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes for the ledger entry")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("to-stage")
	return cmd
}

func applicationHistoryCmd() *cobra.Command {
	var jobID string
	var limit int
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show the stage history ledger, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.GetHistory(ctx, e.Config.Company.ID, jobID, id, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "From", "To", "By", "Notes"})
				for _, h := range entries {
					from := "-"
					if h.FromStageID != nil {
						from = *h.FromStageID
					}
					tw.AppendRow(table.Row{h.CreatedAt, from, h.ToStageID, h.ChangedBy, h.Notes})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job id")
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries (0 for all)")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func applicationVerifyCmd() *cobra.Command {
	var jobID string
	cmd := &cobra.Command{
		Use:   "verify <id>",
		Short: "Check the ledger replays to the current stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				check, err := e.VerifyHistory(ctx, e.Config.Company.ID, jobID, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(check)
				}
				if check.Consistent {
					fmt.Printf("consistent: %d entries\n", check.Entries)
					return nil
				}
				return fmt.Errorf("ledger inconsistent: replay=%v current=%v", strOrDash(check.ReplayedStageID), strOrDash(check.CurrentStageID))
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job id")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func applicationTagCmd() *cobra.Command {
	tagCmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage an application's tags",
	}
	tagCmd.AddCommand(applicationTagAddCmd())
	tagCmd.AddCommand(applicationTagRemoveCmd())
	tagCmd.AddCommand(applicationTagListCmd())
	return tagCmd
}

func applicationTagAddCmd() *cobra.Command {
	var jobID, tagID string
	cmd := &cobra.Command{
		Use:   "add <application-id>",
		Short: "Attach a tag (idempotent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				at, created, err := e.AddTag(ctx, e.Config.Company.ID, jobID, id, tagID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"tag": at, "created": created})
				}
				if created {
					fmt.Printf("tagged %s with %s\n", id, at.Label)
				} else {
					fmt.Printf("already tagged with %s\n", at.Label)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job id")
	cmd.Flags().StringVar(&tagID, "tag", "", "tag id")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func applicationTagRemoveCmd() *cobra.Command {
	var jobID, tagID string
	cmd := &cobra.Command{
		Use:   "remove <application-id>",
		Short: "Detach a tag (no error if absent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveTag(ctx, e.Config.Company.ID, jobID, id, tagID)
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job id")
	cmd.Flags().StringVar(&tagID, "tag", "", "tag id")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func applicationTagListCmd() *cobra.Command {
	var jobID string
	cmd := &cobra.Command{
		Use:   "list <application-id>",
		Short: "List an application's tags, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListApplicationTags(ctx, e.Config.Company.ID, jobID, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job id")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func tagCmd() *cobra.Command {
	tag := &cobra.Command{
		Use:   "tag",
		Short: "Manage the company tag catalog",
		Long:  "Tags are company-wide labels (label unique per company) attached to applications. Colors default from company config.",
	}
	tag.AddCommand(tagCreateCmd())
	tag.AddCommand(tagListCmd())
	tag.AddCommand(tagUpdateCmd())
	tag.AddCommand(tagDeleteCmd())
	tag.AddCommand(tagUsageCmd())
	return tag
}

func tagCreateCmd() *cobra.Command {
	var opts engine.TagCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.CompanyID == "" {
					opts.CompanyID = e.Config.Company.ID
				}
				t, err := e.CreateTag(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "tag id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label")
	cmd.Flags().StringVar(&opts.Color, "color", "", "background color (#RRGGBB)")
	cmd.Flags().StringVar(&opts.TextColor, "text-color", "", "text color (#RRGGBB)")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}

func tagListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTags(ctx, e.Config.Company.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Label", "Color"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Label, t.Color})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func tagUpdateCmd() *cobra.Command {
	var label, color, textColor string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			var opts engine.TagUpdateOptions
			if cmd.Flags().Changed("label") {
				opts.Label = &label
			}
			if cmd.Flags().Changed("color") {
				opts.Color = &color
			}
			if cmd.Flags().Changed("text-color") {
				opts.TextColor = &textColor
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTag(ctx, e.Config.Company.ID, id, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "new label")
	cmd.Flags().StringVar(&color, "color", "", "new background color, empty resets to the company default")
	cmd.Flags().StringVar(&textColor, "text-color", "", "new text color, empty resets to the company default")
	return cmd
}

func tagDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a tag and its annotations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTag(ctx, e.Config.Company.ID, id)
			})
		},
	}
	return cmd
}

func tagUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show how often each tag is used",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.TagUsage(ctx, e.Config.Company.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Label", "Count"})
				for _, u := range items {
					tw.AppendRow(table.Row{u.Label, u.Count})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "API keys authenticate external services against the HTTP API. The plaintext key is printed once at creation; only its hash is stored.",
	}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, plaintext, err := e.CreateAPIKey(ctx, e.Config.Company.ID, viper.GetString("actor-id"), name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "name": key.Name, "key": plaintext})
				}
				fmt.Printf("created key %s\n%s\n(store it now; it is not shown again)\n", key.ID, plaintext)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAPIKeys(ctx, e.Config.Company.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Recruiter", "Created"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.Name, k.RecruiterID, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAPIKey(ctx, e.Config.Company.ID, id)
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveCompanyAndConfig(cmd.Context(), viper.GetString("company"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("HIRELINE_JWT_SECRET"), DevLogin: devLogin}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("HIRELINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Hireline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose the dev token endpoint (local use only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveCompanyAndConfig(ctx, viper.GetString("company"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
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

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strOrDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
