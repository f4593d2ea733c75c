package main

import (
	"bufio"
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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sprintline/internal/app"
	"sprintline/internal/config"
	"sprintline/internal/db"
	"sprintline/internal/domain"
	"sprintline/internal/engine"
	"sprintline/internal/migrate"
	"sprintline/internal/repo"
	"sprintline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "spr",
	Short: "Sprintline CLI",
	Long: `Sprintline is a multi-tenant backlog and sprint tracker.
- Workspace: your .sprintline directory holding the database; configs live in the DB.
- Project: owns epics, stories, tasks, status flows, and sprints.
- Flows: named, ordered status sets per entity kind (task, story, epic).
- Sprints: planned -> active -> completed/cancelled, with an ordered story backlog.
- Metrics: per-sprint snapshots of points and task completion, taken on demand
  and when a sprint completes.
- Activity log: diary of changes, view with 'spr log tail'.`,
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
	viper.SetEnvPrefix("SPRINTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides config default)")
	rootCmd.PersistentFlags().String("tenant", "", "tenant id for new projects")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
	_ = viper.BindPFlag("tenant", rootCmd.PersistentFlags().Lookup("tenant"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(flowCmd())
	rootCmd.AddCommand(epicCmd())
	rootCmd.AddCommand(storyCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(sprintCmd())
	rootCmd.AddCommand(commentCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectStatusCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectConfigCmd())
	prj.AddCommand(projectUseCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	var tenantID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx, tenantID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Tenant", "Name", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.TenantID, p.Name, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant filter")
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var id, name, desc string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project with default flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			tenantID := viper.GetString("tenant")
			if tenantID == "" {
				tenantID = "default"
			}
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			seed := id
			if seed == "" {
				seed = name
			}
			cfg := config.Default(seed)
			e := engine.New(conn, cfg)
			p, err := e.InitProject(cmd.Context(), engine.InitProjectOptions{
				TenantID:    tenantID,
				ProjectID:   id,
				Name:        name,
				Description: desc,
				Config:      cfg,
				ActorID:     viper.GetString("actor-id"),
			})
			if err != nil {
				return err
			}
			return printJSONOrTable(p)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show work item counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				projectID := e.Config.Project.ID
				out := map[string]any{"project_id": projectID}
				for _, kind := range []string{domain.KindEpic, domain.KindStory, domain.KindTask} {
					counts, err := e.Repo.CountWorkItemsByStatus(ctx, projectID, kind)
					if err != nil {
						return err
					}
					out[kind+"_counts"] = counts
				}
				return printJSONOrTable(out)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, status, description string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				target := e.Config.Project.ID
				var descPtr *string
				if cmd.Flags().Changed("description") {
					descPtr = &description
				}
				if err := e.Repo.UpdateProject(ctx, target, name, status, descPtr); err != nil {
					return err
				}
				p, err := e.Repo.GetProject(ctx, target)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&status, "status", "", "status (active, archived)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteProject(ctx, e.Config.Project.ID)
			})
		},
	}
	return cmd
}

func projectUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <id>",
		Short: "Set current project for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := strings.TrimSpace(args[0])
			if projectID == "" {
				return fmt.Errorf("project id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "SPRINTLINE_PROJECT", projectID); err != nil {
				return err
			}
			fmt.Printf("Set SPRINTLINE_PROJECT=%s in %s/.env\n", projectID, workspace)
			return nil
		},
	}
	return cmd
}

func projectConfigCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage project config",
	}
	cfg.AddCommand(projectConfigShowCmd())
	cfg.AddCommand(projectConfigImportCmd())
	cfg.AddCommand(projectConfigInitCmd())
	return cfg
}

func projectConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show project config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func projectConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import project config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			projectID := cfg.Project.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if projectID == "" {
					projectID = e.Config.Project.ID
				}
				if err := e.Repo.UpsertProjectConfig(ctx, projectID, cfg); err != nil {
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

func projectConfigInitCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default sprintline.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				projectID = viper.GetString("project")
			}
			if projectID == "" {
				return fmt.Errorf("--id or --project required")
			}
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(projectID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "id", "", "project id")
	return cmd
}

func flowCmd() *cobra.Command {
	flow := &cobra.Command{Use: "flow", Short: "Manage status flows"}
	flow.AddCommand(flowListCmd())
	flow.AddCommand(flowCreateCmd())
	flow.AddCommand(flowStatusesCmd())
	flow.AddCommand(flowAddStatusCmd())
	return flow
}

func flowListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List status flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				flows, err := e.Repo.ListFlowsByProject(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(flows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Kind", "Name", "Default"})
				for _, f := range flows {
					tw.AppendRow(table.Row{f.ID, f.Kind, f.Name, f.IsDefault})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func flowCreateCmd() *cobra.Command {
	var kind, name string
	var isDefault bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a status flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.CreateFlow(ctx, engine.FlowCreateOptions{
					ProjectID: e.Config.Project.ID,
					Kind:      kind,
					Name:      name,
					IsDefault: isDefault,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "entity kind (task, story, epic)")
	cmd.Flags().StringVar(&name, "name", "", "flow name")
	cmd.Flags().BoolVar(&isDefault, "default", false, "mark as default flow for kind")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func flowStatusesCmd() *cobra.Command {
	var flowID string
	cmd := &cobra.Command{
		Use:   "statuses",
		Short: "List statuses of a flow in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				statuses, err := e.Repo.ListStatusesByFlow(ctx, flowID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(statuses)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Order", "Name", "Initial", "Final", "ID"})
				for _, s := range statuses {
					tw.AppendRow(table.Row{s.SortOrder, s.Name, s.IsInitial, s.IsFinal, s.ID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flowID, "flow", "", "flow id")
	_ = cmd.MarkFlagRequired("flow")
	return cmd
}

func flowAddStatusCmd() *cobra.Command {
	var opts engine.StatusCreateOptions
	cmd := &cobra.Command{
		Use:   "add-status",
		Short: "Add a status to a flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor-id")
				s, err := e.CreateStatus(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.FlowID, "flow", "", "flow id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "status name")
	cmd.Flags().StringVar(&opts.Color, "color", "", "display color")
	cmd.Flags().IntVar(&opts.SortOrder, "order", 0, "sort order")
	cmd.Flags().BoolVar(&opts.IsInitial, "initial", false, "entry status")
	cmd.Flags().BoolVar(&opts.IsFinal, "final", false, "terminal status")
	_ = cmd.MarkFlagRequired("flow")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func epicCmd() *cobra.Command {
	epic := &cobra.Command{Use: "epic", Short: "Manage epics"}
	epic.AddCommand(epicCreateCmd())
	epic.AddCommand(epicListCmd())
	epic.AddCommand(epicShowCmd())
	epic.AddCommand(epicStatusCmd())
	epic.AddCommand(epicDeleteCmd())
	return epic
}

func epicCreateCmd() *cobra.Command {
	var title, description, statusID, dueDate string
	var priority int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an epic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				epic, err := e.CreateEpic(ctx, engine.EpicCreateOptions{
					ProjectID:   e.Config.Project.ID,
					Title:       title,
					Description: description,
					Priority:    priority,
					StatusID:    statusID,
					DueDate:     optionalString(dueDate),
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(epic)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "epic title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority 1-5")
	cmd.Flags().StringVar(&statusID, "status", "", "status id (defaults to flow entry status)")
	cmd.Flags().StringVar(&dueDate, "due", "", "due date (RFC3339)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func epicListCmd() *cobra.Command {
	var statusID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List epics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				epics, err := e.Repo.ListEpics(ctx, e.Config.Project.ID, statusID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(epics)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Priority", "Status"})
				for _, ep := range epics {
					tw.AppendRow(table.Row{ep.ID, ep.Title, ep.Priority, ep.StatusID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&statusID, "status", "", "status filter")
	return cmd
}

func epicShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an epic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				epic, err := e.Repo.GetEpic(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(epic)
			})
		},
	}
	return cmd
}

func epicStatusCmd() *cobra.Command {
	var statusID string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Change epic status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				epic, err := e.ChangeEpicStatus(ctx, args[0], statusID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(epic)
			})
		},
	}
	cmd.Flags().StringVar(&statusID, "to", "", "target status id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func epicDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an epic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteEpic(ctx, args[0])
			})
		},
	}
	return cmd
}

func storyCmd() *cobra.Command {
	story := &cobra.Command{Use: "story", Short: "Manage user stories"}
	story.AddCommand(storyCreateCmd())
	story.AddCommand(storyListCmd())
	story.AddCommand(storyShowCmd())
	story.AddCommand(storyStatusCmd())
	story.AddCommand(storyDeleteCmd())
	return story
}

func storyCreateCmd() *cobra.Command {
	var title, description, epicID, assigneeID, statusID, dueDate string
	var priority, points int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user story",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var pointsPtr *int
				if cmd.Flags().Changed("points") {
					pointsPtr = &points
				}
				story, err := e.CreateStory(ctx, engine.StoryCreateOptions{
					ProjectID:   e.Config.Project.ID,
					EpicID:      optionalString(epicID),
					Title:       title,
					Description: description,
					Priority:    priority,
					Points:      pointsPtr,
					AssigneeID:  optionalString(assigneeID),
					StatusID:    statusID,
					DueDate:     optionalString(dueDate),
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(story)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "story title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&epicID, "epic", "", "parent epic id")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority 1-5")
	cmd.Flags().IntVar(&points, "points", 0, "story points")
	cmd.Flags().StringVar(&assigneeID, "assignee-id", "", "assignee id")
	cmd.Flags().StringVar(&statusID, "status", "", "status id (defaults to flow entry status)")
	cmd.Flags().StringVar(&dueDate, "due", "", "due date (RFC3339)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func storyListCmd() *cobra.Command {
	var f repo.StoryFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.ProjectID == "" {
					f.ProjectID = e.Config.Project.ID
				}
				stories, err := e.Repo.ListStories(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stories)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Points", "Assignee", "Status"})
				for _, s := range stories {
					points := ""
					if s.Points != nil {
						points = fmt.Sprintf("%d", *s.Points)
					}
					assignee := ""
					if s.AssigneeID != nil {
						assignee = *s.AssigneeID
					}
					tw.AppendRow(table.Row{s.ID, s.Title, points, assignee, s.StatusID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.EpicID, "epic", "", "epic filter")
	cmd.Flags().StringVar(&f.StatusID, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee-id", "", "assignee filter")
	return cmd
}

func storyShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				story, err := e.Repo.GetStory(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(story)
			})
		},
	}
	return cmd
}

func storyStatusCmd() *cobra.Command {
	var statusID string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Change story status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				story, err := e.ChangeStoryStatus(ctx, args[0], statusID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(story)
			})
		},
	}
	cmd.Flags().StringVar(&statusID, "to", "", "target status id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func storyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteStory(ctx, args[0])
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskStatusCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var title, description, storyID, assigneeID, statusID, dueDate string
	var priority int
	var hours float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var hoursPtr *float64
				if cmd.Flags().Changed("hours") {
					hoursPtr = &hours
				}
				task, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					ProjectID:      e.Config.Project.ID,
					StoryID:        optionalString(storyID),
					Title:          title,
					Description:    description,
					Priority:       priority,
					EstimatedHours: hoursPtr,
					AssigneeID:     optionalString(assigneeID),
					StatusID:       statusID,
					DueDate:        optionalString(dueDate),
					ActorID:        viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(task)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&storyID, "story", "", "parent story id")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority 1-5")
	cmd.Flags().Float64Var(&hours, "hours", 0, "estimated hours")
	cmd.Flags().StringVar(&assigneeID, "assignee-id", "", "assignee id")
	cmd.Flags().StringVar(&statusID, "status", "", "status id (defaults to flow entry status)")
	cmd.Flags().StringVar(&dueDate, "due", "", "due date (RFC3339)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.ProjectID == "" {
					f.ProjectID = e.Config.Project.ID
				}
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Story", "Assignee", "Status"})
				for _, t := range tasks {
					story := ""
					if t.StoryID != nil {
						story = *t.StoryID
					}
					assignee := ""
					if t.AssigneeID != nil {
						assignee = *t.AssigneeID
					}
					tw.AppendRow(table.Row{t.ID, t.Title, story, assignee, t.StatusID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.StoryID, "story", "", "story filter")
	cmd.Flags().StringVar(&f.StatusID, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee-id", "", "assignee filter")
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				task, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(task)
			})
		},
	}
	return cmd
}

func taskStatusCmd() *cobra.Command {
	var statusID string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Change task status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				task, err := e.ChangeTaskStatus(ctx, args[0], statusID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(task)
			})
		},
	}
	cmd.Flags().StringVar(&statusID, "to", "", "target status id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteTask(ctx, args[0])
			})
		},
	}
	return cmd
}

func sprintCmd() *cobra.Command {
	sprint := &cobra.Command{Use: "sprint", Short: "Manage sprints"}
	sprint.AddCommand(sprintCreateCmd())
	sprint.AddCommand(sprintListCmd())
	sprint.AddCommand(sprintShowCmd())
	sprint.AddCommand(sprintStartCmd())
	sprint.AddCommand(sprintCompleteCmd())
	sprint.AddCommand(sprintCancelCmd())
	sprint.AddCommand(sprintMetricsCmd())
	sprint.AddCommand(sprintBacklogCmd())
	return sprint
}

func sprintCreateCmd() *cobra.Command {
	var name, goal, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sprint (planned)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSprint(ctx, engine.SprintCreateOptions{
					ProjectID: e.Config.Project.ID,
					Name:      name,
					Goal:      goal,
					StartDate: start,
					EndDate:   end,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sprint name")
	cmd.Flags().StringVar(&goal, "goal", "", "sprint goal")
	cmd.Flags().StringVar(&start, "start", "", "start date (RFC3339, defaults to now)")
	cmd.Flags().StringVar(&end, "end", "", "end date (RFC3339, defaults to start + configured length)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func sprintListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sprints, err := e.Repo.ListSprints(ctx, e.Config.Project.ID, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sprints)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Start", "End"})
				for _, s := range sprints {
					tw.AppendRow(table.Row{s.ID, s.Name, s.Status, s.StartDate, s.EndDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (planned, active, completed, cancelled)")
	return cmd
}

func sprintShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Repo.GetSprint(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func sprintStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start a planned sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.StartSprint(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func sprintCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a sprint and snapshot metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CompleteSprint(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func sprintCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CancelSprint(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func sprintMetricsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "metrics <id>",
		Short: "Show the stored metrics snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					m   domain.SprintMetric
					err error
				)
				if refresh {
					m, err = e.RefreshSprintMetrics(ctx, args[0])
				} else {
					m, err = e.SprintMetrics(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute before showing")
	return cmd
}

func sprintBacklogCmd() *cobra.Command {
	backlog := &cobra.Command{Use: "backlog", Short: "Manage the sprint backlog"}
	backlog.AddCommand(backlogAddCmd())
	backlog.AddCommand(backlogListCmd())
	backlog.AddCommand(backlogRemoveCmd())
	backlog.AddCommand(backlogMoveCmd())
	return backlog
}

func backlogAddCmd() *cobra.Command {
	var sprintID, storyID string
	var order int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a story to a sprint backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var orderPtr *int
				if cmd.Flags().Changed("order") {
					orderPtr = &order
				}
				item, err := e.AddStoryToBacklog(ctx, engine.BacklogAddOptions{
					SprintID:  sprintID,
					StoryID:   storyID,
					SortOrder: orderPtr,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&sprintID, "sprint", "", "sprint id")
	cmd.Flags().StringVar(&storyID, "story", "", "story id")
	cmd.Flags().IntVar(&order, "order", 0, "sort order (defaults to end of backlog)")
	_ = cmd.MarkFlagRequired("sprint")
	_ = cmd.MarkFlagRequired("story")
	return cmd
}

func backlogListCmd() *cobra.Command {
	var sprintID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a sprint backlog in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.ListBacklog(ctx, sprintID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Order", "Story", "Title", "Points", "Status"})
				for _, entry := range entries {
					points := ""
					if entry.Story.Points != nil {
						points = fmt.Sprintf("%d", *entry.Story.Points)
					}
					tw.AppendRow(table.Row{entry.Item.SortOrder, entry.Story.ID, entry.Story.Title, points, entry.Story.StatusID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sprintID, "sprint", "", "sprint id")
	_ = cmd.MarkFlagRequired("sprint")
	return cmd
}

func backlogRemoveCmd() *cobra.Command {
	var sprintID, storyID string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a story from a sprint backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				removed, err := e.RemoveStoryFromBacklog(ctx, sprintID, storyID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]bool{"removed": removed})
			})
		},
	}
	cmd.Flags().StringVar(&sprintID, "sprint", "", "sprint id")
	cmd.Flags().StringVar(&storyID, "story", "", "story id")
	_ = cmd.MarkFlagRequired("sprint")
	_ = cmd.MarkFlagRequired("story")
	return cmd
}

func backlogMoveCmd() *cobra.Command {
	var sprintID, storyID string
	var order int
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move a story to a backlog position (swaps with any occupant)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ReorderBacklog(ctx, sprintID, storyID, order, viper.GetString("actor-id")); err != nil {
					return err
				}
				entries, err := e.ListBacklog(ctx, sprintID)
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().StringVar(&sprintID, "sprint", "", "sprint id")
	cmd.Flags().StringVar(&storyID, "story", "", "story id")
	cmd.Flags().IntVar(&order, "order", 0, "target sort order")
	_ = cmd.MarkFlagRequired("sprint")
	_ = cmd.MarkFlagRequired("story")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func commentCmd() *cobra.Command {
	comment := &cobra.Command{Use: "comment", Short: "Comment on entities"}
	comment.AddCommand(commentAddCmd())
	comment.AddCommand(commentListCmd())
	return comment
}

func commentAddCmd() *cobra.Command {
	var kind, id, body string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a comment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddComment(ctx, engine.CommentOptions{
					EntityKind: kind,
					EntityID:   id,
					Body:       body,
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "entity kind (epic, story, task, sprint)")
	cmd.Flags().StringVar(&id, "id", "", "entity id")
	cmd.Flags().StringVar(&body, "body", "", "comment body")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func commentListCmd() *cobra.Command {
	var kind, id string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List comments for an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				comments, err := e.Repo.ListComments(ctx, kind, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(comments)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "entity kind")
	cmd.Flags().StringVar(&id, "id", "", "entity id")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{
		Use:   "log",
		Short: "Activity log",
	}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				activities, err := e.Repo.LatestActivities(ctx, e.Config.Project.ID, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(activities)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of activities")
	return cmd
}

func keysCmd() *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "Manage API keys"}
	keys.AddCommand(keysCreateCmd())
	keys.AddCommand(keysListCmd())
	keys.AddCommand(keysDeleteCmd())
	return keys
}

func keysCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (raw key is shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, raw, err := e.CreateAPIKey(ctx, viper.GetString("actor-id"), name)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"key": raw, "api_key": k})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func keysListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	return cmd
}

func keysDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
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
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			eng := engine.New(conn, nil)
			_, cfg, err := app.ResolveProjectAndConfig(cmd.Context(), eng, viper.GetString("project"), viper.GetString("tenant"), viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			eng = engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:      os.Getenv("SPRINTLINE_JWT_SECRET"),
				EnableDevLogin: devLogin,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("SPRINTLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: eng, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Sprintline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable the /auth/dev/login endpoint")
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
	eng := engine.New(conn, nil)
	_, cfg, err := app.ResolveProjectAndConfig(ctx, eng, viper.GetString("project"), viper.GetString("tenant"), viper.GetString("actor-id"))
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
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
	return fn(ctx, repo.Repo{DB: conn})
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

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
