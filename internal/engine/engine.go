package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"sprintline/internal/config"
	"sprintline/internal/domain"
	"sprintline/internal/events"
	"sprintline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) newID(parts ...string) string {
	seed := e.timestamp()
	for _, p := range parts {
		seed += "|" + p
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

// InitProjectOptions are parameters for provisioning a project.
type InitProjectOptions struct {
	TenantID    string
	TenantName  string
	ProjectID   string
	Name        string
	Description string
	Config      *config.Config
	ActorID     string
}

// InitProject creates a project under a tenant and seeds its status
// catalog from the config flow templates, all in one transaction.
func (e Engine) InitProject(ctx context.Context, opts InitProjectOptions) (domain.Project, error) {
	if opts.TenantID == "" {
		return domain.Project{}, errors.New("tenant is required")
	}
	if opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = e.Config
	}
	id := opts.ProjectID
	if id == "" {
		id = e.newID(opts.TenantID, opts.Name)
	}
	if cfg == nil {
		cfg = config.Default(id)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	now := e.timestamp()
	tenantName := opts.TenantName
	if tenantName == "" {
		tenantName = opts.TenantID
	}
	if err := e.Repo.EnsureTenant(ctx, tx, opts.TenantID, tenantName, now); err != nil {
		return domain.Project{}, fmt.Errorf("ensure tenant: %w", err)
	}

	p := domain.Project{
		ID:          id,
		TenantID:    opts.TenantID,
		Name:        opts.Name,
		Status:      "active",
		Description: opts.Description,
		CreatedAt:   now,
	}
	if err := e.Repo.InsertProjectTx(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.UpsertProjectConfigTx(ctx, tx, p.ID, cfg); err != nil {
		return domain.Project{}, fmt.Errorf("insert project config: %w", err)
	}
	if err := e.provisionFlows(ctx, tx, p.ID, cfg); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.init", p.ID, "project", p.ID, opts.ActorID, events.ActivityPayload{"name": p.Name, "tenant_id": p.TenantID}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// provisionFlows materializes one default flow per kind from the
// config templates.
func (e Engine) provisionFlows(ctx context.Context, tx *sql.Tx, projectID string, cfg *config.Config) error {
	now := e.timestamp()
	kinds := make([]string, 0, len(cfg.Flows))
	for kind := range cfg.Flows {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		tpl := cfg.Flows[kind]
		f := domain.StatusFlow{
			ID:        e.newID(projectID, kind, tpl.Name),
			ProjectID: projectID,
			Kind:      kind,
			Name:      tpl.Name,
			IsDefault: true,
			CreatedAt: now,
		}
		if err := e.Repo.InsertFlowTx(ctx, tx, f); err != nil {
			return fmt.Errorf("insert flow %s: %w", kind, err)
		}
		for _, st := range tpl.Statuses {
			s := domain.Status{
				ID:        e.newID(f.ID, st.Name),
				FlowID:    f.ID,
				Name:      st.Name,
				Color:     st.Color,
				SortOrder: st.Order,
				IsInitial: st.Initial,
				IsFinal:   st.Final,
				CreatedAt: now,
			}
			if err := e.Repo.InsertStatusTx(ctx, tx, s); err != nil {
				return fmt.Errorf("insert status %s: %w", st.Name, err)
			}
		}
	}
	return nil
}

// FlowCreateOptions are parameters for creating a status flow.
type FlowCreateOptions struct {
	ProjectID string
	Kind      string
	Name      string
	IsDefault bool
	ActorID   string
}

func (e Engine) CreateFlow(ctx context.Context, opts FlowCreateOptions) (domain.StatusFlow, error) {
	if opts.Name == "" {
		return domain.StatusFlow{}, errors.New("name is required")
	}
	switch opts.Kind {
	case domain.KindTask, domain.KindStory, domain.KindEpic:
	default:
		return domain.StatusFlow{}, fmt.Errorf("unknown flow kind %s", opts.Kind)
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.StatusFlow{}, err
	}
	f := domain.StatusFlow{
		ID:        e.newID(opts.ProjectID, opts.Kind, opts.Name),
		ProjectID: opts.ProjectID,
		Kind:      opts.Kind,
		Name:      opts.Name,
		IsDefault: opts.IsDefault,
		CreatedAt: e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StatusFlow{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertFlowTx(ctx, tx, f); err != nil {
		return domain.StatusFlow{}, err
	}
	if err := e.Events.Append(ctx, tx, "flow.create", opts.ProjectID, "flow", f.ID, opts.ActorID, events.ActivityPayload{"kind": f.Kind, "name": f.Name}); err != nil {
		return domain.StatusFlow{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StatusFlow{}, err
	}
	return f, nil
}

// StatusCreateOptions are parameters for adding a status to a flow.
// Multiple statuses in a flow may carry the initial flag; the catalog
// does not reject that.
type StatusCreateOptions struct {
	FlowID    string
	Name      string
	Color     string
	SortOrder int
	IsInitial bool
	IsFinal   bool
	ActorID   string
}

func (e Engine) CreateStatus(ctx context.Context, opts StatusCreateOptions) (domain.Status, error) {
	if opts.Name == "" {
		return domain.Status{}, errors.New("name is required")
	}
	flow, err := e.Repo.GetFlow(ctx, opts.FlowID)
	if err != nil {
		return domain.Status{}, err
	}
	s := domain.Status{
		ID:        e.newID(flow.ID, opts.Name),
		FlowID:    flow.ID,
		Name:      opts.Name,
		Color:     opts.Color,
		SortOrder: opts.SortOrder,
		IsInitial: opts.IsInitial,
		IsFinal:   opts.IsFinal,
		CreatedAt: e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Status{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertStatusTx(ctx, tx, s); err != nil {
		return domain.Status{}, err
	}
	if err := e.Events.Append(ctx, tx, "status.create", flow.ProjectID, "status", s.ID, opts.ActorID, events.ActivityPayload{"flow_id": flow.ID, "name": s.Name}); err != nil {
		return domain.Status{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Status{}, err
	}
	return s, nil
}

// CommentOptions are parameters for commenting on an entity.
type CommentOptions struct {
	EntityKind string
	EntityID   string
	Body       string
	ActorID    string
}

func (e Engine) AddComment(ctx context.Context, opts CommentOptions) (domain.Comment, error) {
	if opts.Body == "" {
		return domain.Comment{}, errors.New("body is required")
	}
	projectID, err := e.resolveEntityProject(ctx, opts.EntityKind, opts.EntityID)
	if err != nil {
		return domain.Comment{}, err
	}
	c := domain.Comment{
		ID:         e.newID(opts.EntityKind, opts.EntityID, opts.ActorID),
		ProjectID:  projectID,
		EntityKind: opts.EntityKind,
		EntityID:   opts.EntityID,
		AuthorID:   opts.ActorID,
		Body:       opts.Body,
		CreatedAt:  e.timestamp(),
	}
	if err := e.Repo.InsertComment(ctx, c); err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

func (e Engine) resolveEntityProject(ctx context.Context, kind, id string) (string, error) {
	switch kind {
	case domain.KindEpic:
		epic, err := e.Repo.GetEpic(ctx, id)
		return epic.ProjectID, err
	case domain.KindStory:
		story, err := e.Repo.GetStory(ctx, id)
		return story.ProjectID, err
	case domain.KindTask:
		task, err := e.Repo.GetTask(ctx, id)
		return task.ProjectID, err
	case "sprint":
		sprint, err := e.Repo.GetSprint(ctx, id)
		return sprint.ProjectID, err
	default:
		return "", fmt.Errorf("unknown entity kind %s", kind)
	}
}

// TeamCreateOptions are parameters for creating a team.
type TeamCreateOptions struct {
	ProjectID string
	Name      string
	ActorID   string
}

func (e Engine) CreateTeam(ctx context.Context, opts TeamCreateOptions) (domain.Team, error) {
	if opts.Name == "" {
		return domain.Team{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Team{}, err
	}
	t := domain.Team{
		ID:        e.newID(opts.ProjectID, "team", opts.Name),
		ProjectID: opts.ProjectID,
		Name:      opts.Name,
		CreatedAt: e.timestamp(),
	}
	if err := e.Repo.InsertTeam(ctx, t); err != nil {
		return domain.Team{}, err
	}
	return t, nil
}

func (e Engine) ListTeams(ctx context.Context, projectID string) ([]domain.Team, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListTeams(ctx, projectID)
}

// AddTeamMember adds an actor to a team, or updates the role when the
// actor is already a member. An empty role defaults to member.
func (e Engine) AddTeamMember(ctx context.Context, teamID, actorID, role string) (domain.TeamMember, error) {
	if actorID == "" {
		return domain.TeamMember{}, errors.New("actor_id is required")
	}
	if _, err := e.Repo.GetTeam(ctx, teamID); err != nil {
		return domain.TeamMember{}, err
	}
	if role == "" {
		role = "member"
	}
	m := domain.TeamMember{
		TeamID:    teamID,
		ActorID:   actorID,
		Role:      role,
		CreatedAt: e.timestamp(),
	}
	if err := e.Repo.UpsertTeamMember(ctx, m); err != nil {
		return domain.TeamMember{}, err
	}
	return m, nil
}

func (e Engine) ListTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	if _, err := e.Repo.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return e.Repo.ListTeamMembers(ctx, teamID)
}

// CreateAPIKey mints a raw key, stores only its hash, and returns the
// raw key alongside the record.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	if actorID == "" {
		return domain.APIKey{}, "", errors.New("actor is required")
	}
	raw := "spr_" + uuid.NewString()
	k := domain.APIKey{
		ID:        e.newID(actorID, name),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: e.timestamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, k); err != nil {
		return domain.APIKey{}, "", err
	}
	return k, raw, nil
}
