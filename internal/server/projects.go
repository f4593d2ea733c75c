package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
)

func registerTenants(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenants",
		Summary:     "List tenants",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*dataBody[[]domain.Tenant], error) {
		tenants, err := e.Repo.ListTenants(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(tenants)
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*dataBody[domain.Project], error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "body required")
		}
		if input.Body.TenantID == "" {
			return nil, newAPIError(http.StatusBadRequest, "tenant_id is required")
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.InitProject(ctx, engine.InitProjectOptions{
			TenantID:    input.Body.TenantID,
			TenantName:  input.Body.TenantName,
			ProjectID:   input.Body.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		TenantID string `query:"tenant_id"`
	}) (*dataBody[[]domain.Project], error) {
		projects, err := e.Repo.ListProjects(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(projects)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*dataBody[domain.Project], error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*dataBody[domain.Project], error) {
		if err := e.Repo.UpdateProject(ctx, input.ProjectID, input.Body.Name, input.Body.Status, input.Body.Description); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}",
		Summary:     "Delete project",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*dataBody[map[string]string], error) {
		if err := e.Repo.DeleteProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return respond(map[string]string{"deleted": input.ProjectID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-status",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/status",
		Summary:     "Project dashboard counts",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*dataBody[ProjectStatusResponse], error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		out := ProjectStatusResponse{ProjectID: p.ID, Status: p.Status}
		if out.EpicCounts, err = e.Repo.CountWorkItemsByStatus(ctx, p.ID, domain.KindEpic); err != nil {
			return nil, handleError(err)
		}
		if out.StoryCounts, err = e.Repo.CountWorkItemsByStatus(ctx, p.ID, domain.KindStory); err != nil {
			return nil, handleError(err)
		}
		if out.TaskCounts, err = e.Repo.CountWorkItemsByStatus(ctx, p.ID, domain.KindTask); err != nil {
			return nil, handleError(err)
		}
		return respond(out)
	})
}

func registerFlows(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-flow",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/flows",
		Summary:       "Create status flow",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateFlowRequest `json:"body"`
	}) (*dataBody[domain.StatusFlow], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.CreateFlow(ctx, engine.FlowCreateOptions{
			ProjectID: input.ProjectID,
			Kind:      input.Body.Kind,
			Name:      input.Body.Name,
			IsDefault: input.Body.IsDefault,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(f)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-flows",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/flows",
		Summary:     "List status flows",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*dataBody[[]domain.StatusFlow], error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		flows, err := e.Repo.ListFlowsByProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(flows)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-flow",
		Method:      http.MethodGet,
		Path:        "/flows/{flow_id}",
		Summary:     "Get status flow",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		FlowID string `path:"flow_id"`
	}) (*dataBody[domain.StatusFlow], error) {
		f, err := e.Repo.GetFlow(ctx, input.FlowID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(f)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-status",
		Method:        http.MethodPost,
		Path:          "/flows/{flow_id}/statuses",
		Summary:       "Add status to flow",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		FlowID string              `path:"flow_id"`
		Body   CreateStatusRequest `json:"body"`
	}) (*dataBody[domain.Status], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateStatus(ctx, engine.StatusCreateOptions{
			FlowID:    input.FlowID,
			Name:      input.Body.Name,
			Color:     input.Body.Color,
			SortOrder: input.Body.SortOrder,
			IsInitial: input.Body.IsInitial,
			IsFinal:   input.Body.IsFinal,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-statuses",
		Method:      http.MethodGet,
		Path:        "/flows/{flow_id}/statuses",
		Summary:     "List statuses in flow order",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		FlowID string `path:"flow_id"`
	}) (*dataBody[[]domain.Status], error) {
		if _, err := e.Repo.GetFlow(ctx, input.FlowID); err != nil {
			return nil, handleError(err)
		}
		statuses, err := e.Repo.ListStatusesByFlow(ctx, input.FlowID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(statuses)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/statuses/{status_id}",
		Summary:     "Get status",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		StatusID string `path:"status_id"`
	}) (*dataBody[domain.Status], error) {
		s, err := e.Repo.GetStatus(ctx, input.StatusID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-statuses",
		Method:      http.MethodGet,
		Path:        "/statuses/project/{project_id}",
		Summary:     "List statuses across a project's flows",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*dataBody[[]domain.Status], error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		statuses, err := e.Repo.ListStatusesByProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(statuses)
	})
}

func registerTeams(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-team",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/teams",
		Summary:       "Create team",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateTeamRequest `json:"body"`
	}) (*dataBody[domain.Team], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTeam(ctx, engine.TeamCreateOptions{
			ProjectID: input.ProjectID,
			Name:      input.Body.Name,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-teams",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/teams",
		Summary:     "List teams",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*dataBody[[]domain.Team], error) {
		teams, err := e.ListTeams(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(teams)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-team",
		Method:      http.MethodGet,
		Path:        "/teams/{team_id}",
		Summary:     "Get team",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		TeamID string `path:"team_id"`
	}) (*dataBody[domain.Team], error) {
		t, err := e.Repo.GetTeam(ctx, input.TeamID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-team-member",
		Method:        http.MethodPost,
		Path:          "/teams/{team_id}/members",
		Summary:       "Add or update team member",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		TeamID string               `path:"team_id"`
		Body   AddTeamMemberRequest `json:"body"`
	}) (*dataBody[domain.TeamMember], error) {
		m, err := e.AddTeamMember(ctx, input.TeamID, input.Body.ActorID, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(m)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-team-members",
		Method:      http.MethodGet,
		Path:        "/teams/{team_id}/members",
		Summary:     "List team members",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		TeamID string `path:"team_id"`
	}) (*dataBody[[]domain.TeamMember], error) {
		members, err := e.ListTeamMembers(ctx, input.TeamID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(members)
	})
}
