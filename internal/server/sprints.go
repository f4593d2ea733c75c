package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
	"sprintline/internal/repo"
)

func registerSprints(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-sprint",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/sprints",
		Summary:       "Create sprint",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string              `path:"project_id"`
		Body      CreateSprintRequest `json:"body"`
	}) (*dataBody[domain.Sprint], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateSprint(ctx, engine.SprintCreateOptions{
			ProjectID: input.ProjectID,
			Name:      input.Body.Name,
			Goal:      input.Body.Goal,
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sprints",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sprints",
		Summary:     "List sprints",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status" enum:",planned,active,completed,cancelled"`
	}) (*dataBody[[]domain.Sprint], error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		sprints, err := e.Repo.ListSprints(ctx, input.ProjectID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(sprints)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-sprint",
		Method:      http.MethodGet,
		Path:        "/sprints/{sprint_id}",
		Summary:     "Get sprint",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		SprintID string `path:"sprint_id"`
	}) (*dataBody[domain.Sprint], error) {
		s, err := e.Repo.GetSprint(ctx, input.SprintID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s)
	})

	type sprintPath struct {
		SprintID string `path:"sprint_id"`
	}
	transition := func(opID, path, summary string, fn func(context.Context, string, string) (domain.Sprint, error)) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        path,
			Summary:     summary,
			Errors:      defaultErrors,
		}, func(ctx context.Context, input *sprintPath) (*dataBody[domain.Sprint], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			s, err := fn(ctx, input.SprintID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return respond(s)
		})
	}
	transition("start-sprint", "/sprints/{sprint_id}/start", "Start sprint", e.StartSprint)
	transition("complete-sprint", "/sprints/{sprint_id}/complete", "Complete sprint", e.CompleteSprint)
	transition("cancel-sprint", "/sprints/{sprint_id}/cancel", "Cancel sprint", e.CancelSprint)

	huma.Register(api, huma.Operation{
		OperationID: "sprint-metrics",
		Method:      http.MethodGet,
		Path:        "/sprints/{sprint_id}/metrics",
		Summary:     "Get sprint metrics snapshot",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *sprintPath) (*dataBody[domain.SprintMetric], error) {
		m, err := e.SprintMetrics(ctx, input.SprintID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(m)
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-sprint-metrics",
		Method:      http.MethodPost,
		Path:        "/sprints/{sprint_id}/metrics/refresh",
		Summary:     "Recompute and store sprint metrics",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *sprintPath) (*dataBody[domain.SprintMetric], error) {
		m, err := e.RefreshSprintMetrics(ctx, input.SprintID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(m)
	})
}

func registerBacklog(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "backlog-add",
		Method:        http.MethodPost,
		Path:          "/sprints/{sprint_id}/backlog",
		Summary:       "Add story to sprint backlog",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		SprintID string            `path:"sprint_id"`
		Body     BacklogAddRequest `json:"body"`
	}) (*dataBody[domain.SprintBacklogItem], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.StoryID == "" {
			return nil, newAPIError(http.StatusBadRequest, "story_id is required")
		}
		item, err := e.AddStoryToBacklog(ctx, engine.BacklogAddOptions{
			SprintID:  input.SprintID,
			StoryID:   input.Body.StoryID,
			SortOrder: input.Body.SortOrder,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(item)
	})

	huma.Register(api, huma.Operation{
		OperationID: "backlog-list",
		Method:      http.MethodGet,
		Path:        "/sprints/{sprint_id}/backlog",
		Summary:     "List sprint backlog in order",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		SprintID string `path:"sprint_id"`
	}) (*dataBody[[]repo.BacklogEntry], error) {
		entries, err := e.ListBacklog(ctx, input.SprintID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(entries)
	})

	huma.Register(api, huma.Operation{
		OperationID: "backlog-remove",
		Method:      http.MethodDelete,
		Path:        "/sprints/{sprint_id}/backlog/{story_id}",
		Summary:     "Remove story from sprint backlog",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		SprintID string `path:"sprint_id"`
		StoryID  string `path:"story_id"`
	}) (*dataBody[RemovedResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		removed, err := e.RemoveStoryFromBacklog(ctx, input.SprintID, input.StoryID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(RemovedResponse{Removed: removed})
	})

	huma.Register(api, huma.Operation{
		OperationID: "backlog-reorder",
		Method:      http.MethodPost,
		Path:        "/sprints/{sprint_id}/backlog/{story_id}/reorder",
		Summary:     "Move story to a backlog position",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		SprintID string                `path:"sprint_id"`
		StoryID  string                `path:"story_id"`
		Body     BacklogReorderRequest `json:"body"`
	}) (*dataBody[[]repo.BacklogEntry], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ReorderBacklog(ctx, input.SprintID, input.StoryID, input.Body.SortOrder, actorID); err != nil {
			return nil, handleError(err)
		}
		entries, err := e.ListBacklog(ctx, input.SprintID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(entries)
	})
}
