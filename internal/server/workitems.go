package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
	"sprintline/internal/repo"
)

func registerEpics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-epic",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/epics",
		Summary:       "Create epic",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateEpicRequest `json:"body"`
	}) (*dataBody[domain.Epic], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		epic, err := e.CreateEpic(ctx, engine.EpicCreateOptions{
			ProjectID:   input.ProjectID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			StatusID:    input.Body.StatusID,
			DueDate:     input.Body.DueDate,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(epic)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-epics",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/epics",
		Summary:     "List epics",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		StatusID  string `query:"status_id"`
	}) (*dataBody[[]domain.Epic], error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		epics, err := e.Repo.ListEpics(ctx, input.ProjectID, input.StatusID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(epics)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-epic",
		Method:      http.MethodGet,
		Path:        "/epics/{epic_id}",
		Summary:     "Get epic",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		EpicID string `path:"epic_id"`
	}) (*dataBody[domain.Epic], error) {
		epic, err := e.Repo.GetEpic(ctx, input.EpicID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(epic)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-epic",
		Method:      http.MethodPatch,
		Path:        "/epics/{epic_id}",
		Summary:     "Update epic",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		EpicID string            `path:"epic_id"`
		Body   UpdateEpicRequest `json:"body"`
	}) (*dataBody[domain.Epic], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		epic, err := e.UpdateEpic(ctx, input.EpicID, engine.EpicUpdateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			DueDate:     input.Body.DueDate,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(epic)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-epic",
		Method:      http.MethodDelete,
		Path:        "/epics/{epic_id}",
		Summary:     "Delete epic",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		EpicID string `path:"epic_id"`
	}) (*dataBody[map[string]string], error) {
		if err := e.Repo.DeleteEpic(ctx, input.EpicID); err != nil {
			return nil, handleError(err)
		}
		return respond(map[string]string{"deleted": input.EpicID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-epic-status",
		Method:      http.MethodPost,
		Path:        "/epics/{epic_id}/status",
		Summary:     "Change epic status",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		EpicID string              `path:"epic_id"`
		Body   ChangeStatusRequest `json:"body"`
	}) (*dataBody[domain.Epic], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.StatusID == "" {
			return nil, newAPIError(http.StatusBadRequest, "status_id is required")
		}
		epic, err := e.ChangeEpicStatus(ctx, input.EpicID, input.Body.StatusID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(epic)
	})
}

func registerStories(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-story",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/stories",
		Summary:       "Create user story",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string             `path:"project_id"`
		Body      CreateStoryRequest `json:"body"`
	}) (*dataBody[domain.UserStory], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		story, err := e.CreateStory(ctx, engine.StoryCreateOptions{
			ProjectID:   input.ProjectID,
			EpicID:      input.Body.EpicID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			Points:      input.Body.Points,
			AssigneeID:  input.Body.AssigneeID,
			StatusID:    input.Body.StatusID,
			DueDate:     input.Body.DueDate,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(story)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stories",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/stories",
		Summary:     "List user stories",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		EpicID     string `query:"epic_id"`
		StatusID   string `query:"status_id"`
		AssigneeID string `query:"assignee_id"`
	}) (*dataBody[[]domain.UserStory], error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		stories, err := e.Repo.ListStories(ctx, repo.StoryFilters{
			ProjectID:  input.ProjectID,
			EpicID:     input.EpicID,
			StatusID:   input.StatusID,
			AssigneeID: input.AssigneeID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(stories)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-story",
		Method:      http.MethodGet,
		Path:        "/stories/{story_id}",
		Summary:     "Get user story",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		StoryID string `path:"story_id"`
	}) (*dataBody[domain.UserStory], error) {
		story, err := e.Repo.GetStory(ctx, input.StoryID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(story)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-story",
		Method:      http.MethodPatch,
		Path:        "/stories/{story_id}",
		Summary:     "Update user story",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		StoryID string             `path:"story_id"`
		Body    UpdateStoryRequest `json:"body"`
	}) (*dataBody[domain.UserStory], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		story, err := e.UpdateStory(ctx, input.StoryID, engine.StoryUpdateOptions{
			EpicID:      input.Body.EpicID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			Points:      input.Body.Points,
			AssigneeID:  input.Body.AssigneeID,
			DueDate:     input.Body.DueDate,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(story)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-story",
		Method:      http.MethodDelete,
		Path:        "/stories/{story_id}",
		Summary:     "Delete user story",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		StoryID string `path:"story_id"`
	}) (*dataBody[map[string]string], error) {
		if err := e.Repo.DeleteStory(ctx, input.StoryID); err != nil {
			return nil, handleError(err)
		}
		return respond(map[string]string{"deleted": input.StoryID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-story-status",
		Method:      http.MethodPost,
		Path:        "/stories/{story_id}/status",
		Summary:     "Change story status",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		StoryID string              `path:"story_id"`
		Body    ChangeStatusRequest `json:"body"`
	}) (*dataBody[domain.UserStory], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.StatusID == "" {
			return nil, newAPIError(http.StatusBadRequest, "status_id is required")
		}
		story, err := e.ChangeStoryStatus(ctx, input.StoryID, input.Body.StatusID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(story)
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateTaskRequest `json:"body"`
	}) (*dataBody[domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ProjectID:      input.ProjectID,
			StoryID:        input.Body.StoryID,
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			Priority:       input.Body.Priority,
			EstimatedHours: input.Body.EstimatedHours,
			AssigneeID:     input.Body.AssigneeID,
			StatusID:       input.Body.StatusID,
			DueDate:        input.Body.DueDate,
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(task)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "List tasks",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		StoryID    string `query:"story_id"`
		StatusID   string `query:"status_id"`
		AssigneeID string `query:"assignee_id"`
	}) (*dataBody[[]domain.Task], error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			ProjectID:  input.ProjectID,
			StoryID:    input.StoryID,
			StatusID:   input.StatusID,
			AssigneeID: input.AssigneeID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(tasks)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*dataBody[domain.Task], error) {
		task, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(task)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*dataBody[domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.UpdateTask(ctx, input.TaskID, engine.TaskUpdateOptions{
			StoryID:        input.Body.StoryID,
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			Priority:       input.Body.Priority,
			EstimatedHours: input.Body.EstimatedHours,
			AssigneeID:     input.Body.AssigneeID,
			DueDate:        input.Body.DueDate,
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(task)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*dataBody[map[string]string], error) {
		if err := e.Repo.DeleteTask(ctx, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return respond(map[string]string{"deleted": input.TaskID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-task-status",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/status",
		Summary:     "Change task status",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string              `path:"task_id"`
		Body   ChangeStatusRequest `json:"body"`
	}) (*dataBody[domain.Task], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.StatusID == "" {
			return nil, newAPIError(http.StatusBadRequest, "status_id is required")
		}
		task, err := e.ChangeTaskStatus(ctx, input.TaskID, input.Body.StatusID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(task)
	})
}
