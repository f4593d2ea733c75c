package app

import (
	"context"
	"errors"
	"fmt"

	"sprintline/internal/config"
	"sprintline/internal/engine"
	"sprintline/internal/repo"
)

// ResolveProjectAndConfig picks the active project and ensures a
// project + config exist in DB, seeding defaults if missing. It
// prefers overrides, then single-project DB. If the project does not
// exist, it is provisioned on the fly with default flows.
func ResolveProjectAndConfig(ctx context.Context, eng engine.Engine, projectOverride, tenantOverride, actorID string) (string, *config.Config, error) {
	r := eng.Repo
	projectID := projectOverride
	if projectID == "" {
		if p, err := r.SingleProject(ctx); err == nil {
			projectID = p.ID
		} else {
			return "", nil, fmt.Errorf("project not specified; use --project")
		}
	}
	seedCfg := config.Default(projectID)

	if _, err := r.GetProject(ctx, projectID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		tenantID := tenantOverride
		if tenantID == "" {
			tenantID = "default"
		}
		if _, err := eng.InitProject(ctx, engine.InitProjectOptions{
			TenantID:  tenantID,
			ProjectID: projectID,
			Name:      projectID,
			Config:    seedCfg,
			ActorID:   actorID,
		}); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetProjectConfig(ctx, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertProjectConfig(ctx, projectID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed project config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Project.ID = projectID
	return projectID, cfg, nil
}
