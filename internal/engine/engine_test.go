package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sprintline/internal/config"
	"sprintline/internal/db"
	"sprintline/internal/domain"
	"sprintline/internal/engine"
	"sprintline/internal/migrate"
	"sprintline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("proj-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.InitProject(ctx, engine.InitProjectOptions{
		TenantID:  "acme",
		ProjectID: "proj-1",
		Name:      "Test Project",
		Config:    cfg,
		ActorID:   "tester",
	}); err != nil {
		t.Fatalf("init project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func statusByName(t *testing.T, env testEnv, kind, name string) domain.Status {
	t.Helper()
	flow, err := env.Engine.Repo.DefaultFlow(env.Ctx, "proj-1", kind)
	if err != nil {
		t.Fatalf("default %s flow: %v", kind, err)
	}
	statuses, err := env.Engine.Repo.ListStatusesByFlow(env.Ctx, flow.ID)
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	for _, s := range statuses {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("status %q not found in %s flow", name, kind)
	return domain.Status{}
}

func newStory(t *testing.T, env testEnv, title string, points int) domain.UserStory {
	t.Helper()
	var pointsPtr *int
	if points > 0 {
		pointsPtr = &points
	}
	story, err := env.Engine.CreateStory(env.Ctx, engine.StoryCreateOptions{
		ProjectID: "proj-1",
		Title:     title,
		Points:    pointsPtr,
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create story %s: %v", title, err)
	}
	return story
}

func newSprint(t *testing.T, env testEnv, name string) domain.Sprint {
	t.Helper()
	s, err := env.Engine.CreateSprint(env.Ctx, engine.SprintCreateOptions{
		ProjectID: "proj-1",
		Name:      name,
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create sprint %s: %v", name, err)
	}
	return s
}

func TestProvisionedCatalogOrder(t *testing.T) {
	env := newTestEnv(t)
	flow, err := env.Engine.Repo.DefaultFlow(env.Ctx, "proj-1", domain.KindStory)
	if err != nil {
		t.Fatalf("default flow: %v", err)
	}
	statuses, err := env.Engine.Repo.ListStatusesByFlow(env.Ctx, flow.ID)
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	want := []string{"Backlog", "Ready", "In Progress", "In Review", "Done"}
	if len(statuses) != len(want) {
		t.Fatalf("expected %d statuses, got %d", len(want), len(statuses))
	}
	for i, name := range want {
		if statuses[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, statuses[i].Name)
		}
	}
	if !statuses[0].IsInitial {
		t.Fatalf("expected first status initial")
	}
	if !statuses[len(statuses)-1].IsFinal {
		t.Fatalf("expected last status final")
	}
}

func TestDuplicateInitialStatusAllowed(t *testing.T) {
	env := newTestEnv(t)
	flow, err := env.Engine.Repo.DefaultFlow(env.Ctx, "proj-1", domain.KindTask)
	if err != nil {
		t.Fatalf("default flow: %v", err)
	}
	s, err := env.Engine.CreateStatus(env.Ctx, engine.StatusCreateOptions{
		FlowID:    flow.ID,
		Name:      "Triage",
		SortOrder: 0,
		IsInitial: true,
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("second initial status rejected: %v", err)
	}
	if !s.IsInitial {
		t.Fatalf("expected initial flag kept")
	}
}

func TestStatusKindMismatch(t *testing.T) {
	env := newTestEnv(t)
	storyDone := statusByName(t, env, domain.KindStory, "Done")
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: "proj-1",
		Title:     "mismatched",
		StatusID:  storyDone.ID,
		ActorID:   "tester",
	})
	var mismatch engine.KindMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected kind mismatch, got %v", err)
	}
	if mismatch.Want != domain.KindTask || mismatch.Got != domain.KindStory {
		t.Fatalf("unexpected mismatch detail: %+v", mismatch)
	}
}

func TestChangeStoryStatus(t *testing.T) {
	env := newTestEnv(t)
	story := newStory(t, env, "move me", 3)
	backlog := statusByName(t, env, domain.KindStory, "Backlog")
	if story.StatusID != backlog.ID {
		t.Fatalf("expected new story in entry status")
	}
	done := statusByName(t, env, domain.KindStory, "Done")
	story, err := env.Engine.ChangeStoryStatus(env.Ctx, story.ID, done.ID, "tester")
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if story.StatusID != done.ID {
		t.Fatalf("expected status %s, got %s", done.ID, story.StatusID)
	}
	_, err = env.Engine.ChangeStoryStatus(env.Ctx, story.ID, "missing-status", "tester")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown status, got %v", err)
	}
}

func TestBacklogAppendOrder(t *testing.T) {
	env := newTestEnv(t)
	sprint := newSprint(t, env, "Sprint 1")
	first := newStory(t, env, "first", 0)
	second := newStory(t, env, "second", 0)
	item, err := env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: first.ID, ActorID: "tester"})
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	if item.SortOrder != 1 {
		t.Fatalf("expected order 1, got %d", item.SortOrder)
	}
	item, err = env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: second.ID, ActorID: "tester"})
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	if item.SortOrder != 2 {
		t.Fatalf("expected order 2, got %d", item.SortOrder)
	}

	explicit := 10
	third := newStory(t, env, "third", 0)
	item, err = env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: third.ID, SortOrder: &explicit, ActorID: "tester"})
	if err != nil {
		t.Fatalf("add third: %v", err)
	}
	if item.SortOrder != 10 {
		t.Fatalf("expected explicit order 10, got %d", item.SortOrder)
	}
}

func TestBacklogRemoveReportsPresence(t *testing.T) {
	env := newTestEnv(t)
	sprint := newSprint(t, env, "Sprint 1")
	story := newStory(t, env, "transient", 0)
	if _, err := env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: story.ID, ActorID: "tester"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	removed, err := env.Engine.RemoveStoryFromBacklog(env.Ctx, sprint.ID, story.ID, "tester")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal of present story")
	}
	removed, err = env.Engine.RemoveStoryFromBacklog(env.Ctx, sprint.ID, story.ID, "tester")
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if removed {
		t.Fatalf("expected no-op removal for absent story")
	}
}

func TestBacklogReorderSwapsOccupant(t *testing.T) {
	env := newTestEnv(t)
	sprint := newSprint(t, env, "Sprint 1")
	stories := []domain.UserStory{
		newStory(t, env, "alpha", 0),
		newStory(t, env, "beta", 0),
		newStory(t, env, "gamma", 0),
	}
	for _, s := range stories {
		if _, err := env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: s.ID, ActorID: "tester"}); err != nil {
			t.Fatalf("add %s: %v", s.Title, err)
		}
	}
	if err := env.Engine.ReorderBacklog(env.Ctx, sprint.ID, stories[2].ID, 1, "tester"); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	entries, err := env.Engine.ListBacklog(env.Ctx, sprint.ID)
	if err != nil {
		t.Fatalf("list backlog: %v", err)
	}
	got := map[string]int{}
	for _, entry := range entries {
		got[entry.Story.ID] = entry.Item.SortOrder
	}
	if got[stories[2].ID] != 1 {
		t.Fatalf("expected gamma at 1, got %d", got[stories[2].ID])
	}
	if got[stories[0].ID] != 3 {
		t.Fatalf("expected alpha swapped to 3, got %d", got[stories[0].ID])
	}
	if got[stories[1].ID] != 2 {
		t.Fatalf("expected beta untouched at 2, got %d", got[stories[1].ID])
	}
	if entries[0].Story.ID != stories[2].ID {
		t.Fatalf("expected listing sorted by position")
	}

	// reorder of a story outside the backlog is an error
	stray := newStory(t, env, "stray", 0)
	err = env.Engine.ReorderBacklog(env.Ctx, sprint.ID, stray.ID, 1, "tester")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for stray story, got %v", err)
	}
}

func TestSprintLifecycle(t *testing.T) {
	env := newTestEnv(t)
	sprint := newSprint(t, env, "Sprint 1")
	if sprint.Status != domain.SprintPlanned {
		t.Fatalf("expected planned, got %s", sprint.Status)
	}
	sprint, err := env.Engine.StartSprint(env.Ctx, sprint.ID, "tester")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sprint.Status != domain.SprintActive {
		t.Fatalf("expected active, got %s", sprint.Status)
	}
	sprint, err = env.Engine.CompleteSprint(env.Ctx, sprint.ID, "tester")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if sprint.Status != domain.SprintCompleted {
		t.Fatalf("expected completed, got %s", sprint.Status)
	}

	// completed is terminal
	_, err = env.Engine.StartSprint(env.Ctx, sprint.ID, "tester")
	var invalid engine.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if invalid.From != domain.SprintCompleted || invalid.To != domain.SprintActive {
		t.Fatalf("unexpected transition detail: %+v", invalid)
	}

	cancelled := newSprint(t, env, "Sprint 2")
	if _, err := env.Engine.CancelSprint(env.Ctx, cancelled.ID, "tester"); err != nil {
		t.Fatalf("cancel planned: %v", err)
	}
	if _, err := env.Engine.StartSprint(env.Ctx, cancelled.ID, "tester"); !errors.As(err, &invalid) {
		t.Fatalf("expected cancelled terminal, got %v", err)
	}
}

func TestSprintWindowDefaults(t *testing.T) {
	env := newTestEnv(t)
	sprint := newSprint(t, env, "Window")
	start, err := time.Parse(time.RFC3339, sprint.StartDate)
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	end, err := time.Parse(time.RFC3339, sprint.EndDate)
	if err != nil {
		t.Fatalf("parse end: %v", err)
	}
	if got := end.Sub(start); got != 14*24*time.Hour {
		t.Fatalf("expected 14 day window, got %s", got)
	}

	_, err = env.Engine.CreateSprint(env.Ctx, engine.SprintCreateOptions{
		ProjectID: "proj-1",
		Name:      "Backwards",
		StartDate: "2024-02-01T00:00:00Z",
		EndDate:   "2024-01-01T00:00:00Z",
		ActorID:   "tester",
	})
	if err == nil {
		t.Fatalf("expected end-before-start rejection")
	}
}

func TestMetricsSnapshotOnComplete(t *testing.T) {
	env := newTestEnv(t)
	sprint := newSprint(t, env, "Sprint 1")

	// no snapshot until one is taken
	_, err := env.Engine.SprintMetrics(env.Ctx, sprint.ID)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected no snapshot yet, got %v", err)
	}

	done := statusByName(t, env, domain.KindStory, "Done")
	taskDone := statusByName(t, env, domain.KindTask, "Done")
	finished := newStory(t, env, "finished", 5)
	pending := newStory(t, env, "pending", 3)
	for _, s := range []domain.UserStory{finished, pending} {
		if _, err := env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: s.ID, ActorID: "tester"}); err != nil {
			t.Fatalf("add %s: %v", s.Title, err)
		}
	}
	if _, err := env.Engine.ChangeStoryStatus(env.Ctx, finished.ID, done.ID, "tester"); err != nil {
		t.Fatalf("finish story: %v", err)
	}
	for _, tc := range []struct {
		title   string
		storyID string
		done    bool
	}{
		{"task one", finished.ID, true},
		{"task two", pending.ID, false},
	} {
		task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
			ProjectID: "proj-1",
			StoryID:   &tc.storyID,
			Title:     tc.title,
			ActorID:   "tester",
		})
		if err != nil {
			t.Fatalf("create %s: %v", tc.title, err)
		}
		if tc.done {
			if _, err := env.Engine.ChangeTaskStatus(env.Ctx, task.ID, taskDone.ID, "tester"); err != nil {
				t.Fatalf("finish %s: %v", tc.title, err)
			}
		}
	}

	if _, err := env.Engine.StartSprint(env.Ctx, sprint.ID, "tester"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.Engine.CompleteSprint(env.Ctx, sprint.ID, "tester"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	m, err := env.Engine.SprintMetrics(env.Ctx, sprint.ID)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.PlannedPoints != 8 {
		t.Fatalf("expected 8 planned points, got %d", m.PlannedPoints)
	}
	if m.CompletedPoints != 5 {
		t.Fatalf("expected 5 completed points, got %d", m.CompletedPoints)
	}
	if m.TotalTasks != 2 || m.CompletedTasks != 1 {
		t.Fatalf("expected 2/1 tasks, got %d/%d", m.TotalTasks, m.CompletedTasks)
	}
	if m.Velocity != m.CompletedPoints {
		t.Fatalf("expected velocity %d, got %d", m.CompletedPoints, m.Velocity)
	}
}

func TestMetricsAreSnapshotNotLive(t *testing.T) {
	env := newTestEnv(t)
	sprint := newSprint(t, env, "Sprint 1")
	story := newStory(t, env, "tracked", 5)
	if _, err := env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: story.ID, ActorID: "tester"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := env.Engine.RefreshSprintMetrics(env.Ctx, sprint.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// completing the story afterwards must not change the stored row
	done := statusByName(t, env, domain.KindStory, "Done")
	if _, err := env.Engine.ChangeStoryStatus(env.Ctx, story.ID, done.ID, "tester"); err != nil {
		t.Fatalf("finish story: %v", err)
	}
	m, err := env.Engine.SprintMetrics(env.Ctx, sprint.ID)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.CompletedPoints != 0 {
		t.Fatalf("expected stale snapshot, got %d completed points", m.CompletedPoints)
	}

	m, err = env.Engine.RefreshSprintMetrics(env.Ctx, sprint.ID)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if m.CompletedPoints != 5 {
		t.Fatalf("expected refreshed snapshot, got %d completed points", m.CompletedPoints)
	}
}

func TestBacklogRejectsForeignStory(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.InitProject(env.Ctx, engine.InitProjectOptions{
		TenantID:  "acme",
		ProjectID: "proj-2",
		Name:      "Other Project",
		Config:    config.Default("proj-2"),
		ActorID:   "tester",
	}); err != nil {
		t.Fatalf("init second project: %v", err)
	}
	foreign, err := env.Engine.CreateStory(env.Ctx, engine.StoryCreateOptions{
		ProjectID: "proj-2",
		Title:     "elsewhere",
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create foreign story: %v", err)
	}
	sprint := newSprint(t, env, "Sprint 1")
	_, err = env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: foreign.ID, ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected cross-project rejection")
	}
}

func TestBacklogReorderRollsBackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	sprint := newSprint(t, env, "Sprint 1")
	head := newStory(t, env, "head", 0)
	tail := newStory(t, env, "tail", 0)
	top := 99
	if _, err := env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: tail.ID, ActorID: "tester"}); err != nil {
		t.Fatalf("add tail: %v", err)
	}
	if _, err := env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: head.ID, SortOrder: &top, ActorID: "tester"}); err != nil {
		t.Fatalf("add head: %v", err)
	}

	// The swap writes the occupant first, then the moved story. Reject
	// the second write and make sure the first does not survive.
	if _, err := env.Engine.DB.Exec(`CREATE TRIGGER reject_top_order BEFORE UPDATE ON sprint_backlog FOR EACH ROW
WHEN NEW.sort_order = 99 BEGIN SELECT RAISE(ABORT, 'order rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := env.Engine.ReorderBacklog(env.Ctx, sprint.ID, tail.ID, top, "tester"); err == nil {
		t.Fatalf("expected reorder failure")
	}

	entries, err := env.Engine.ListBacklog(env.Ctx, sprint.ID)
	if err != nil {
		t.Fatalf("list backlog: %v", err)
	}
	got := map[string]int{}
	for _, entry := range entries {
		got[entry.Story.ID] = entry.Item.SortOrder
	}
	if got[head.ID] != top {
		t.Fatalf("expected head untouched at %d, got %d", top, got[head.ID])
	}
	if got[tail.ID] != 1 {
		t.Fatalf("expected tail untouched at 1, got %d", got[tail.ID])
	}
}

func TestCompleteSprintCommitsStatusAndSnapshotTogether(t *testing.T) {
	env := newTestEnv(t)
	sprint := newSprint(t, env, "Sprint 1")
	story := newStory(t, env, "tracked", 5)
	if _, err := env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: story.ID, ActorID: "tester"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := env.Engine.StartSprint(env.Ctx, sprint.ID, "tester"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A failing snapshot write must take the status change down with it.
	if _, err := env.Engine.DB.Exec(`CREATE TRIGGER reject_metric_write BEFORE INSERT ON sprint_metrics
BEGIN SELECT RAISE(ABORT, 'metric write rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if _, err := env.Engine.CompleteSprint(env.Ctx, sprint.ID, "tester"); err == nil {
		t.Fatalf("expected completion failure")
	}
	got, err := env.Engine.Repo.GetSprint(env.Ctx, sprint.ID)
	if err != nil {
		t.Fatalf("get sprint: %v", err)
	}
	if got.Status != domain.SprintActive {
		t.Fatalf("expected sprint still active, got %s", got.Status)
	}
	if _, err := env.Engine.SprintMetrics(env.Ctx, sprint.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected no snapshot, got %v", err)
	}

	if _, err := env.Engine.DB.Exec(`DROP TRIGGER reject_metric_write`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	if _, err := env.Engine.CompleteSprint(env.Ctx, sprint.ID, "tester"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	m, err := env.Engine.SprintMetrics(env.Ctx, sprint.ID)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.PlannedPoints != 5 {
		t.Fatalf("expected 5 planned points, got %d", m.PlannedPoints)
	}
}

func TestTeamMembership(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTeam(env.Ctx, engine.TeamCreateOptions{ProjectID: "proj-1", ActorID: "tester"}); err == nil {
		t.Fatalf("expected empty name rejection")
	}
	if _, err := env.Engine.CreateTeam(env.Ctx, engine.TeamCreateOptions{ProjectID: "missing", Name: "Platform", ActorID: "tester"}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown project, got %v", err)
	}
	team, err := env.Engine.CreateTeam(env.Ctx, engine.TeamCreateOptions{ProjectID: "proj-1", Name: "Platform", ActorID: "tester"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}

	m, err := env.Engine.AddTeamMember(env.Ctx, team.ID, "alice", "")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if m.Role != "member" {
		t.Fatalf("expected default role member, got %s", m.Role)
	}
	// adding the same actor again updates the role
	if _, err := env.Engine.AddTeamMember(env.Ctx, team.ID, "alice", "lead"); err != nil {
		t.Fatalf("update member: %v", err)
	}
	if _, err := env.Engine.AddTeamMember(env.Ctx, team.ID, "bob", "member"); err != nil {
		t.Fatalf("add second member: %v", err)
	}
	members, err := env.Engine.ListTeamMembers(env.Ctx, team.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	roles := map[string]string{}
	for _, member := range members {
		roles[member.ActorID] = member.Role
	}
	if len(roles) != 2 || roles["alice"] != "lead" || roles["bob"] != "member" {
		t.Fatalf("unexpected membership: %v", roles)
	}

	teams, err := env.Engine.ListTeams(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != team.ID {
		t.Fatalf("unexpected teams: %v", teams)
	}
	if _, err := env.Engine.ListTeamMembers(env.Ctx, "missing-team"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown team, got %v", err)
	}
}

func TestActivityLogRecordsMutations(t *testing.T) {
	env := newTestEnv(t)
	sprint := newSprint(t, env, "Sprint 1")
	story := newStory(t, env, "logged", 0)
	if _, err := env.Engine.AddStoryToBacklog(env.Ctx, engine.BacklogAddOptions{SprintID: sprint.ID, StoryID: story.ID, ActorID: "tester"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	activities, err := env.Engine.Repo.LatestActivities(env.Ctx, "proj-1", 50)
	if err != nil {
		t.Fatalf("latest activities: %v", err)
	}
	seen := map[string]bool{}
	for _, a := range activities {
		seen[a.Type] = true
	}
	for _, want := range []string{"project.init", "sprint.create", "story.create", "sprint.backlog.add"} {
		if !seen[want] {
			t.Fatalf("expected activity %s, got %v", want, seen)
		}
	}
}
