package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/migrate"
	"hireline/internal/repo"
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
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("acme")
	eng := engine.New(conn, cfg)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	eng.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()
	if _, err := eng.InitCompany(ctx, "acme", "Acme", "rec-1"); err != nil {
		t.Fatalf("init company: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func seedJob(t *testing.T, env testEnv) (domain.Job, []domain.Stage) {
	t.Helper()
	job, stages, err := env.Engine.CreateJob(env.Ctx, engine.JobCreateOptions{
		CompanyID: "acme",
		Title:     "Backend Engineer",
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job, stages
}

func seedApplication(t *testing.T, env testEnv, jobID, first string) domain.Application {
	t.Helper()
	a, err := env.Engine.CreateApplication(env.Ctx, engine.ApplicationCreateOptions{
		CompanyID: "acme",
		JobID:     jobID,
		FirstName: first,
		LastName:  "Silva",
	})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	return a
}

func strPtr(s string) *string { return &s }

func TestDefaultPipelineSeeded(t *testing.T) {
	env := newTestEnv(t)
	_, stages := seedJob(t, env)
	if len(stages) != 3 {
		t.Fatalf("expected 3 default stages, got %d", len(stages))
	}
	want := []string{"Triagem", "Entrevista", "Contratação"}
	for i, s := range stages {
		if s.Name != want[i] {
			t.Fatalf("stage %d = %q, want %q", i, s.Name, want[i])
		}
		if s.OrderIndex != i {
			t.Fatalf("stage %q order = %d, want %d", s.Name, s.OrderIndex, i)
		}
		if !s.IsActive {
			t.Fatalf("stage %q not active", s.Name)
		}
	}
}

func TestMoveWritesLedger(t *testing.T) {
	env := newTestEnv(t)
	job, stages := seedJob(t, env)
	app := seedApplication(t, env, job.ID, "Ana")

	res, err := env.Engine.MoveApplication(env.Ctx, engine.MoveOptions{
		CompanyID: "acme", JobID: job.ID, ApplicationID: app.ID,
		ToStageID: stages[0].ID, ActorID: "rec-1",
	})
	if err != nil {
		t.Fatalf("first move: %v", err)
	}
	if !res.Changed {
		t.Fatal("first move should report a change")
	}
	if res.History == nil || res.History.FromStageID != nil {
		t.Fatalf("first placement should have nil from stage, got %+v", res.History)
	}
	if res.Application.CurrentStageID == nil || *res.Application.CurrentStageID != stages[0].ID {
		t.Fatalf("pointer not updated: %+v", res.Application.CurrentStageID)
	}

	res, err = env.Engine.MoveApplication(env.Ctx, engine.MoveOptions{
		CompanyID: "acme", JobID: job.ID, ApplicationID: app.ID,
		ToStageID: stages[1].ID, ActorID: "rec-1", Notes: "strong phone screen",
	})
	if err != nil {
		t.Fatalf("second move: %v", err)
	}
	if res.History.FromStageID == nil || *res.History.FromStageID != stages[0].ID {
		t.Fatalf("second move from = %v, want %s", res.History.FromStageID, stages[0].ID)
	}

	entries, err := env.Engine.GetHistory(env.Ctx, "acme", job.ID, app.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(entries))
	}
	// newest first
	if entries[0].ToStageID != stages[1].ID || entries[1].ToStageID != stages[0].ID {
		t.Fatalf("unexpected ledger order: %s then %s", entries[0].ToStageID, entries[1].ToStageID)
	}
	if entries[0].Notes != "strong phone screen" {
		t.Fatalf("notes = %q", entries[0].Notes)
	}

	check, err := env.Engine.VerifyHistory(env.Ctx, "acme", job.ID, app.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !check.Consistent || check.Entries != 2 {
		t.Fatalf("ledger inconsistent: %+v", check)
	}
}

func TestMoveToCurrentStageIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	job, stages := seedJob(t, env)
	app := seedApplication(t, env, job.ID, "Bruno")

	opts := engine.MoveOptions{CompanyID: "acme", JobID: job.ID, ApplicationID: app.ID, ToStageID: stages[0].ID, ActorID: "rec-1"}
	if _, err := env.Engine.MoveApplication(env.Ctx, opts); err != nil {
		t.Fatalf("first move: %v", err)
	}
	res, err := env.Engine.MoveApplication(env.Ctx, opts)
	if err != nil {
		t.Fatalf("repeat move: %v", err)
	}
	if res.Changed {
		t.Fatal("repeat move should not report a change")
	}
	entries, _ := env.Engine.GetHistory(env.Ctx, "acme", job.ID, app.ID, 0)
	if len(entries) != 1 {
		t.Fatalf("repeat move must not append to the ledger, got %d rows", len(entries))
	}
}

func TestMoveToForeignStageRejected(t *testing.T) {
	env := newTestEnv(t)
	job, _ := seedJob(t, env)
	other, otherStages, err := env.Engine.CreateJob(env.Ctx, engine.JobCreateOptions{CompanyID: "acme", Title: "Designer"})
	if err != nil {
		t.Fatalf("create second job: %v", err)
	}
	_ = other
	app := seedApplication(t, env, job.ID, "Carla")

	_, err = env.Engine.MoveApplication(env.Ctx, engine.MoveOptions{
		CompanyID: "acme", JobID: job.ID, ApplicationID: app.ID,
		ToStageID: otherStages[0].ID, ActorID: "rec-1",
	})
	var invalid engine.InvalidStageError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidStageError, got %v", err)
	}
	entries, _ := env.Engine.GetHistory(env.Ctx, "acme", job.ID, app.ID, 0)
	if len(entries) != 0 {
		t.Fatalf("failed move must not write the ledger, got %d rows", len(entries))
	}
}

func TestConcurrentMoveConflicts(t *testing.T) {
	env := newTestEnv(t)
	job, stages := seedJob(t, env)
	app := seedApplication(t, env, job.ID, "Diego")

	// A second writer lands between this move's read and its write.
	rival := env.Engine
	rival.AfterStageRead = nil
	eng := env.Engine
	eng.AfterStageRead = func() {
		if _, err := rival.MoveApplication(env.Ctx, engine.MoveOptions{
			CompanyID: "acme", JobID: job.ID, ApplicationID: app.ID,
			ToStageID: stages[1].ID, ActorID: "rec-2",
		}); err != nil {
			t.Fatalf("rival move: %v", err)
		}
	}
	_, err := eng.MoveApplication(env.Ctx, engine.MoveOptions{
		CompanyID: "acme", JobID: job.ID, ApplicationID: app.ID,
		ToStageID: stages[0].ID, ActorID: "rec-1",
	})
	if !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// Only the rival's transition is in the ledger.
	entries, _ := env.Engine.GetHistory(env.Ctx, "acme", job.ID, app.ID, 0)
	if len(entries) != 1 || entries[0].ToStageID != stages[1].ID {
		t.Fatalf("ledger after conflict: %+v", entries)
	}
	check, _ := env.Engine.VerifyHistory(env.Ctx, "acme", job.ID, app.ID)
	if !check.Consistent {
		t.Fatalf("ledger inconsistent after conflict: %+v", check)
	}
}

func TestCrossTenantLooksAbsent(t *testing.T) {
	env := newTestEnv(t)
	job, stages := seedJob(t, env)
	app := seedApplication(t, env, job.ID, "Elena")
	if _, err := env.Engine.InitCompany(env.Ctx, "globex", "Globex", "rec-9"); err != nil {
		t.Fatalf("init second company: %v", err)
	}

	if _, err := env.Engine.Repo.GetApplication(env.Ctx, "globex", job.ID, app.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-tenant get = %v, want ErrNotFound", err)
	}
	_, err := env.Engine.MoveApplication(env.Ctx, engine.MoveOptions{
		CompanyID: "globex", JobID: job.ID, ApplicationID: app.ID,
		ToStageID: stages[0].ID, ActorID: "rec-9",
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-tenant move = %v, want ErrNotFound", err)
	}
	if _, err := env.Engine.GetHistory(env.Ctx, "globex", job.ID, app.ID, 0); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-tenant history = %v, want ErrNotFound", err)
	}

	// A tag from another company's catalog is indistinguishable from an
	// unknown one.
	foreign, err := env.Engine.CreateTag(env.Ctx, engine.TagCreateOptions{CompanyID: "globex", Label: "Finalista"})
	if err != nil {
		t.Fatalf("create foreign tag: %v", err)
	}
	_, _, err = env.Engine.AddTag(env.Ctx, "acme", job.ID, app.ID, foreign.ID, "rec-1")
	var invalid engine.InvalidTagError
	if !errors.As(err, &invalid) {
		t.Fatalf("cross-tenant tag = %v, want InvalidTagError", err)
	}
}

func TestAddTagIdempotent(t *testing.T) {
	env := newTestEnv(t)
	job, _ := seedJob(t, env)
	app := seedApplication(t, env, job.ID, "Fábio")
	tag, err := env.Engine.CreateTag(env.Ctx, engine.TagCreateOptions{CompanyID: "acme", Label: "Finalista"})
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if tag.Color != "#3B82F6" || tag.TextColor != "#FFFFFF" {
		t.Fatalf("default colors not applied: %+v", tag)
	}

	first, created, err := env.Engine.AddTag(env.Ctx, "acme", job.ID, app.ID, tag.ID, "rec-1")
	if err != nil || !created {
		t.Fatalf("first add: created=%v err=%v", created, err)
	}
	second, created, err := env.Engine.AddTag(env.Ctx, "acme", job.ID, app.ID, tag.ID, "rec-2")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if created {
		t.Fatal("second add must not create a new annotation")
	}
	if second.ID != first.ID {
		t.Fatalf("second add returned a different annotation: %s vs %s", second.ID, first.ID)
	}

	tags, err := env.Engine.ListApplicationTags(env.Ctx, "acme", job.ID, app.ID)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(tags))
	}
	if tags[0].Label != "Finalista" || tags[0].Color != "#3B82F6" {
		t.Fatalf("annotation missing tag fields: %+v", tags[0])
	}
}

func TestRemoveTagNeverAdded(t *testing.T) {
	env := newTestEnv(t)
	job, _ := seedJob(t, env)
	app := seedApplication(t, env, job.ID, "Gina")
	tag, _ := env.Engine.CreateTag(env.Ctx, engine.TagCreateOptions{CompanyID: "acme", Label: "Urgente"})

	if err := env.Engine.RemoveTag(env.Ctx, "acme", job.ID, app.ID, tag.ID); err != nil {
		t.Fatalf("removing an absent tag should succeed: %v", err)
	}
	// Add, remove, remove again.
	if _, _, err := env.Engine.AddTag(env.Ctx, "acme", job.ID, app.ID, tag.ID, "rec-1"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.RemoveTag(env.Ctx, "acme", job.ID, app.ID, tag.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := env.Engine.RemoveTag(env.Ctx, "acme", job.ID, app.ID, tag.ID); err != nil {
		t.Fatalf("repeat remove: %v", err)
	}
	tags, _ := env.Engine.ListApplicationTags(env.Ctx, "acme", job.ID, app.ID)
	if len(tags) != 0 {
		t.Fatalf("expected no annotations, got %d", len(tags))
	}
}

func TestDuplicateTagLabel(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTag(env.Ctx, engine.TagCreateOptions{CompanyID: "acme", Label: "Finalista"}); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.CreateTag(env.Ctx, engine.TagCreateOptions{CompanyID: "acme", Label: "Finalista"})
	if !errors.Is(err, engine.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// The same label is free in another company.
	if _, err := env.Engine.InitCompany(env.Ctx, "globex", "Globex", "rec-9"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateTag(env.Ctx, engine.TagCreateOptions{CompanyID: "globex", Label: "Finalista"}); err != nil {
		t.Fatalf("same label in another company: %v", err)
	}
}

func TestRewriteStagesProtectsReferences(t *testing.T) {
	env := newTestEnv(t)
	job, stages := seedJob(t, env)
	app := seedApplication(t, env, job.ID, "Hugo")
	if _, err := env.Engine.MoveApplication(env.Ctx, engine.MoveOptions{
		CompanyID: "acme", JobID: job.ID, ApplicationID: app.ID, ToStageID: stages[0].ID, ActorID: "rec-1",
	}); err != nil {
		t.Fatal(err)
	}

	// Dropping the stage the application sits at is rejected.
	_, err := env.Engine.RewriteStages(env.Ctx, "acme", job.ID, []engine.StageInput{
		{ID: stages[1].ID, Name: stages[1].Name, OrderIndex: 0},
		{ID: stages[2].ID, Name: stages[2].Name, OrderIndex: 1},
	})
	var invalid engine.InvalidStageError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidStageError, got %v", err)
	}

	// After the application moves on, the old stage is in the ledger, so a
	// rewrite deactivates it instead of deleting it.
	if _, err := env.Engine.MoveApplication(env.Ctx, engine.MoveOptions{
		CompanyID: "acme", JobID: job.ID, ApplicationID: app.ID, ToStageID: stages[1].ID, ActorID: "rec-1",
	}); err != nil {
		t.Fatal(err)
	}
	out, err := env.Engine.RewriteStages(env.Ctx, "acme", job.ID, []engine.StageInput{
		{ID: stages[1].ID, Name: "Entrevista Final", OrderIndex: 0},
		{Name: "Proposta", OrderIndex: 1},
	})
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	byName := map[string]domain.Stage{}
	for _, s := range out {
		byName[s.Name] = s
	}
	if s, ok := byName["Triagem"]; !ok || s.IsActive {
		t.Fatalf("ledger-referenced stage should remain, deactivated: %+v", s)
	}
	if _, ok := byName["Contratação"]; ok {
		t.Fatal("unreferenced stage should be deleted")
	}
	if s := byName["Entrevista Final"]; s.ID != stages[1].ID || s.OrderIndex != 0 {
		t.Fatalf("kept stage not updated in place: %+v", s)
	}
	if s, ok := byName["Proposta"]; !ok || s.OrderIndex != 1 || !s.IsActive {
		t.Fatalf("new stage missing: %+v", s)
	}

	// The ledger still resolves and moving to the deactivated stage fails.
	check, err := env.Engine.VerifyHistory(env.Ctx, "acme", job.ID, app.ID)
	if err != nil || !check.Consistent {
		t.Fatalf("ledger after rewrite: %+v err=%v", check, err)
	}
	_, err = env.Engine.MoveApplication(env.Ctx, engine.MoveOptions{
		CompanyID: "acme", JobID: job.ID, ApplicationID: app.ID, ToStageID: stages[0].ID, ActorID: "rec-1",
	})
	if !errors.As(err, &invalid) {
		t.Fatalf("move to deactivated stage = %v, want InvalidStageError", err)
	}
}

func TestRewriteStagesValidation(t *testing.T) {
	env := newTestEnv(t)
	job, stages := seedJob(t, env)

	cases := []struct {
		name   string
		stages []engine.StageInput
	}{
		{"empty pipeline", nil},
		{"negative order", []engine.StageInput{{Name: "A", OrderIndex: -1}}},
		{"duplicate order", []engine.StageInput{{Name: "A", OrderIndex: 0}, {Name: "B", OrderIndex: 0}}},
		{"blank name", []engine.StageInput{{Name: "  ", OrderIndex: 0}}},
		{"foreign stage id", []engine.StageInput{{ID: "nope", Name: "A", OrderIndex: 0}}},
	}
	for _, tc := range cases {
		_, err := env.Engine.RewriteStages(env.Ctx, "acme", job.ID, tc.stages)
		var invalid engine.InvalidStageError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s: expected InvalidStageError, got %v", tc.name, err)
		}
	}

	// A pure reorder swaps indexes without tripping the uniqueness rule.
	out, err := env.Engine.RewriteStages(env.Ctx, "acme", job.ID, []engine.StageInput{
		{ID: stages[0].ID, Name: stages[0].Name, OrderIndex: 2},
		{ID: stages[1].ID, Name: stages[1].Name, OrderIndex: 1},
		{ID: stages[2].ID, Name: stages[2].Name, OrderIndex: 0},
	})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if out[0].ID != stages[2].ID || out[2].ID != stages[0].ID {
		t.Fatalf("reorder not applied: %+v", out)
	}
}

func TestJobStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	job, _ := seedJob(t, env)
	for _, status := range []string{"published", "paused", "published", "closed"} {
		j, err := env.Engine.SetJobStatus(env.Ctx, "acme", job.ID, status)
		if err != nil {
			t.Fatalf("to %s: %v", status, err)
		}
		if j.Status != status {
			t.Fatalf("status = %s, want %s", j.Status, status)
		}
	}
	if _, err := env.Engine.SetJobStatus(env.Ctx, "acme", job.ID, "published"); err == nil {
		t.Fatal("closed job must not reopen")
	}
}

func TestDuplicateApplication(t *testing.T) {
	env := newTestEnv(t)
	job, _ := seedJob(t, env)
	email := strPtr("ana@example.com")
	if _, err := env.Engine.CreateApplication(env.Ctx, engine.ApplicationCreateOptions{
		CompanyID: "acme", JobID: job.ID, FirstName: "Ana", LastName: "Silva", Email: email,
	}); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.CreateApplication(env.Ctx, engine.ApplicationCreateOptions{
		CompanyID: "acme", JobID: job.ID, FirstName: "Ana Maria", LastName: "Silva", Email: email,
	})
	if !errors.Is(err, engine.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Same email is fine on another job.
	other, _, err := env.Engine.CreateJob(env.Ctx, engine.JobCreateOptions{CompanyID: "acme", Title: "Designer"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateApplication(env.Ctx, engine.ApplicationCreateOptions{
		CompanyID: "acme", JobID: other.ID, FirstName: "Ana", LastName: "Silva", Email: email,
	}); err != nil {
		t.Fatalf("same email on another job: %v", err)
	}
}

func TestEvaluationAndBoard(t *testing.T) {
	env := newTestEnv(t)
	job, stages := seedJob(t, env)
	low := seedApplication(t, env, job.ID, "Igor")
	high := seedApplication(t, env, job.ID, "Julia")
	unplaced := seedApplication(t, env, job.ID, "Kleber")

	for _, a := range []domain.Application{low, high} {
		if _, err := env.Engine.MoveApplication(env.Ctx, engine.MoveOptions{
			CompanyID: "acme", JobID: job.ID, ApplicationID: a.ID, ToStageID: stages[0].ID, ActorID: "rec-1",
		}); err != nil {
			t.Fatal(err)
		}
	}
	score := func(v float64) *float64 { return &v }
	if _, err := env.Engine.RecordEvaluation(env.Ctx, "acme", job.ID, low.ID, domain.Evaluation{
		OverallScore: score(4.5), Provider: "openai", Model: "gpt-4o",
	}); err != nil {
		t.Fatalf("record low: %v", err)
	}
	got, err := env.Engine.RecordEvaluation(env.Ctx, "acme", job.ID, high.ID, domain.Evaluation{
		OverallScore: score(9.1), EducationScore: score(8), Provider: "openai", Model: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("record high: %v", err)
	}
	if got.Evaluation == nil || *got.Evaluation.OverallScore != 9.1 {
		t.Fatalf("evaluation not stored: %+v", got.Evaluation)
	}

	board, err := env.Engine.GetBoard(env.Ctx, "acme", job.ID, repo.BoardSortScore)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(board.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(board.Columns))
	}
	first := board.Columns[0].Applications
	if len(first) != 2 || first[0].ID != high.ID {
		t.Fatalf("score sort: %+v", first)
	}
	if len(board.Unplaced) != 1 || board.Unplaced[0].ID != unplaced.ID {
		t.Fatalf("unplaced: %+v", board.Unplaced)
	}
}

func TestVerifyHistoryUnplaced(t *testing.T) {
	env := newTestEnv(t)
	job, _ := seedJob(t, env)
	app := seedApplication(t, env, job.ID, "Lia")
	check, err := env.Engine.VerifyHistory(env.Ctx, "acme", job.ID, app.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !check.Consistent || check.Entries != 0 || check.CurrentStageID != nil {
		t.Fatalf("unplaced check: %+v", check)
	}
}

func TestRewriteStagesRepeatable(t *testing.T) {
	env := newTestEnv(t)
	job, stages := seedJob(t, env)
	app := seedApplication(t, env, job.ID, "Rui")

	// Put a screening stage at the head and run the application through it
	// so the ledger references it.
	out, err := env.Engine.RewriteStages(env.Ctx, "acme", job.ID, []engine.StageInput{
		{Name: "Nova", OrderIndex: 0},
		{ID: stages[0].ID, Name: stages[0].Name, OrderIndex: 1},
		{ID: stages[1].ID, Name: stages[1].Name, OrderIndex: 2},
		{ID: stages[2].ID, Name: stages[2].Name, OrderIndex: 3},
	})
	if err != nil {
		t.Fatalf("add stage: %v", err)
	}
	nova := out[0]
	if nova.Name != "Nova" {
		t.Fatalf("unexpected head stage: %+v", out)
	}
	for _, to := range []string{nova.ID, stages[0].ID} {
		if _, err := env.Engine.MoveApplication(env.Ctx, engine.MoveOptions{
			CompanyID: "acme", JobID: job.ID, ApplicationID: app.ID, ToStageID: to, ActorID: "rec-1",
		}); err != nil {
			t.Fatalf("move: %v", err)
		}
	}

	// Dropping it deactivates it. Re-saving the identical remaining pipeline
	// afterwards must keep working rewrite after rewrite.
	keep := []engine.StageInput{
		{ID: stages[0].ID, Name: stages[0].Name, OrderIndex: 0},
		{ID: stages[1].ID, Name: stages[1].Name, OrderIndex: 1},
		{ID: stages[2].ID, Name: stages[2].Name, OrderIndex: 2},
	}
	for i := 0; i < 3; i++ {
		out, err = env.Engine.RewriteStages(env.Ctx, "acme", job.ID, keep)
		if err != nil {
			t.Fatalf("rewrite %d: %v", i, err)
		}
	}
	if len(out) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(out))
	}
	for i, s := range out {
		if s.OrderIndex != i {
			t.Fatalf("stage %q order = %d, want %d", s.Name, s.OrderIndex, i)
		}
	}
	if last := out[3]; last.ID != nova.ID || last.IsActive {
		t.Fatalf("deactivated stage should trail the active range: %+v", last)
	}
}

func TestUpdateTagFields(t *testing.T) {
	env := newTestEnv(t)
	tag, err := env.Engine.CreateTag(env.Ctx, engine.TagCreateOptions{CompanyID: "acme", Label: "Urgente", Color: "#FF0000"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateTag(env.Ctx, engine.TagCreateOptions{CompanyID: "acme", Label: "Finalista"}); err != nil {
		t.Fatal(err)
	}

	// Omitted fields stay put; an empty color resets to the company default.
	got, err := env.Engine.UpdateTag(env.Ctx, "acme", tag.ID, engine.TagUpdateOptions{Color: strPtr("")})
	if err != nil {
		t.Fatalf("reset color: %v", err)
	}
	if got.Color != "#3B82F6" {
		t.Fatalf("color not reset to default: %q", got.Color)
	}
	if got.Label != "Urgente" {
		t.Fatalf("label changed: %q", got.Label)
	}

	// Renaming onto another tag's label collides; renaming to the current
	// label does not.
	if _, err := env.Engine.UpdateTag(env.Ctx, "acme", tag.ID, engine.TagUpdateOptions{Label: strPtr("Finalista")}); !errors.Is(err, engine.ErrDuplicate) {
		t.Fatalf("rename collision = %v, want ErrDuplicate", err)
	}
	if _, err := env.Engine.UpdateTag(env.Ctx, "acme", tag.ID, engine.TagUpdateOptions{Label: strPtr("Urgente")}); err != nil {
		t.Fatalf("same-label rename: %v", err)
	}
	if _, err := env.Engine.UpdateTag(env.Ctx, "acme", tag.ID, engine.TagUpdateOptions{Label: strPtr("  ")}); err == nil {
		t.Fatal("blank label should be rejected")
	}
}
