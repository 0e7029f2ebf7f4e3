package artifact_test

import (
	"context"
	"testing"
	"time"

	"github.com/zzygyx9119/ensembl-pipeline/artifact"
	"github.com/zzygyx9119/ensembl-pipeline/job"
	"github.com/zzygyx9119/ensembl-pipeline/store/memory"
)

func seedJob(t *testing.T, s *memory.Store, stdout, stderr string) *job.Record {
	t.Helper()
	ctx := context.Background()

	created, err := s.CreateJobs(ctx, []*job.Record{
		{Analysis: "repeat_mask", InputID: "1:10"},
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	rec := created[0]
	if err := s.UpdateArtifactPaths(ctx, rec.ID, stdout, stderr); err != nil {
		t.Fatalf("set paths error: %v", err)
	}
	return rec
}

func TestLiteral_RewritePreservesShardAndLeaf(t *testing.T) {
	l := artifact.NewLiteral("/scratch103/sp/")

	got, ok := l.Rewrite("/scratch103/sp/7/file.out", "/scratch110/sp")
	if !ok {
		t.Fatal("expected a match")
	}
	if got != "/scratch110/sp/7/file.out" {
		t.Errorf("rewrite = %q, want %q", got, "/scratch110/sp/7/file.out")
	}

	// Trailing separator on the prefix is normalized away.
	bare := artifact.NewLiteral("/scratch103/sp")
	got2, ok := bare.Rewrite("/scratch103/sp/7/file.out", "/scratch110/sp")
	if !ok || got2 != got {
		t.Errorf("normalized prefix rewrite = %q ok=%v, want %q", got2, ok, got)
	}

	if _, ok := l.Rewrite("/scratch104/sp/7/file.out", "/scratch110/sp"); ok {
		t.Error("non-matching prefix should miss")
	}
}

func TestDefaultMatcher_PipeLayout(t *testing.T) {
	m := artifact.DefaultMatcher()

	got, ok := m.Rewrite("/nfs/old/pipe_human/3/job_12_1700000000.out", "/nfs/new")
	if !ok {
		t.Fatal("expected a match")
	}
	if got != "/nfs/new/pipe_human/3/job_12_1700000000.out" {
		t.Errorf("rewrite = %q", got)
	}

	if _, ok := m.Rewrite("/nfs/old/other/3/job_12_1700000000.out", "/nfs/new"); ok {
		t.Error("non-pipe layout should miss")
	}
	if _, ok := m.Rewrite("/nfs/old/pipe_human/x/leaf.out", "/nfs/new"); ok {
		t.Error("non-numeric shard should miss")
	}
}

func TestRetarget_RewritesMatchesCountsMisses(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	hit := seedJob(t, s, "/scratch103/sp/7/job_1_1.out", "/scratch103/sp/7/job_1_1.err")
	miss := seedJob(t, s, "/elsewhere/7/job_2_1.out", "/elsewhere/7/job_2_1.err")

	m := artifact.NewManager(t.TempDir())
	report, err := m.Retarget(ctx, s, artifact.RetargetOptions{
		NewRoot: "/scratch110/sp",
		Matcher: artifact.NewLiteral("/scratch103/sp/"),
	})
	if err != nil {
		t.Fatalf("retarget error: %v", err)
	}

	if report.Rewritten != 1 || report.Missed != 1 {
		t.Errorf("report = %+v, want 1 rewritten and 1 missed", report)
	}

	got, err := s.GetJob(ctx, hit.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.StdoutPath != "/scratch110/sp/7/job_1_1.out" {
		t.Errorf("stdout = %q", got.StdoutPath)
	}
	if got.StderrPath != "/scratch110/sp/7/job_1_1.err" {
		t.Errorf("stderr = %q", got.StderrPath)
	}

	untouched, err := s.GetJob(ctx, miss.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if untouched.StdoutPath != "/elsewhere/7/job_2_1.out" {
		t.Errorf("missed job was mutated: %q", untouched.StdoutPath)
	}
}

func TestRetarget_DryRunMutatesNothing(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	rec := seedJob(t, s, "/scratch103/sp/7/job_1_1.out", "/scratch103/sp/7/job_1_1.err")

	m := artifact.NewManager(t.TempDir())
	report, err := m.Retarget(ctx, s, artifact.RetargetOptions{
		NewRoot: "/scratch110/sp",
		Matcher: artifact.NewLiteral("/scratch103/sp/"),
		DryRun:  true,
	})
	if err != nil {
		t.Fatalf("retarget error: %v", err)
	}
	if report.Rewritten != 1 {
		t.Errorf("dry run should still count matches, got %+v", report)
	}
	if len(report.MatchSample) != 1 {
		t.Errorf("match sample = %v", report.MatchSample)
	}

	got, err := s.GetJob(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.StdoutPath != "/scratch103/sp/7/job_1_1.out" {
		t.Errorf("dry run mutated the store: %q", got.StdoutPath)
	}
}

func TestRetarget_MinAgeExcludesFreshJobs(t *testing.T) {
	s := memory.New()
	seedJob(t, s, "/scratch103/sp/7/job_1_1.out", "/scratch103/sp/7/job_1_1.err")

	m := artifact.NewManager(t.TempDir())
	report, err := m.Retarget(context.Background(), s, artifact.RetargetOptions{
		NewRoot: "/scratch110/sp",
		Matcher: artifact.NewLiteral("/scratch103/sp/"),
		MinAge:  time.Hour,
	})
	if err != nil {
		t.Fatalf("retarget error: %v", err)
	}
	if report.Examined != 0 {
		t.Errorf("fresh job examined despite min-age guard: %+v", report)
	}
}
