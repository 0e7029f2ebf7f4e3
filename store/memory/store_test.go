package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	pipeline "github.com/zzygyx9119/ensembl-pipeline"
	"github.com/zzygyx9119/ensembl-pipeline/job"
	"github.com/zzygyx9119/ensembl-pipeline/store/memory"
)

func createOne(t *testing.T, s *memory.Store) *job.Record {
	t.Helper()
	created, err := s.CreateJobs(context.Background(), []*job.Record{
		{Analysis: "repeat_mask", Module: "RepeatMasker", InputID: "1:10"},
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	return created[0]
}

func TestCreateJobs_AssignsIDsAndInitialStatus(t *testing.T) {
	s := memory.New()

	created, err := s.CreateJobs(context.Background(), []*job.Record{
		{Analysis: "repeat_mask", InputID: "1:10"},
		{Analysis: "repeat_mask", InputID: "11:20"},
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if created[0].ID == 0 || created[1].ID == 0 {
		t.Fatal("expected store-assigned ids")
	}
	if created[0].ID == created[1].ID {
		t.Fatal("ids must be unique")
	}

	status, _, err := s.CurrentStatus(context.Background(), created[0].ID)
	if err != nil {
		t.Fatalf("current status error: %v", err)
	}
	if status != job.StatusCreated {
		t.Errorf("initial status = %s, want %s", status, job.StatusCreated)
	}
}

func TestAppendStatus_SingleCurrentRow(t *testing.T) {
	s := memory.New()
	rec := createOne(t, s)
	ctx := context.Background()

	for _, st := range []job.Status{job.StatusSubmitted, job.StatusRunning, job.StatusSuccessful} {
		if err := s.AppendStatus(ctx, rec.ID, st); err != nil {
			t.Fatalf("append %s: %v", st, err)
		}

		history, err := s.StatusHistory(ctx, rec.ID)
		if err != nil {
			t.Fatalf("history error: %v", err)
		}
		current := 0
		for _, ev := range history {
			if ev.IsCurrent {
				current++
				if ev.Status != st {
					t.Errorf("current row status = %s, want %s", ev.Status, st)
				}
			}
		}
		if current != 1 {
			t.Fatalf("after %s: %d current rows, want exactly 1", st, current)
		}
	}
}

func TestAppendStatus_RejectsIllegalTransition(t *testing.T) {
	s := memory.New()
	rec := createOne(t, s)

	err := s.AppendStatus(context.Background(), rec.ID, job.StatusRunning)
	if !errors.Is(err, pipeline.ErrInvalidTransition) {
		t.Fatalf("CREATED -> RUNNING error = %v, want ErrInvalidTransition", err)
	}
}

func TestAppendStatus_NothingAfterTerminal(t *testing.T) {
	s := memory.New()
	rec := createOne(t, s)
	ctx := context.Background()

	for _, st := range []job.Status{job.StatusSubmitted, job.StatusRunning, job.StatusKilled} {
		if err := s.AppendStatus(ctx, rec.ID, st); err != nil {
			t.Fatalf("append %s: %v", st, err)
		}
	}

	err := s.AppendStatus(ctx, rec.ID, job.StatusFailed)
	if !errors.Is(err, pipeline.ErrJobFinished) {
		t.Fatalf("append after terminal error = %v, want ErrJobFinished", err)
	}

	history, _ := s.StatusHistory(ctx, rec.ID)
	if got := history[len(history)-1].Status; got != job.StatusKilled {
		t.Errorf("final status = %s, want %s", got, job.StatusKilled)
	}
}

func TestUpdateSubmission_WriteOnce(t *testing.T) {
	s := memory.New()
	rec := createOne(t, s)
	ctx := context.Background()

	if err := s.UpdateSubmission(ctx, rec.ID, "4242"); err != nil {
		t.Fatalf("first update error: %v", err)
	}
	err := s.UpdateSubmission(ctx, rec.ID, "4343")
	if !errors.Is(err, pipeline.ErrAlreadySubmitted) {
		t.Fatalf("second update error = %v, want ErrAlreadySubmitted", err)
	}

	got, err := s.GetJob(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.SubmissionHandle != "4242" {
		t.Errorf("handle = %q, want %q", got.SubmissionHandle, "4242")
	}
}

func TestFind_FiltersAndAge(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	created, err := s.CreateJobs(ctx, []*job.Record{
		{Analysis: "repeat_mask", InputID: "1:10"},
		{Analysis: "genscan", InputID: "1:10"},
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := s.AppendStatus(ctx, created[0].ID, job.StatusSubmitted); err != nil {
		t.Fatalf("append error: %v", err)
	}

	byAnalysis, err := s.Find(ctx, 0, job.FindOpts{Analysis: "genscan"})
	if err != nil {
		t.Fatalf("find error: %v", err)
	}
	if len(byAnalysis) != 1 || byAnalysis[0].Analysis != "genscan" {
		t.Errorf("find by analysis returned %d records", len(byAnalysis))
	}

	byStatus, err := s.Find(ctx, 0, job.FindOpts{Status: job.StatusSubmitted})
	if err != nil {
		t.Fatalf("find error: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != created[0].ID {
		t.Errorf("find by status returned %d records", len(byStatus))
	}

	// Nothing is an hour old yet.
	stale, err := s.Find(ctx, time.Hour, job.FindOpts{})
	if err != nil {
		t.Fatalf("find error: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("find olderThan=1h returned %d records, want 0", len(stale))
	}
}

func TestGetJob_NotFound(t *testing.T) {
	s := memory.New()
	_, err := s.GetJob(context.Background(), 99)
	if !errors.Is(err, pipeline.ErrJobNotFound) {
		t.Fatalf("error = %v, want ErrJobNotFound", err)
	}
}

func TestCountByStatus(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	created, err := s.CreateJobs(ctx, []*job.Record{
		{Analysis: "repeat_mask", InputID: "1:10"},
		{Analysis: "repeat_mask", InputID: "11:20"},
		{Analysis: "genscan", InputID: "1:10"},
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := s.AppendStatus(ctx, created[0].ID, job.StatusSubmitted); err != nil {
		t.Fatalf("append error: %v", err)
	}

	counts, err := s.CountByStatus(ctx, "")
	if err != nil {
		t.Fatalf("count error: %v", err)
	}
	if counts[job.StatusCreated] != 2 || counts[job.StatusSubmitted] != 1 {
		t.Errorf("counts = %v", counts)
	}

	counts, err = s.CountByStatus(ctx, "genscan")
	if err != nil {
		t.Fatalf("count error: %v", err)
	}
	if counts[job.StatusCreated] != 1 || len(counts) != 1 {
		t.Errorf("genscan counts = %v", counts)
	}
}
