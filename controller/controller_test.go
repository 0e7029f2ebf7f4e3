package controller_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	pipeline "github.com/zzygyx9119/ensembl-pipeline"
	"github.com/zzygyx9119/ensembl-pipeline/artifact"
	"github.com/zzygyx9119/ensembl-pipeline/backend"
	"github.com/zzygyx9119/ensembl-pipeline/controller"
	"github.com/zzygyx9119/ensembl-pipeline/job"
	"github.com/zzygyx9119/ensembl-pipeline/partition"
	"github.com/zzygyx9119/ensembl-pipeline/store/memory"
)

// fakeBackend records calls so tests can assert routing and ordering.
type fakeBackend struct {
	mu        sync.Mutex
	submitted []int64
	killed    []int64
	flushes   int
	failWith  error
}

var _ backend.Backend = (*fakeBackend)(nil)

func (f *fakeBackend) Submit(_ context.Context, rec *job.Record) (backend.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	f.submitted = append(f.submitted, rec.ID)
	return backend.ResultStarted, nil
}

func (f *fakeBackend) Kill(_ context.Context, rec *job.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, rec.ID)
	return nil
}

func (f *fakeBackend) Flush(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func (f *fakeBackend) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func newController(t *testing.T) (*controller.Controller, *memory.Store) {
	t.Helper()
	s := memory.New()
	mgr := artifact.NewManager(t.TempDir(), artifact.WithShardCount(2))
	return controller.New(s, mgr), s
}

func TestCreateBatch_PersistsOneJobPerChunk(t *testing.T) {
	c, s := newController(t)
	c.Register(job.Analysis{
		LogicName:  "repeat_mask",
		Module:     "RepeatMasker",
		Parameters: "-species human",
	}, &fakeBackend{})

	chunks := []partition.WorkChunk{{Start: 1, End: 10}, {Start: 11, End: 20}, {Start: 21, End: 23}}
	recs, err := c.CreateBatch(context.Background(), "repeat_mask", chunks)
	if err != nil {
		t.Fatalf("create batch error: %v", err)
	}
	if len(recs) != len(chunks) {
		t.Fatalf("created %d records, want %d", len(recs), len(chunks))
	}

	for i, rec := range recs {
		if rec.ID == 0 {
			t.Errorf("record %d has no store-assigned id", i)
		}
		want := fmt.Sprintf("%d:%d", chunks[i].Start, chunks[i].End)
		if rec.InputID != want {
			t.Errorf("input id = %q, want %q", rec.InputID, want)
		}
		if rec.Module != "RepeatMasker" || rec.Parameters != "-species human" {
			t.Errorf("analysis fields not copied onto record %d: %+v", i, rec)
		}

		status, _, err := s.CurrentStatus(context.Background(), rec.ID)
		if err != nil {
			t.Fatalf("status error: %v", err)
		}
		if status != job.StatusCreated {
			t.Errorf("fresh job status = %s, want CREATED", status)
		}
	}
}

func TestCreateBatch_UnknownAnalysis(t *testing.T) {
	c, _ := newController(t)

	_, err := c.CreateBatch(context.Background(), "ghost", []partition.WorkChunk{{Start: 1, End: 5}})
	if !errors.Is(err, pipeline.ErrAnalysisNotFound) {
		t.Fatalf("error = %v, want ErrAnalysisNotFound", err)
	}
}

func TestSubmitAll_RoutesPerAnalysisInOrder(t *testing.T) {
	c, _ := newController(t)
	repeats := &fakeBackend{}
	blasts := &fakeBackend{}
	c.Register(job.Analysis{LogicName: "repeat_mask"}, repeats)
	c.Register(job.Analysis{LogicName: "blast_homology"}, blasts)

	ctx := context.Background()
	repeatRecs, err := c.CreateBatch(ctx, "repeat_mask", []partition.WorkChunk{
		{Start: 1, End: 5}, {Start: 6, End: 10}, {Start: 11, End: 15},
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	blastRecs, err := c.CreateBatch(ctx, "blast_homology", []partition.WorkChunk{{Start: 1, End: 5}})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	mixed := []*job.Record{repeatRecs[0], blastRecs[0], repeatRecs[1], repeatRecs[2]}
	if err := c.SubmitAll(ctx, mixed); err != nil {
		t.Fatalf("submit all error: %v", err)
	}

	if len(blasts.submitted) != 1 || blasts.submitted[0] != blastRecs[0].ID {
		t.Errorf("blast backend saw %v", blasts.submitted)
	}
	wantOrder := []int64{repeatRecs[0].ID, repeatRecs[1].ID, repeatRecs[2].ID}
	if len(repeats.submitted) != len(wantOrder) {
		t.Fatalf("repeat backend saw %v, want %v", repeats.submitted, wantOrder)
	}
	for i, id := range wantOrder {
		if repeats.submitted[i] != id {
			t.Errorf("submission order = %v, want %v", repeats.submitted, wantOrder)
			break
		}
	}
}

func TestSubmitAll_CollectsFailuresWithoutAborting(t *testing.T) {
	c, _ := newController(t)
	healthy := &fakeBackend{}
	broken := &fakeBackend{failWith: errors.New("scheduler down")}
	c.Register(job.Analysis{LogicName: "genscan"}, healthy)
	c.Register(job.Analysis{LogicName: "est_align"}, broken)

	ctx := context.Background()
	good, err := c.CreateBatch(ctx, "genscan", []partition.WorkChunk{{Start: 1, End: 5}})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	bad, err := c.CreateBatch(ctx, "est_align", []partition.WorkChunk{{Start: 1, End: 5}})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	err = c.SubmitAll(ctx, append(good, bad...))
	if err == nil {
		t.Fatal("expected a joined submission error")
	}
	if len(healthy.submitted) != 1 {
		t.Errorf("healthy backend skipped: submitted %v", healthy.submitted)
	}
}

func TestSubmitAll_UnroutedJob(t *testing.T) {
	c, s := newController(t)

	created, err := s.CreateJobs(context.Background(), []*job.Record{
		{Analysis: "unregistered", InputID: "1:5"},
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	err = c.SubmitAll(context.Background(), created)
	if !errors.Is(err, pipeline.ErrNoBackend) {
		t.Fatalf("error = %v, want ErrNoBackend", err)
	}
}

func TestKill_RoutesToBackend(t *testing.T) {
	c, _ := newController(t)
	be := &fakeBackend{}
	c.Register(job.Analysis{LogicName: "repeat_mask"}, be)

	ctx := context.Background()
	recs, err := c.CreateBatch(ctx, "repeat_mask", []partition.WorkChunk{{Start: 1, End: 5}})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := c.Kill(ctx, recs[0]); err != nil {
		t.Fatalf("kill error: %v", err)
	}
	if len(be.killed) != 1 || be.killed[0] != recs[0].ID {
		t.Errorf("backend killed %v, want [%d]", be.killed, recs[0].ID)
	}

	if err := c.Kill(ctx, &job.Record{ID: 99, Analysis: "ghost"}); !errors.Is(err, pipeline.ErrNoBackend) {
		t.Errorf("error = %v, want ErrNoBackend", err)
	}
}

func TestTick_FlushesEveryBackend(t *testing.T) {
	c, _ := newController(t)
	a := &fakeBackend{}
	b := &fakeBackend{}
	c.Register(job.Analysis{LogicName: "one"}, a)
	c.Register(job.Analysis{LogicName: "two"}, b)

	c.Tick(context.Background())
	c.Tick(context.Background())

	if a.flushes != 2 || b.flushes != 2 {
		t.Errorf("flushes = %d/%d, want 2/2", a.flushes, b.flushes)
	}
}

func TestStats_CountsByStatus(t *testing.T) {
	c, _ := newController(t)
	c.Register(job.Analysis{LogicName: "repeat_mask"}, &fakeBackend{})

	ctx := context.Background()
	if _, err := c.CreateBatch(ctx, "repeat_mask", []partition.WorkChunk{
		{Start: 1, End: 5}, {Start: 6, End: 10},
	}); err != nil {
		t.Fatalf("create error: %v", err)
	}

	counts, err := c.Stats(ctx, "")
	if err != nil {
		t.Fatalf("stats error: %v", err)
	}
	if counts[job.StatusCreated] != 2 {
		t.Errorf("counts = %v, want 2 CREATED", counts)
	}
}
