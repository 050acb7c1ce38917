package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WorkerQueue", func() {
	It("runs every queued job before Shutdown returns", func() {
		var (
			mu   sync.Mutex
			seen []string
		)
		q := NewWorkerQueue(func(_ context.Context, job Job) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, job.Path)
			return nil
		}, nil, WithWorkers(3), WithQueueSize(2))

		for _, p := range []string{"a.png", "b.pdf", "c.jpg", "d.png", "e.png"} {
			Expect(q.Enqueue(context.Background(), Job{Path: p})).To(Succeed())
		}
		q.Shutdown(context.Background())

		Expect(seen).To(ConsistOf("a.png", "b.pdf", "c.jpg", "d.png", "e.png"))
	})

	It("assigns an id and submission time when missing", func() {
		got := make(chan Job, 1)
		q := NewWorkerQueue(func(_ context.Context, job Job) error {
			got <- job
			return nil
		}, nil, WithWorkers(1))
		Expect(q.Enqueue(context.Background(), Job{Path: "x.png"})).To(Succeed())
		q.Shutdown(context.Background())

		var job Job
		Eventually(got).Should(Receive(&job))
		Expect(job.ID).NotTo(Equal(uuid.Nil))
		Expect(job.SubmittedAt).NotTo(BeZero())
	})

	It("keeps processing after a handler error", func() {
		var calls atomic.Int32
		q := NewWorkerQueue(func(_ context.Context, job Job) error {
			calls.Add(1)
			if job.Path == "bad" {
				return errors.New("boom")
			}
			return nil
		}, nil, WithWorkers(1))
		Expect(q.Enqueue(context.Background(), Job{Path: "bad"})).To(Succeed())
		Expect(q.Enqueue(context.Background(), Job{Path: "good"})).To(Succeed())
		q.Shutdown(context.Background())

		Expect(calls.Load()).To(Equal(int32(2)))
	})

	It("gives each job a context bounded by the process timeout", func() {
		deadlines := make(chan bool, 1)
		q := NewWorkerQueue(func(ctx context.Context, _ Job) error {
			_, ok := ctx.Deadline()
			deadlines <- ok
			<-ctx.Done()
			return ctx.Err()
		}, nil, WithWorkers(1), WithProcessTimeout(20*time.Millisecond))
		Expect(q.Enqueue(context.Background(), Job{Path: "slow"})).To(Succeed())
		q.Shutdown(context.Background())

		Expect(deadlines).To(Receive(BeTrue()))
	})

	It("rejects jobs after Shutdown", func() {
		q := NewWorkerQueue(func(context.Context, Job) error { return nil }, nil)
		q.Shutdown(context.Background())
		q.Shutdown(context.Background())

		Expect(q.Enqueue(context.Background(), Job{Path: "late"})).To(MatchError(ErrClosed))
	})

	It("stops waiting for room when the enqueue context ends", func() {
		release := make(chan struct{})
		q := NewWorkerQueue(func(context.Context, Job) error {
			<-release
			return nil
		}, nil, WithWorkers(1), WithQueueSize(1))
		DeferCleanup(func() {
			close(release)
			q.Shutdown(context.Background())
		})

		// one job held by the worker, one filling the buffer
		Expect(q.Enqueue(context.Background(), Job{Path: "1"})).To(Succeed())
		Eventually(func() int { return len(q.ch) }).Should(Equal(0))
		Expect(q.Enqueue(context.Background(), Job{Path: "2"})).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(q.Enqueue(ctx, Job{Path: "3"})).To(MatchError(context.DeadlineExceeded))
	})
})
