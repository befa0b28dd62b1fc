package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/service"
)

// Reconciler один проход сверки историй
type Reconciler interface {
	ReconcileOnce(ctx context.Context) (service.ReconcileReport, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	reconciler Reconciler
	interval   time.Duration
	cron       *cron.Cron
	chain      cron.Chain
	wg         sync.WaitGroup // первый проход вне cron
	logger     *zap.Logger
}

// NewScheduler создаёт новый планировщик
func NewScheduler(reconciler Reconciler, interval time.Duration, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		reconciler: reconciler,
		interval:   interval,
		cron:       cron.New(cron.WithLogger(cl)),
		// следующий проход пропускается, пока идёт текущий, включая первый
		chain:  cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		logger: logger,
	}
}

// Start первый проход сразу, дальше по расписанию
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting background scheduler", zap.Duration("history_interval", s.interval))

	job := s.chain.Then(cron.FuncJob(func() {
		s.reconcileHistories(ctx)
	}))

	if _, err := s.cron.AddJob(fmt.Sprintf("@every %s", s.interval), job); err != nil {
		return fmt.Errorf("schedule history reconciliation: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job.Run()
	}()

	s.cron.Start()
	return nil
}

// Stop ждёт завершения запущенных задач или отмены ctx
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("Stopping background scheduler")

	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Background scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Background scheduler stop timed out")
	}
}

func (s *Scheduler) reconcileHistories(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if _, err := s.reconciler.ReconcileOnce(ctx); err != nil {
		s.logger.Error("History reconciliation failed", zap.Error(err))
	}
}

// cronLogger пишет события cron в zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
