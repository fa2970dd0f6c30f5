package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tinoosan/feeledger/internal/config"
	"github.com/tinoosan/feeledger/internal/httpapi"
	"github.com/tinoosan/feeledger/internal/ledger"
	"github.com/tinoosan/feeledger/internal/lock"
	"github.com/tinoosan/feeledger/internal/roster"
	"github.com/tinoosan/feeledger/internal/service/chart"
	"github.com/tinoosan/feeledger/internal/service/fee"
	"github.com/tinoosan/feeledger/internal/service/report"
	"github.com/tinoosan/feeledger/internal/service/voucher"
	"github.com/tinoosan/feeledger/internal/storage/memory"
	pgstore "github.com/tinoosan/feeledger/internal/storage/postgres"
)

// store is everything the services need from a storage backend.
type store interface {
	chart.Repo
	chart.Writer
	voucher.Repo
	voucher.Writer
	fee.Repo
	fee.Writer
	report.Repo
	roster.StudentDirectory
	roster.FeeCategoryCatalog
	SeedStudent(ctx context.Context, st ledger.Student) error
	SeedFeeCategory(ctx context.Context, c ledger.FeeCategory) error
	Ping(ctx context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	ready := []httpapi.ReadyChecker{st}
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "err", err)
			os.Exit(1)
		}
		locker = lock.NewRedisLocker(rdb, "feeledger:lock:", cfg.Redis.LockTTL)
		ready = append(ready, redisPinger{rdb})
		logger.Info("fee lock backend: redis", "addr", cfg.Redis.Addr)
	}

	ch := chart.New(st, st)
	if err := ch.EnsureDefaultChart(ctx); err != nil {
		logger.Error("failed to ensure default chart", "err", err)
		os.Exit(1)
	}
	codes := chart.PostingCodes{
		Cash:      cfg.Posting.CashLedger,
		Bank:      cfg.Posting.BankLedger,
		FeeIncome: cfg.Posting.FeeIncomeLedger,
		ByMode:    cfg.Posting.ModeLedgers,
	}
	posting, missing, err := ch.ResolvePostingMap(ctx, codes)
	if err != nil {
		logger.Error("failed to resolve posting ledgers", "err", err)
		os.Exit(1)
	}
	if len(missing) > 0 {
		logger.Warn("posting ledgers missing; they are looked up again when a receipt needs them", "codes", missing)
	}

	if cfg.DevSeed {
		if err := seedRoster(ctx, st, logger); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	vouchers := voucher.New(st, st, logger)
	fees := fee.New(fee.Deps{
		Repo:       st,
		Writer:     st,
		Vouchers:   vouchers,
		Students:   st,
		Categories: st,
		Notifier:   roster.LogNotifier{Log: logger},
		Locker:     locker,
		Posting:    posting,
		ResolvePosting: func(ctx context.Context) (ledger.PostingMap, error) {
			pm, _, err := ch.ResolvePostingMap(ctx, codes)
			return pm, err
		},
		Logger: logger,
	})
	reports := report.New(st, cfg.Reports.CacheTTL)

	if cfg.Reconcile.Interval > 0 {
		go reconcileLoop(ctx, fees, cfg.Reconcile.Interval, logger)
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.New(httpapi.Deps{
			Chart:    ch,
			Vouchers: vouchers,
			Fees:     fees,
			Reports:  reports,
			Ready:    ready,
			Currency: cfg.Books.Currency,
			Logger:   logger,
		}).Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fee ledger service listening", "addr", srv.Addr, "currency", cfg.Books.Currency)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
}

// openStore picks Postgres when a database URL is configured, memory otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("storage backend: memory")
		return memory.New(), func() {}, nil
	}
	if cfg.Database.Migrate {
		if err := pgstore.Migrate(cfg.Database.URL, logger); err != nil {
			return nil, nil, err
		}
	}
	pg, err := pgstore.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("storage backend: postgres")
	return pg, pg.Close, nil
}

type redisPinger struct{ c *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }

// reconcileLoop repairs fees left behind by interrupted payments.
func reconcileLoop(ctx context.Context, fees fee.Service, every time.Duration, logger *slog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res, err := fees.ReconcileAll(ctx)
			if err != nil {
				logger.Error("reconcile run failed", "err", err)
				continue
			}
			if len(res) > 0 {
				logger.Info("reconcile run repaired fees", "count", len(res))
			}
		}
	}
}

// devID derives a stable id so reseeding Postgres upserts instead of duplicating.
func devID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("feeledger/dev/"+name))
}

// seedRoster loads a small class of students and two fee categories for local testing.
func seedRoster(ctx context.Context, st store, logger *slog.Logger) error {
	grade, class := devID("grade/5"), devID("class/5a")
	students := []ledger.Student{
		{ID: devID("student/asha"), Name: "Asha", ClassID: class, GradeID: grade},
		{ID: devID("student/bilal"), Name: "Bilal", ClassID: class, GradeID: grade},
		{ID: devID("student/chen"), Name: "Chen", ClassID: class, GradeID: grade},
	}
	categories := []ledger.FeeCategory{
		{ID: devID("category/tuition"), Name: "Tuition", BaseAmount: 1200000},
		{ID: devID("category/lab"), Name: "Science Lab", BaseAmount: 150000, GradeID: &grade},
	}
	for _, s := range students {
		if err := st.SeedStudent(ctx, s); err != nil {
			return err
		}
	}
	for _, c := range categories {
		if err := st.SeedFeeCategory(ctx, c); err != nil {
			return err
		}
	}
	ids := map[string]string{"grade_id": grade.String(), "class_id": class.String()}
	for _, s := range students {
		ids["student_"+s.Name] = s.ID.String()
	}
	for _, c := range categories {
		ids["category_"+c.Name] = c.ID.String()
	}
	logger.Info("DEV seed", "ids", ids)
	printDevSeedBanner(ids)
	return nil
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(ids map[string]string) {
	fmt.Println("==================== DEV SEED ====================")
	for _, k := range []string{"grade_id", "class_id"} {
		fmt.Printf("%s: %s\n", k, ids[k])
	}
	for k, v := range ids {
		if k != "grade_id" && k != "class_id" {
			fmt.Printf("%s: %s\n", k, v)
		}
	}
	fmt.Println("==================================================")
}
