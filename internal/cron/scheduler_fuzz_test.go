package cron_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/flemzord/policychat/internal/cron"
	"github.com/flemzord/policychat/internal/cron/crontest"
)

func FuzzRegisterJob(f *testing.F) {
	f.Add("*/10 * * * *")
	f.Add("* * * * *")
	f.Add("0 3 * * 1")
	f.Add("@every 30s")
	f.Add("every minute")
	f.Add("")
	f.Add("60 * * * *")
	f.Add("0 0 0 0 0 0")

	f.Fuzz(func(t *testing.T, expr string) {
		s := cron.NewScheduler(slog.New(slog.DiscardHandler))
		if err := s.RegisterJob(&crontest.MockJob{NameVal: "orphan_sweep", ScheduleVal: expr}); err != nil {
			return
		}
		// A schedule accepted at registration must never fail start-up.
		if err := s.Start(); err != nil {
			t.Fatalf("Start with accepted schedule %q: %v", expr, err)
		}
		_ = s.Stop(context.Background())
	})
}
