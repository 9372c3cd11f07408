// Dev entrypoint: in-memory repos, seeded household, no persistence.
// The real deployment entrypoint is cmd/server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"choreboard/internal/chore"
	"choreboard/internal/engine"
	"choreboard/internal/history"
	"choreboard/internal/instance"
	"choreboard/internal/kid"
	"choreboard/internal/notify"
	"choreboard/internal/points"
	"choreboard/internal/schedule"
	"choreboard/internal/server"
)

const addr = ":8080"

func main() {
	ctx := context.Background()

	hist := history.NewMemoryRepo()
	eng, err := seedHousehold(ctx, hist)
	if err != nil {
		log.Fatal(err)
	}

	handler := server.NewHandler(&server.App{Engine: eng, History: hist}, log.Default())

	go func() {
		runner := &engine.Runner{Engine: eng}
		if err := runner.Run(ctx); err != nil {
			log.Printf("runner stopped: %v", err)
		}
	}()

	fmt.Printf("choreboard dev server listening on %s\n", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}

func seedHousehold(ctx context.Context, hist history.Repo) (*engine.Engine, error) {
	eng := engine.New(
		chore.NewMemoryRepo(),
		kid.NewMemoryRepo(),
		instance.NewMemoryRepo(),
		points.NewEvaluator(points.NewMemoryRepo()),
		notify.MultiDispatcher{notify.LogDispatcher{}, history.Dispatcher{Repo: hist}},
		engine.RealClock{},
		log.Default(),
		engine.Options{},
	)

	var kidIDs []string
	for _, name := range []string{"Ada", "Ben"} {
		k, err := eng.Kids.Create(ctx, kid.Kid{Name: name})
		if err != nil {
			return nil, err
		}
		kidIDs = append(kidIDs, k.ID)
	}

	seedChores := []chore.Chore{
		{
			Name:         "make bed",
			Points:       2,
			KidIDs:       kidIDs,
			Recurrence:   schedule.Config{Frequency: schedule.FreqDaily},
			ResetType:    chore.ResetMidnightSingle,
			Overdue:      chore.OverdueClearAtReset,
			PendingClaim: chore.ClaimHold,
			Criteria:     chore.CriteriaIndependent,
		},
		{
			Name:         "feed the cat",
			Points:       3,
			KidIDs:       kidIDs,
			Recurrence:   schedule.Config{Frequency: schedule.FreqDailyMulti, Slots: []schedule.Slot{{Hour: 7}, {Hour: 18}}},
			ResetType:    chore.ResetDueDateMulti,
			Overdue:      chore.OverdueHold,
			PendingClaim: chore.ClaimAutoApprove,
			Criteria:     chore.CriteriaSharedFirst,
		},
		{
			Name:         "take out trash",
			Points:       5,
			KidIDs:       kidIDs[:1],
			Recurrence:   schedule.Config{Frequency: schedule.FreqWeekly},
			ResetType:    chore.ResetDueDateSingle,
			Overdue:      chore.OverdueClearOnLate,
			PendingClaim: chore.ClaimClear,
			Criteria:     chore.CriteriaIndependent,
		},
		{
			Name:         "clean playroom",
			Points:       8,
			KidIDs:       kidIDs,
			Recurrence:   schedule.Config{Frequency: schedule.FreqWeekEnd},
			ResetType:    chore.ResetDueDateSingle,
			Overdue:      chore.OverdueHold,
			PendingClaim: chore.ClaimHold,
			Criteria:     chore.CriteriaSharedAll,
		},
	}

	for _, c := range seedChores {
		created, err := eng.Chores.Create(ctx, c)
		if err != nil {
			return nil, err
		}
		if _, err := eng.AssignChore(ctx, created); err != nil {
			return nil, err
		}
	}

	return eng, nil
}
