package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
)

// Backfills quizzes.start_time_utc from the legacy time_configuration JSONB
// for rows created before the column existed. Safe to re-run: rows with a
// populated column are skipped.

type legacyRow struct {
	ID                string                    `db:"id"`
	TimeConfiguration *models.TimeConfiguration `db:"time_configuration"`
}

func main() {
	var (
		dsn    string
		dryRun bool
		limit  int
	)
	flag.StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flag.BoolVar(&dryRun, "dry-run", true, "Report without writing")
	flag.IntVar(&limit, "limit", 0, "Max rows to backfill, 0 for all")
	flag.Parse()

	if dsn == "" {
		log.Fatal("missing -dsn or DATABASE_URL")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	query := `SELECT id, time_configuration FROM quizzes
		WHERE start_time_utc IS NULL AND time_configuration IS NOT NULL`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []legacyRow
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		log.Fatalf("select: %v", err)
	}

	var backfilled, skipped int
	for _, row := range rows {
		if row.TimeConfiguration == nil || row.TimeConfiguration.StartTime == nil {
			skipped++
			continue
		}
		if dryRun {
			fmt.Printf("would backfill %s -> %s\n", row.ID, row.TimeConfiguration.StartTime.UTC().Format(time.RFC3339))
			backfilled++
			continue
		}
		res, err := db.ExecContext(ctx,
			`UPDATE quizzes SET start_time_utc = $1, updated_at = NOW()
			 WHERE id = $2 AND start_time_utc IS NULL`,
			row.TimeConfiguration.StartTime.UTC(), row.ID)
		if err != nil {
			log.Fatalf("update %s: %v", row.ID, err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			backfilled++
		}
	}

	mode := "backfilled"
	if dryRun {
		mode = "would backfill"
	}
	fmt.Printf("%s %d quizzes, skipped %d without a start time\n", mode, backfilled, skipped)
}
