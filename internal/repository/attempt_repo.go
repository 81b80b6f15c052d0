package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

type AttemptRepo struct {
	pool *pgxpool.Pool
}

func NewAttemptRepo(pool *pgxpool.Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

func (r *AttemptRepo) InsertAttempt(ctx context.Context, a model.Attempt) error {
	if a.RunID == "" {
		return errors.New("run_id 不能为空")
	}

	var meta []byte
	if len(a.Metadata) > 0 {
		meta, _ = json.Marshal(a.Metadata)
	}

	_, err := r.pool.Exec(ctx, `
insert into batch_attempt(run_id, seq, crew, payload, attempt, status, elapsed_sec, result_preview, metadata, recorded_at)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, a.RunID, a.Seq, a.Crew.String(), a.Payload, a.AttemptNumber, string(a.Status), a.ElapsedSec, a.ResultPreview, meta, parseTimestamp(a.Timestamp))
	return err
}

func (r *AttemptRepo) ListAttempts(ctx context.Context, f ListAttemptsFilter) ([]model.Attempt, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, `
select run_id, seq, crew, payload, attempt, status, elapsed_sec, coalesce(result_preview,''), metadata, recorded_at
from batch_attempt
where ($1='' or run_id=$1)
  and ($2='' or crew=$2)
  and ($3='' or status=$3)
order by recorded_at desc, id desc
limit $4 offset $5
`, f.RunID, f.Crew, f.Status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AttemptRepo) CountAttempts(ctx context.Context, f ListAttemptsFilter) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
select count(*)
from batch_attempt
where ($1='' or run_id=$1)
  and ($2='' or crew=$2)
  and ($3='' or status=$3)
`, f.RunID, f.Crew, f.Status).Scan(&count)
	return count, err
}

// GetRunStats 聚合单个批次运行的统计信息
func (r *AttemptRepo) GetRunStats(ctx context.Context, runID string) (*RunStats, error) {
	stats := &RunStats{
		RunID:        runID,
		CrewAttempts: make(map[string]int),
	}

	rows, err := r.pool.Query(ctx, `
select status, count(*) as cnt
from batch_attempt
where run_id = $1
group by status
`, runID)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}

		stats.TotalAttempts += count

		switch status {
		case "success":
			stats.SuccessTasks = count
		case "failed":
			stats.FailedTasks = count
		case "retry":
			stats.Retries = count
		}
	}
	rows.Close()

	err = r.pool.QueryRow(ctx, `
select coalesce(avg(elapsed_sec), 0)
from batch_attempt
where run_id = $1
`, runID).Scan(&stats.AvgElapsedSec)
	if err != nil {
		stats.AvgElapsedSec = 0
	}

	crewRows, err := r.pool.Query(ctx, `
select crew, count(*) as cnt
from batch_attempt
where run_id = $1
group by crew
`, runID)
	if err == nil {
		for crewRows.Next() {
			var crew string
			var count int
			if err := crewRows.Scan(&crew, &count); err == nil {
				stats.CrewAttempts[crew] = count
			}
		}
		crewRows.Close()
	}

	return stats, nil
}

// ListRuns 列出最近的批次运行 ID（按最新记录时间倒序）
func (r *AttemptRepo) ListRuns(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
select run_id
from batch_attempt
group by run_id
order by max(recorded_at) desc
limit $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// rowScanner pgx rows 与 row 的公共读取面
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (model.Attempt, error) {
	var (
		a          model.Attempt
		crew       string
		status     string
		meta       []byte
		recordedAt time.Time
	)
	if err := row.Scan(&a.RunID, &a.Seq, &crew, &a.Payload, &a.AttemptNumber, &status, &a.ElapsedSec, &a.ResultPreview, &meta, &recordedAt); err != nil {
		return model.Attempt{}, err
	}
	a.Crew = model.TaskKind(crew)
	a.Status = model.TaskStatus(status)
	a.Timestamp = recordedAt.Format(time.RFC3339)
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &a.Metadata)
	}
	return a, nil
}
