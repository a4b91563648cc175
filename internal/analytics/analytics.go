package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// ModelStats holds aggregate scan outcomes for one model.
type ModelStats struct {
	Model       string  `json:"model"`
	Runs        int     `json:"runs"`
	Completed   int     `json:"completed"`
	Canceled    int     `json:"canceled"`
	Failed      int     `json:"failed"`
	AvgPassRate float64 `json:"avg_pass_rate_pct"`
	AvgMinutes  float64 `json:"avg_minutes"`
	P95Minutes  float64 `json:"p95_minutes"`
}

// QueryModelStats returns per-model run counts, mean pass rate over
// completed runs, and duration percentiles. since is an optional
// inclusive lower bound on started_at ("" for all time).
func QueryModelStats(database DB, since string) ([]ModelStats, error) {
	query := `
		SELECT model_name, success, canceled, duration_ms, pass_rate
		FROM scan_runs
		WHERE finished_at IS NOT NULL`

	args := []interface{}{}
	if since != "" {
		query += ` AND started_at >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query model stats: %w", err)
	}
	defer rows.Close()

	type acc struct {
		runs, completed, canceled, failed int
		passRates                         []float64
		minutes                           []float64
	}
	byModel := make(map[string]*acc)

	for rows.Next() {
		var model string
		var success, canceled sql.NullBool
		var durationMs sql.NullInt64
		var passRate sql.NullFloat64
		if err := rows.Scan(&model, &success, &canceled, &durationMs, &passRate); err != nil {
			return nil, fmt.Errorf("scan model stats: %w", err)
		}

		a, ok := byModel[model]
		if !ok {
			a = &acc{}
			byModel[model] = a
		}
		a.runs++
		switch {
		case success.Valid && success.Bool:
			a.completed++
		case canceled.Valid && canceled.Bool:
			a.canceled++
		default:
			a.failed++
		}
		if success.Valid && success.Bool && passRate.Valid {
			a.passRates = append(a.passRates, passRate.Float64*100)
		}
		if durationMs.Valid && durationMs.Int64 > 0 {
			a.minutes = append(a.minutes, float64(durationMs.Int64)/60000.0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []ModelStats
	for model, a := range byModel {
		sort.Float64s(a.minutes)
		results = append(results, ModelStats{
			Model:       model,
			Runs:        a.runs,
			Completed:   a.completed,
			Canceled:    a.canceled,
			Failed:      a.failed,
			AvgPassRate: avg(a.passRates),
			AvgMinutes:  avg(a.minutes),
			P95Minutes:  percentile(a.minutes, 95),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Model < results[j].Model
	})
	return results, nil
}

// ProbePassRate holds aggregate outcomes per probe set.
type ProbePassRate struct {
	Probes      string  `json:"probes"`
	Runs        int     `json:"runs"`
	AvgPassRate float64 `json:"avg_pass_rate_pct"`
	WorstRate   float64 `json:"worst_pass_rate_pct"`
}

// QueryProbePassRates returns mean and worst pass rates grouped by the
// probe set a run used. Low numbers flag probe families a model keeps
// failing.
func QueryProbePassRates(database DB, since string) ([]ProbePassRate, error) {
	query := `
		SELECT probes, COUNT(*), AVG(pass_rate), MIN(pass_rate)
		FROM scan_runs
		WHERE success = 1 AND pass_rate IS NOT NULL`

	args := []interface{}{}
	if since != "" {
		query += ` AND started_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY probes ORDER BY AVG(pass_rate) ASC`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query probe pass rates: %w", err)
	}
	defer rows.Close()

	var results []ProbePassRate
	for rows.Next() {
		var r ProbePassRate
		var avgRate, worst sql.NullFloat64
		if err := rows.Scan(&r.Probes, &r.Runs, &avgRate, &worst); err != nil {
			return nil, fmt.Errorf("scan probe pass rate: %w", err)
		}
		r.AvgPassRate = math.Round(avgRate.Float64*1000) / 10
		r.WorstRate = math.Round(worst.Float64*1000) / 10
		results = append(results, r)
	}
	return results, rows.Err()
}

// Throughput holds scan throughput for one week.
type Throughput struct {
	Period    string `json:"period"`
	Started   int    `json:"started"`
	Completed int    `json:"completed"`
	Canceled  int    `json:"canceled"`
	Failed    int    `json:"failed"`
}

// QueryThroughput returns scan counts grouped by week, newest first.
func QueryThroughput(database DB, since string) ([]Throughput, error) {
	query := `
		SELECT
			strftime('%Y-W%W', started_at) as period,
			COUNT(*) as started,
			SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END) as completed,
			SUM(CASE WHEN canceled = 1 THEN 1 ELSE 0 END) as canceled,
			SUM(CASE WHEN success = 0 AND canceled = 0 AND finished_at IS NOT NULL THEN 1 ELSE 0 END) as failed
		FROM scan_runs`

	args := []interface{}{}
	if since != "" {
		query += ` WHERE started_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY period ORDER BY period DESC LIMIT 10`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query throughput: %w", err)
	}
	defer rows.Close()

	var results []Throughput
	for rows.Next() {
		var t Throughput
		if err := rows.Scan(&t.Period, &t.Started, &t.Completed, &t.Canceled, &t.Failed); err != nil {
			return nil, fmt.Errorf("scan throughput: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}
