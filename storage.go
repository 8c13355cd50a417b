package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

type Storage struct {
	OrgName   string
	GroupName string
	ApiToken  string
	AuthToken string
}

func (s *Storage) CreateDatabase(name string) error {
	url := fmt.Sprintf("https://api.turso.tech/v1/organizations/%v/databases", s.OrgName)
	req, err := http.NewRequest("POST", url, bytes.NewReader([]byte(fmt.Sprintf(`{"name":"%v","group":"%v"}`, name, s.GroupName))))
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+s.ApiToken)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected status code %v: %v", resp.StatusCode, string(body))
	}
	Logger.Infof("created database %v", name)
	return nil
}

// DbUrl maps a results database name to a libsql url. Names starting with
// "file:" are local databases and are used as is.
func (s *Storage) DbUrl(name string) string {
	if strings.HasPrefix(name, "file:") {
		return name
	}
	return fmt.Sprintf("libsql://%v-%v.turso.io?authToken=%v", name, s.OrgName, s.AuthToken)
}

// Check reports missing credentials before any work is done. Creating a new
// database needs the platform api token on top of the auth token.
func (s *Storage) Check(results string) error {
	if strings.HasPrefix(results, "file:") {
		return nil
	}
	if s.OrgName == "" || s.AuthToken == "" {
		return fmt.Errorf("storing results requires TURSO_ORG_NAME and TURSO_AUTH_TOKEN")
	}
	if results == "" && s.ApiToken == "" {
		return fmt.Errorf("creating a results database requires TURSO_API_TOKEN (or pass --results-db)")
	}
	return nil
}

func (s *Storage) ConnectDb(name string) (*sql.DB, error) {
	return sql.Open("libsql", s.DbUrl(name))
}

func (s *Storage) InitResultsDb(db *sql.DB, meta map[string]any) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS parameters (name TEXT PRIMARY KEY, value)")
	if err != nil {
		return err
	}
	parameters := make([]any, 0)
	parameters = append(parameters, "time", time.Now().Format("2006-01-02 15:04:05"))
	for key, value := range meta {
		parameters = append(parameters, key, fmt.Sprintf("%v", value))
	}
	placeholders := strings.Join(slices.Repeat([]string{"(?, ?)"}, len(parameters)/2), ", ")
	_, err = db.Exec(
		fmt.Sprintf("INSERT INTO parameters VALUES %v ON CONFLICT DO NOTHING", placeholders),
		parameters...,
	)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS measurements (
		run TEXT,
		experiment TEXT,
		definition TEXT,
		phase TEXT,
		attempt INTEGER,
		measurement TEXT,
		value REAL,
		PRIMARY KEY (run, experiment, definition, phase, attempt, measurement)
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS outputs (
		run TEXT,
		experiment TEXT,
		definition TEXT,
		phase TEXT,
		attempt INTEGER,
		content BLOB,
		PRIMARY KEY (run, experiment, definition, phase, attempt)
	)`)
	if err != nil {
		return err
	}
	Logger.Infof("initialized database for benchmark results with meta %v", meta)
	return nil
}

func (s *Storage) Parameters(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query("SELECT name, value FROM parameters")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make(map[string]string, 0)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		results[name] = value
	}
	return results, rows.Err()
}

func (s *Storage) UpdateResultsDb(ctx context.Context, db *sql.DB, run string, results []PhaseResult) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, result := range results {
		measurements := []struct {
			name  string
			value float64
		}{
			{"elapsed", result.Elapsed.Seconds()},
			{"exit_code", float64(result.ExitCode)},
		}
		for _, m := range measurements {
			_, err = tx.Exec(
				"INSERT INTO measurements VALUES (?, ?, ?, ?, ?, ?, ?)",
				run,
				result.Experiment,
				result.Definition,
				result.Phase.String(),
				result.Attempt,
				m.name,
				m.value,
			)
			if err != nil {
				return err
			}
		}
		if result.Shared {
			continue
		}
		_, err = tx.Exec(
			"INSERT INTO outputs VALUES (?, ?, ?, ?, ?, ?)",
			run,
			result.Experiment,
			result.Definition,
			result.Phase.String(),
			result.Attempt,
			[]byte(strings.Join(result.Lines, "\n")),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
