package http

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// userRecord is one row of a roster upload. Password is plaintext and
// optional for users that already exist; it is hashed before storage.
type userRecord struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"`
}

type upsertOutcome struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// rosterError marks a bad row in the upload, as opposed to a storage failure.
type rosterError struct{ msg string }

func (e *rosterError) Error() string { return e.msg }

// BulkUpsertUsersHandler ingests a learner roster: a JSON array in the body,
// or a multipart file= upload holding CSV or JSON. New users must carry a
// password; existing users keep their hash unless the row supplies one.
// POST /users/bulk
func BulkUpsertUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := decodeRoster(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(records) == 0 {
			writeJSON(w, http.StatusOK, upsertOutcome{})
			return
		}
		out, err := upsertUsers(r.Context(), db, records)
		if err != nil {
			var re *rosterError
			if errors.As(err, &re) {
				http.Error(w, re.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ListUsersHandler lists accounts, optionally filtered by role.
// GET /users?role=
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := `SELECT id, username, full_name, role FROM users`
		args := []any{}
		if role := r.URL.Query().Get("role"); role != "" {
			q += ` WHERE role=$1`
			args = append(args, role)
		}
		q += ` ORDER BY username`

		rows, err := db.QueryContext(r.Context(), q, args...)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []userRecord{}
		for rows.Next() {
			var u userRecord
			if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Role); err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// decodeRoster accepts either a raw JSON array or a multipart file whose
// first byte decides CSV vs JSON.
func decodeRoster(r *http.Request) ([]userRecord, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var records []userRecord
		if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
			return nil, errors.New("expected JSON array or multipart file")
		}
		return records, nil
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("file required")
	}
	defer f.Close()
	first := make([]byte, 1)
	if _, err := f.Read(first); err != nil {
		return nil, errors.New("empty file")
	}
	if s, ok := f.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}
	if first[0] == '[' || first[0] == '{' {
		var records []userRecord
		if err := json.NewDecoder(f).Decode(&records); err != nil {
			return nil, errors.New("bad json")
		}
		return records, nil
	}
	records, err := parseRosterCSV(f)
	if err != nil {
		return nil, fmt.Errorf("bad csv: %w", err)
	}
	return records, nil
}

// parseRosterCSV reads a header row naming at least id/username/role;
// full_name and password columns are optional.
func parseRosterCSV(r io.Reader) ([]userRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	col := map[string]int{}
	for i, h := range hdr {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"id", "username", "role"} {
		if _, ok := col[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	var records []userRecord
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := userRecord{
			ID:       rec[col["id"]],
			Username: rec[col["username"]],
			Role:     strings.ToLower(rec[col["role"]]),
		}
		if i, ok := col["full_name"]; ok {
			row.FullName = rec[i]
		}
		if i, ok := col["password"]; ok {
			row.Password = rec[i]
		}
		records = append(records, row)
	}
	return records, nil
}

func upsertUsers(ctx context.Context, db *sql.DB, records []userRecord) (out upsertOutcome, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return out, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	for _, rec := range records {
		if rec.Role == "" {
			rec.Role = "student"
		}
		if rec.Role != "student" && rec.Role != "teacher" && rec.Role != "admin" {
			return out, &rosterError{msg: "invalid role: " + rec.Role}
		}
		if rec.ID == "" || rec.Username == "" {
			return out, &rosterError{msg: "id and username required"}
		}
		var hash string
		if rec.Password != "" {
			b, hErr := bcrypt.GenerateFromPassword([]byte(rec.Password), bcryptCost)
			if hErr != nil {
				return out, hErr
			}
			hash = string(b)
		}

		var one int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM users WHERE id=$1 OR username=$2`, rec.ID, rec.Username).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if hash == "" {
				return out, &rosterError{msg: "password required for new user: " + rec.Username}
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, username, full_name, password_hash, role, created_at)
				 VALUES ($1,$2,$3,$4,$5,$6)`,
				rec.ID, rec.Username, rec.FullName, hash, rec.Role, now)
			if err != nil {
				return out, err
			}
			out.Inserted++
		case err != nil:
			return out, err
		default:
			if hash != "" {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username=$1, full_name=$2, role=$3, password_hash=$4 WHERE id=$5`,
					rec.Username, rec.FullName, rec.Role, hash, rec.ID)
			} else {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username=$1, full_name=$2, role=$3 WHERE id=$4`,
					rec.Username, rec.FullName, rec.Role, rec.ID)
			}
			if err != nil {
				return out, err
			}
			out.Updated++
		}
	}
	return out, nil
}
