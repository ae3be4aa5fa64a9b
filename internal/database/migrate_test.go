package database

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestClassifyAppliedCheck(t *testing.T) {
	if applied, err := classifyAppliedCheck(nil); err != nil || !applied {
		t.Errorf("hit: applied=%v err=%v, want applied with no error", applied, err)
	}

	if applied, err := classifyAppliedCheck(pgx.ErrNoRows); err != nil || applied {
		t.Errorf("no rows: applied=%v err=%v, want not applied with no error", applied, err)
	}

	wrapped := fmt.Errorf("scan: %w", pgx.ErrNoRows)
	if applied, err := classifyAppliedCheck(wrapped); err != nil || applied {
		t.Errorf("wrapped no rows: applied=%v err=%v, want not applied with no error", applied, err)
	}

	// A real query failure must surface instead of re-running the file.
	boom := errors.New("connection reset")
	if _, err := classifyAppliedCheck(boom); !errors.Is(err, boom) {
		t.Errorf("query failure: err=%v, want the original error", err)
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "two statements",
			sql:  "CREATE TABLE a (id INT);\nCREATE TABLE b (id INT);",
			want: []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"},
		},
		{
			name: "semicolon inside single quotes",
			sql:  "INSERT INTO t VALUES ('a;b');",
			want: []string{"INSERT INTO t VALUES ('a;b')"},
		},
		{
			name: "escaped single quote",
			sql:  "INSERT INTO t VALUES ('it''s;fine'); SELECT 1;",
			want: []string{"INSERT INTO t VALUES ('it''s;fine')", "SELECT 1"},
		},
		{
			name: "semicolon inside line comment",
			sql:  "SELECT 1 -- trailing; comment\n;SELECT 2;",
			want: []string{"SELECT 1 -- trailing; comment", "SELECT 2"},
		},
		{
			name: "semicolon inside block comment",
			sql:  "SELECT /* a;b */ 1;",
			want: []string{"SELECT /* a;b */ 1"},
		},
		{
			name: "quoted identifier",
			sql:  `CREATE TABLE "weird;name" (id INT);`,
			want: []string{`CREATE TABLE "weird;name" (id INT)`},
		},
		{
			name: "trailing statement without semicolon",
			sql:  "SELECT 1; SELECT 2",
			want: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name: "empty input",
			sql:  "  \n  ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitStatements(tt.sql)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitStatements() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
