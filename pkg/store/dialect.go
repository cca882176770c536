package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Drivers supported by the record store
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect struct {
	name          string
	timestampType string
	dateType      string
	// tempSchema qualifies the staging table so a permanent table of the
	// same name is never touched.
	tempSchema string
	// dropStage is false when the staging table disappears on commit by itself.
	dropStage       bool
	stageCreateTail string
	numbered        bool
}

var (
	sqliteDialect = dialect{
		name:          DriverSQLite,
		timestampType: "TEXT",
		dateType:      "TEXT",
		tempSchema:    "temp",
		dropStage:     true,
	}
	postgresDialect = dialect{
		name:            DriverPostgres,
		timestampType:   "TIMESTAMPTZ",
		dateType:        "DATE",
		tempSchema:      "pg_temp",
		stageCreateTail: " ON COMMIT DROP",
		numbered:        true,
	}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, "":
		return sqliteDialect, nil
	case DriverPostgres:
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

// rebind converts ? placeholders to $n for drivers that need numbered ones
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) columns(primaryKey bool) string {
	pk := ""
	if primaryKey {
		pk = " PRIMARY KEY"
	}
	return fmt.Sprintf(`(
	post_id       TEXT%s,
	author_id     TEXT NOT NULL,
	brand_name    TEXT NOT NULL,
	brand_id      TEXT NOT NULL,
	post_url      TEXT NOT NULL DEFAULT '',
	media_url     TEXT NOT NULL DEFAULT '',
	publish_date  %s NOT NULL,
	mentions      TEXT NOT NULL DEFAULT '',
	mention_count INTEGER NOT NULL DEFAULT 0`, pk, d.dateType)
}

func (d dialect) createTable(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s %s,
	first_seen_at %s NOT NULL,
	last_seen_at  %s NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT TRUE
)`, table, d.columns(true), d.timestampType, d.timestampType),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_brand_day_idx ON %s (brand_id, publish_date)`, table, table),
	}
}

func (d dialect) createStage(stage string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s %s\n)%s", stage, d.columns(true), d.stageCreateTail)
}
