package postgres

import (
	"fmt"
	"time"
)

// CreateTableSQL returns DDL for the partitioned articles table. The primary
// key includes pub_date because the partition key must be part of it.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id bigint GENERATED ALWAYS AS IDENTITY,
    title text NOT NULL,
    link text NOT NULL,
    section text NOT NULL,
    keyword text NOT NULL,
    pub_date date NOT NULL,
    pub_time time NOT NULL,
    created_at timestamptz NOT NULL DEFAULT now(),
    PRIMARY KEY (id, pub_date)
) PARTITION BY RANGE (pub_date)`, table)
}

// CreatePartitionSQL returns DDL for the single-day partition covering day.
func CreatePartitionSQL(table string, day time.Time) string {
	from := day.Format("2006-01-02")
	to := day.AddDate(0, 0, 1).Format("2006-01-02")
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_p%s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
		table, day.Format("20060102"), table, from, to)
}

// CreateDefaultPartitionSQL returns DDL for the catch-all partition that
// receives rows outside any daily range.
func CreateDefaultPartitionSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_overflow PARTITION OF %s DEFAULT`, table, table)
}
