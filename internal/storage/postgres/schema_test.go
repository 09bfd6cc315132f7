package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmpark/stocknews-collector/internal/news"
)

func TestCreateTableSQLPartitionsByDate(t *testing.T) {
	t.Parallel()

	ddl := CreateTableSQL("news")
	require.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS news")
	require.Contains(t, ddl, "PRIMARY KEY (id, pub_date)")
	require.Contains(t, ddl, "PARTITION BY RANGE (pub_date)")
}

func TestCreatePartitionSQLCoversOneDay(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, news.KST)
	ddl := CreatePartitionSQL("news", day)
	require.Contains(t, ddl, "news_p20240101")
	require.Contains(t, ddl, "FROM ('2024-01-01') TO ('2024-01-02')")
}

func TestCreateDefaultPartitionSQL(t *testing.T) {
	t.Parallel()

	ddl := CreateDefaultPartitionSQL("news")
	require.Contains(t, ddl, "news_overflow")
	require.Contains(t, ddl, "DEFAULT")
}
