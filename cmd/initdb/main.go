// Command initdb prints the DDL needed to bootstrap the articles table:
// the partitioned parent, daily partitions for today and tomorrow (KST),
// and the overflow partition.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/jmpark/stocknews-collector/internal/news"
	"github.com/jmpark/stocknews-collector/internal/storage/postgres"
)

func main() {
	table := flag.String("table", "news", "articles table name")
	days := flag.Int("days", 2, "number of daily partitions starting today")
	flag.Parse()

	fmt.Println(postgres.CreateTableSQL(*table) + ";")

	now := time.Now().In(news.KST)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, news.KST)
	for i := 0; i < *days; i++ {
		fmt.Println(postgres.CreatePartitionSQL(*table, day.AddDate(0, 0, i)) + ";")
	}

	fmt.Println(postgres.CreateDefaultPartitionSQL(*table) + ";")
}
