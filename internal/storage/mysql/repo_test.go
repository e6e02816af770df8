package mysql

import (
	"strings"
	"testing"

	"normalizer/internal/storage"
)

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	got, err := buildCreateSQL(storage.TableSpec{
		Name:       "dim_product",
		Columns:    []storage.ColumnSpec{{Name: "product_id", Type: "INT"}},
		PrimaryKey: []string{"product_id"},
	})
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS `dim_product` (`product_id` INT, PRIMARY KEY (`product_id`));"
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildInsertSQL("dim_product", []string{"product_id", "name"}, [][]any{{1, "a"}, {2, "b"}}, []string{"product_id"})
	if !strings.HasPrefix(q, "INSERT INTO `dim_product` (`product_id`, `name`) VALUES (?, ?), (?, ?)") {
		t.Fatalf("unexpected insert: %s", q)
	}
	if !strings.HasSuffix(q, "ON DUPLICATE KEY UPDATE `product_id` = `product_id`;") {
		t.Fatalf("missing duplicate-key clause: %s", q)
	}
	if len(args) != 4 {
		t.Fatalf("args = %v", args)
	}
}
