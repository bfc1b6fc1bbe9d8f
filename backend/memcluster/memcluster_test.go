package memcluster

import (
	"context"
	"testing"
	"time"

	"github.com/IvanBrykalov/pgcache/backend"
	"github.com/IvanBrykalov/pgcache/policy/hostrole"
)

type row struct {
	ID        int
	UpdatedAt time.Time
}

func TestRegistryResolveUnknown(t *testing.T) {
	reg := NewRegistry[row]()
	if _, err := reg.Resolve("missing"); err == nil {
		t.Error("Resolve() should fail for an unregistered component")
	}
}

func TestShardCountAndExecute(t *testing.T) {
	reg := NewRegistry[row]()
	shardSet := reg.Register("widgets",
		NewTable([]row{{ID: 1}, {ID: 2}}, nil),
		NewTable([]row{{ID: 3}}, nil),
	)

	n, err := shardSet.ShardCount(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("ShardCount() = %d, %v, want 2, nil", n, err)
	}

	rows, err := shardSet.Shard(0).Execute(context.Background(), hostrole.Any, backend.CommandControl{}, "select")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("len(rows) = %d, want 2", len(rows))
	}
}

func TestExecuteWithWatermark(t *testing.T) {
	reg := NewRegistry[row]()
	rows := []row{
		{ID: 1, UpdatedAt: time.Unix(1, 0)},
		{ID: 2, UpdatedAt: time.Unix(100, 0)},
	}
	shardSet := reg.Register("widgets", NewTable(rows, func(r row) time.Time { return r.UpdatedAt }))

	got, err := shardSet.Shard(0).Execute(context.Background(), hostrole.Any, backend.CommandControl{}, "select", time.Unix(50, 0))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("Execute() with watermark = %+v, want only row 2", got)
	}
}

func TestTransactionPortalPaging(t *testing.T) {
	reg := NewRegistry[row]()
	rows := make([]row, 10)
	for i := range rows {
		rows[i] = row{ID: i}
	}
	shardSet := reg.Register("widgets", NewTable(rows, nil))

	tx, err := shardSet.Shard(0).Begin(context.Background(), hostrole.Any, true, backend.CommandControl{})
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	portal, err := tx.MakePortal(context.Background(), "select")
	if err != nil {
		t.Fatalf("MakePortal() error = %v", err)
	}

	var total []row
	for {
		batch, err := portal.Fetch(context.Background(), 3)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(batch) == 0 {
			break
		}
		total = append(total, batch...)
	}
	if len(total) != 10 {
		t.Errorf("total fetched = %d, want 10", len(total))
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Errorf("Commit() error = %v", err)
	}
}

func TestClusterErrInjection(t *testing.T) {
	reg := NewRegistry[row]()
	table := NewTable([]row{{ID: 1}}, nil)
	table.Err = context.DeadlineExceeded
	shardSet := reg.Register("widgets", table)

	if _, err := shardSet.Shard(0).Execute(context.Background(), hostrole.Any, backend.CommandControl{}, "select"); err == nil {
		t.Error("Execute() should surface the injected error")
	}
	if _, err := shardSet.Shard(0).Begin(context.Background(), hostrole.Any, true, backend.CommandControl{}); err == nil {
		t.Error("Begin() should surface the injected error")
	}
}
