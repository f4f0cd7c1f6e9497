package eventlog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"metagate/core/events"
)

func broadcast(msg string) events.Broadcast {
	return events.Broadcast{
		Message:   msg,
		Signer:    common.HexToAddress("0x01"),
		Target:    common.HexToAddress("0x02"),
		Policy:    "bitmap",
		Partition: uint256.NewInt(0),
		Value:     uint256.NewInt(1),
	}
}

func TestArchiveRecentNewestFirst(t *testing.T) {
	archive, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer archive.Close()

	for i := 0; i < 3; i++ {
		archive.Emit(broadcast(fmt.Sprintf("msg-%d", i)))
	}

	records, err := archive.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if got := records[0].Attributes["message"]; got != "msg-2" {
		t.Fatalf("expected newest first, got %q", got)
	}
	if records[0].Type != events.TypeBroadcast {
		t.Fatalf("unexpected type %q", records[0].Type)
	}
	if records[1].Attributes["policy"] != "bitmap" {
		t.Fatalf("missing policy attribute: %+v", records[1].Attributes)
	}

	count, err := archive.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 archived events, got %d", count)
	}
}

func TestArchivePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	archive, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := archive.Append(context.Background(), broadcast("durable")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	records, err := reopened.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 || records[0].Attributes["message"] != "durable" {
		t.Fatalf("unexpected records: %+v", records)
	}
}
