package snapshot

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coachpo/scribe/internal/gamemode"
)

func TestIdentifyIsDeterministic(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 789, time.UTC)
	first := Identify("Zelta", gamemode.Main, at)
	second := Identify("Zelta", gamemode.Main, at)
	if first != second {
		t.Fatalf("expected identical ids, got %s and %s", first, second)
	}
	parsed, err := uuid.Parse(first)
	if err != nil {
		t.Fatalf("id is not a uuid: %v", err)
	}
	if parsed.Version() != 5 {
		t.Fatalf("expected version 5 uuid, got %d", parsed.Version())
	}
}

func TestIdentifyFoldsAccountAndZone(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	local := at.In(time.FixedZone("UTC+2", 2*3600))
	if Identify("Iron_Zelta", gamemode.Ironman, local) != Identify(" iron zelta", gamemode.Ironman, at) {
		t.Fatal("expected spelling and zone to be folded")
	}
}

func TestIdentifySeparatesInputs(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	base := Identify("Zelta", gamemode.Main, at)
	variants := []string{
		Identify("Zelta2", gamemode.Main, at),
		Identify("Zelta", gamemode.Ironman, at),
		Identify("Zelta", gamemode.Main, at.Add(time.Nanosecond)),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collided with base id", i)
		}
	}
}
