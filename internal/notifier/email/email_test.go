package email

import (
	"strings"
	"testing"

	"github.com/chiufan/tidescan/internal/core"
	"github.com/chiufan/tidescan/internal/notifier"
)

func TestEmail_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Email)(nil)
}

func TestEmail_Name(t *testing.T) {
	e := New("smtp.example.com", 587, "", "", "from@example.com", []string{"to@example.com"})
	if e.Name() != "email" {
		t.Errorf("expected 'email', got %s", e.Name())
	}
}

func TestEmail_Init_RequiredFields(t *testing.T) {
	e := &Email{}
	err := e.Init(notifier.Config{Params: map[string]any{}})
	if err == nil {
		t.Error("expected error for missing required fields")
	}
}

func TestEmail_Init_WithConfig(t *testing.T) {
	e := &Email{}
	err := e.Init(notifier.Config{
		Params: map[string]any{
			"host": "smtp.example.com",
			"port": 587,
			"from": "tidescan@example.com",
			"to":   []string{"user@example.com"},
		},
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if e.host != "smtp.example.com" {
		t.Errorf("expected host smtp.example.com, got %s", e.host)
	}
}

func TestEmail_FormatEntryRow(t *testing.T) {
	entry := core.ListingEntry{
		ID:         "2330",
		Name:       "台積電",
		Venue:      core.VenueListed,
		Price:      612,
		ChangeRate: 1.25,
		Note:       "Pullback Setup | 量比0.80 / 年線580.25",
	}

	row := formatEntryRow(entry)

	if !strings.Contains(row, "2330") {
		t.Error("row should contain id")
	}
	if !strings.Contains(row, "台積電") {
		t.Error("row should contain name")
	}
	if !strings.Contains(row, "612.00") {
		t.Error("row should contain price")
	}
	if !strings.Contains(row, "量比0.80") {
		t.Error("row should carry the note through")
	}
}

func TestEmail_SendDigest_Empty(t *testing.T) {
	e := New("smtp.example.com", 587, "", "", "from@example.com", []string{"to@example.com"})

	err := e.SendDigest(core.TodayDocument{Date: "2025/08/22"})
	if err != nil {
		t.Errorf("empty digest should not error: %v", err)
	}
}
