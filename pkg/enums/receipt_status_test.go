package enums

import "testing"

func TestReceiptStatusTransitionsOnlyMoveForward(t *testing.T) {
	allowed := map[[2]ReceiptStatus]bool{
		{ReceiptStatusPending, ReceiptStatusUploaded}:    true,
		{ReceiptStatusPending, ReceiptStatusFailed}:      true,
		{ReceiptStatusUploaded, ReceiptStatusProcessing}: true,
		{ReceiptStatusUploaded, ReceiptStatusReady}:      true,
		{ReceiptStatusUploaded, ReceiptStatusFailed}:     true,
		{ReceiptStatusProcessing, ReceiptStatusReady}:    true,
		{ReceiptStatusProcessing, ReceiptStatusFailed}:   true,
	}

	for _, from := range validReceiptStatuses {
		for _, to := range validReceiptStatuses {
			got := from.CanTransition(to)
			want := allowed[[2]ReceiptStatus{from, to}]
			if got != want {
				t.Fatalf("transition %s -> %s: got %v want %v", from, to, got, want)
			}
		}
	}
}

func TestReceiptStatusTerminalStatesAdmitNothing(t *testing.T) {
	for _, terminal := range []ReceiptStatus{ReceiptStatusReady, ReceiptStatusFailed} {
		if !terminal.IsTerminal() {
			t.Fatalf("expected %s to be terminal", terminal)
		}
		for _, to := range validReceiptStatuses {
			if terminal.CanTransition(to) {
				t.Fatalf("terminal state %s must not transition to %s", terminal, to)
			}
		}
	}
}

func TestParseReceiptStatus(t *testing.T) {
	parsed, err := ParseReceiptStatus("processing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != ReceiptStatusProcessing {
		t.Fatalf("unexpected status %s", parsed)
	}

	if _, err := ParseReceiptStatus("archived"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestReceiptStatusIsValid(t *testing.T) {
	if !ReceiptStatusPending.IsValid() {
		t.Fatal("pending should be valid")
	}
	if ReceiptStatus("bogus").IsValid() {
		t.Fatal("bogus should be invalid")
	}
}
