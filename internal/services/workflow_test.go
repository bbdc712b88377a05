package services

import (
	"net/http"
	"strings"
	"testing"

	"campusevents-backend/internal/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{models.StatusPending, models.StatusApproved, true},
		{models.StatusPending, models.StatusRejected, true},
		{models.StatusPending, models.StatusPending, false},
		{models.StatusApproved, models.StatusRejected, false},
		{models.StatusRejected, models.StatusApproved, false},
		{models.StatusApproved, models.StatusApproved, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestValidateReason(t *testing.T) {
	reason, err := ValidateReason("  insufficient budget  ")
	if err != nil || reason != "insufficient budget" {
		t.Fatalf("ValidateReason = %q, %v", reason, err)
	}
	for _, bad := range []string{"", "   ", "no", " ab ", strings.Repeat("x", 256)} {
		if _, err := ValidateReason(bad); statusOf(err) != http.StatusBadRequest {
			t.Errorf("ValidateReason(%q) should fail, got %v", bad, err)
		}
	}
	if _, err := ValidateReason(strings.Repeat("é", 255)); err != nil {
		t.Errorf("255 runes should be accepted: %v", err)
	}
}

func TestAdmissionStatus(t *testing.T) {
	capacity := 2
	if AdmissionStatus(0, capacity) != models.BookingBooked {
		t.Error("first booking should be admitted")
	}
	if AdmissionStatus(1, capacity) != models.BookingBooked {
		t.Error("second booking should be admitted")
	}
	if AdmissionStatus(2, capacity) != models.BookingRejected {
		t.Error("third booking should be rejected at capacity")
	}
	if AdmissionStatus(5, capacity) != models.BookingRejected {
		t.Error("overfull event must reject")
	}
}

func TestRequestKindTables(t *testing.T) {
	if KindClub.table() != "club_requests" || KindVenue.table() != "venue_requests" || KindEvent.table() != "event_requests" {
		t.Fatal("unexpected table mapping")
	}
	if KindVenue.label() != "Venue" {
		t.Errorf("label = %q", KindVenue.label())
	}
}

func TestNormalizeEmail(t *testing.T) {
	if NormalizeEmail("  Ada@Campus.EDU ") != "ada@campus.edu" {
		t.Fatal("email should be trimmed and lowercased")
	}
}
