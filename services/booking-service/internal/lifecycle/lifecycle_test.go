package lifecycle

import (
	"errors"
	"testing"

	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
)

var all = []model.Status{
	model.StatusPending,
	model.StatusConfirmed,
	model.StatusInProgress,
	model.StatusCheckedIn,
	model.StatusCompleted,
	model.StatusCancelled,
	model.StatusNoShow,
}

func TestFromPendingOnlyConfirmOrCancel(t *testing.T) {
	for _, to := range all {
		err := Check(model.StatusPending, to)
		legal := to == model.StatusConfirmed || to == model.StatusCancelled
		if legal && err != nil {
			t.Fatalf("PENDING -> %s should be legal: %v", to, err)
		}
		if !legal && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("PENDING -> %s should be rejected, got %v", to, err)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []model.Status{model.StatusCompleted, model.StatusCancelled, model.StatusNoShow} {
		if !Terminal(from) {
			t.Fatalf("%s should be terminal", from)
		}
		for _, to := range all {
			if err := Check(from, to); err == nil {
				t.Fatalf("%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestSameStateIsRejected(t *testing.T) {
	for _, s := range all {
		if err := Check(s, s); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s -> %s should be rejected", s, s)
		}
	}
}

func TestConfirmedEdges(t *testing.T) {
	for _, to := range []model.Status{model.StatusCompleted, model.StatusInProgress, model.StatusCheckedIn, model.StatusCancelled, model.StatusNoShow} {
		if err := Check(model.StatusConfirmed, to); err != nil {
			t.Fatalf("CONFIRMED -> %s should be legal: %v", to, err)
		}
	}
	if err := Check(model.StatusConfirmed, model.StatusPending); err == nil {
		t.Fatal("CONFIRMED -> PENDING should be rejected")
	}
}

func TestUnknownTarget(t *testing.T) {
	if err := Check(model.StatusPending, "ARCHIVED"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestEffectOf(t *testing.T) {
	if EffectOf(model.StatusConfirmed) != EffectConfirmed || EffectOf(model.StatusCancelled) != EffectCancelled {
		t.Fatal("unexpected effects")
	}
	if EffectOf(model.StatusCompleted) != EffectNone {
		t.Fatal("completion has no notification")
	}
}
