package services

import (
	"testing"

	"adbroker/contexts/media-buying/mediabuy-service/domain/entities"
)

func TestCanTransitionMatrix(t *testing.T) {
	cases := []struct {
		from    entities.BuyStatus
		to      entities.BuyStatus
		allowed bool
	}{
		{entities.BuyStatusPendingCreative, entities.BuyStatusPendingApproval, true},
		{entities.BuyStatusPendingCreative, entities.BuyStatusFailed, true},
		{entities.BuyStatusPendingCreative, entities.BuyStatusActive, false},
		{entities.BuyStatusPendingApproval, entities.BuyStatusActive, true},
		{entities.BuyStatusPendingApproval, entities.BuyStatusPaused, false},
		{entities.BuyStatusActive, entities.BuyStatusPaused, true},
		{entities.BuyStatusActive, entities.BuyStatusCompleted, true},
		{entities.BuyStatusActive, entities.BuyStatusPendingApproval, false},
		{entities.BuyStatusPaused, entities.BuyStatusActive, true},
		{entities.BuyStatusPaused, entities.BuyStatusCompleted, true},
		{entities.BuyStatusCompleted, entities.BuyStatusActive, false},
		{entities.BuyStatusFailed, entities.BuyStatusPendingCreative, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestCreativesCompleteRequiresEveryPackageCovered(t *testing.T) {
	packages := []entities.Package{
		{PackageID: "pkg-1"},
		{PackageID: "pkg-2"},
	}
	partial := []entities.CreativeAsset{{PackageID: "pkg-1"}}
	if CreativesComplete(packages, partial) {
		t.Fatalf("expected incomplete with one package uncovered")
	}

	full := append(partial, entities.CreativeAsset{PackageID: "pkg-2"})
	if !CreativesComplete(packages, full) {
		t.Fatalf("expected complete with every package covered")
	}
}

func TestCreativesCompleteFalseWithoutPackages(t *testing.T) {
	if CreativesComplete(nil, nil) {
		t.Fatalf("a buy without packages can never be creative-complete")
	}
}

func TestSignalRefsSkipsUngatedPackages(t *testing.T) {
	refs := SignalRefs([]entities.Package{
		{PackageID: "pkg-1", SignalRef: "signal-a"},
		{PackageID: "pkg-2"},
		{PackageID: "pkg-3", SignalRef: "signal-b"},
	})
	if len(refs) != 2 || refs[0] != "signal-a" || refs[1] != "signal-b" {
		t.Fatalf("unexpected signal refs: %v", refs)
	}
}
