package services

import "adbroker/contexts/media-buying/mediabuy-service/domain/entities"

var allowedTransitions = map[entities.BuyStatus][]entities.BuyStatus{
	entities.BuyStatusPendingCreative: {entities.BuyStatusPendingApproval, entities.BuyStatusFailed},
	entities.BuyStatusPendingApproval: {entities.BuyStatusActive, entities.BuyStatusFailed},
	entities.BuyStatusActive:          {entities.BuyStatusPaused, entities.BuyStatusCompleted, entities.BuyStatusFailed},
	entities.BuyStatusPaused:          {entities.BuyStatusActive, entities.BuyStatusCompleted, entities.BuyStatusFailed},
}

// CanTransition reports whether from → to is a legal status edge. Terminal
// states have no outgoing edges.
func CanTransition(from, to entities.BuyStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CreativesComplete reports whether every package of the buy holds at least
// one creative asset. Completeness is what moves the buy out of
// pending_creative.
func CreativesComplete(packages []entities.Package, assets []entities.CreativeAsset) bool {
	if len(packages) == 0 {
		return false
	}
	covered := make(map[string]bool, len(assets))
	for _, asset := range assets {
		covered[asset.PackageID] = true
	}
	for _, pkg := range packages {
		if !covered[pkg.PackageID] {
			return false
		}
	}
	return true
}

// SignalRefs lists the distinct signal refs the buy's packages gate on.
func SignalRefs(packages []entities.Package) []string {
	refs := make([]string, 0, len(packages))
	for _, pkg := range packages {
		if pkg.SignalRef != "" {
			refs = append(refs, pkg.SignalRef)
		}
	}
	return refs
}
