package migrate

import (
	"strings"

	"github.com/stonegoods/catmig/internal/domain"
)

type sourceRule struct {
	source   string
	keywords []string
}

// Checked in order, first match wins
var sourceRules = []sourceRule{
	{domain.SourceOXTrade, []string{"titan", "kalekim", "schonox", "ox trade"}},
	{domain.SourceHammam, []string{"wasbak", "wastafel", "hammam"}},
}

// SourceFor derives the vendor tag from a product name
func SourceFor(name string) string {
	lower := strings.ToLower(name)
	for _, r := range sourceRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.source
			}
		}
	}
	return domain.SourceUnknown
}

// Targets sold per square meter
var squareMeterTargets = map[string]bool{
	"marble":     true,
	"travertine": true,
	"granite":    true,
	"onyx":       true,
	"quartzite":  true,
	"tiles":      true,
}

// UnitFor returns the sales unit for a product classified under target
func UnitFor(target string) string {
	if squareMeterTargets[target] {
		return domain.UnitSquareMeter
	}
	return domain.UnitPiece
}
