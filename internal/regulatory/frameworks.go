// Package regulatory holds the per-region regulatory context used to ground
// both prompt construction and the rendered compliance guide.
package regulatory

// Recognized regions.
const (
	RegionEU     = "EU"
	RegionUSA    = "USA"
	RegionUK     = "UK"
	RegionGlobal = "Global"
)

// Framework describes the regulatory environment for one region.
type Framework struct {
	Region           string
	Regulations      string
	Description      string
	EnforcementFocus string
}

var frameworks = map[string]Framework{
	RegionEU: {
		Region:           RegionEU,
		Regulations:      "EU Green Claims Directive, CSRD, EU Taxonomy Regulation",
		Description:      "European Union sustainability regulations focusing on green claims substantiation and corporate reporting",
		EnforcementFocus: "Mandatory substantiation, corporate transparency, taxonomy alignment",
	},
	RegionUSA: {
		Region:           RegionUSA,
		Regulations:      "FTC Green Guides, SEC Climate Disclosure Rules, EPA Green Power Partnership",
		Description:      "US federal guidance and rules for environmental marketing claims and climate disclosures",
		EnforcementFocus: "Truthful advertising, climate risk disclosure, renewable energy verification",
	},
	RegionUK: {
		Region:           RegionUK,
		Regulations:      "CMA Green Claims Code, FCA Sustainability Disclosure Requirements, ASA CAP Code",
		Description:      "UK-specific guidance for environmental claims and financial sustainability disclosures",
		EnforcementFocus: "Consumer protection, financial product sustainability, advertising standards",
	},
	RegionGlobal: {
		Region:           RegionGlobal,
		Regulations:      "ISO 14021, GRI Standards, TCFD Recommendations, ISSB Standards",
		Description:      "International standards and frameworks for sustainability communication and reporting",
		EnforcementFocus: "Voluntary compliance, standardized reporting, best practice adoption",
	},
}

// ForRegion returns the framework details for a region. Unknown regions fall
// back to Global.
func ForRegion(region string) Framework {
	if fw, ok := frameworks[region]; ok {
		return fw
	}
	return frameworks[RegionGlobal]
}

// Regions lists the recognized regions in stable order.
func Regions() []string {
	return []string{RegionEU, RegionUSA, RegionUK, RegionGlobal}
}

// IsRecognized reports whether the region has first-class framework details.
func IsRecognized(region string) bool {
	_, ok := frameworks[region]
	return ok
}
