package service

import "strings"

// canonical display names keyed by lowercase brand code.
var brandNames = map[string]string{
	"apple":   "Apple",
	"samsung": "Samsung",
	"oneplus": "OnePlus",
	"mi":      "Xiaomi",
	"boat":    "boAt",
	"sony":    "Sony",
}

const fallbackBrand = "Other"

// NormalizeBrand maps a raw brand code to its canonical display name.
//
// The two fallback branches are deliberately asymmetric and part of the
// downstream contract: an absent brand becomes the literal "Other", while
// an unknown brand passes through verbatim with its original casing.
// KnownBrand reports whether the normalization table has an entry for
// the code.
func KnownBrand(brand string) bool {
	_, ok := brandNames[strings.ToLower(brand)]
	return ok
}

func NormalizeBrand(brand *string) string {
	if brand == nil {
		return fallbackBrand
	}
	if name, ok := brandNames[strings.ToLower(*brand)]; ok {
		return name
	}
	return *brand
}
