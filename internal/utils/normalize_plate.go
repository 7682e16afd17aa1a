package utils

import "strings"

// NormalizePlate brings a plate to the canonical form used as the natural key:
// spaces and dashes removed, upper case.
func NormalizePlate(raw string) string {
	normalized := strings.TrimSpace(raw)
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "\t", "")
	normalized = strings.ToUpper(normalized)
	return normalized
}
