// Package clinical extracts structured patient parameters from query text
// and derives weight-based dosing hints.
package clinical

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const lbPerKg = 2.20462

var (
	kgPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:kg|kilo(?:gram)?s?)\b`)
	lbPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:lbs?|pounds?)\b`)
)

// dosingRule is a per-kilogram dose with a ceiling. MaxMg of zero means no
// ceiling.
type dosingRule struct {
	MgPerKg float64
	MaxMg   float64
	Route   string
}

// Weight-based rules for drugs the assistant is commonly asked about.
// Fixed-dose drugs (epinephrine in arrest, TXA) are left to the guideline
// text itself.
var dosingRules = map[string]dosingRule{
	"ketamine":   {MgPerKg: 0.5, MaxMg: 50, Route: "IV"},
	"fentanyl":   {MgPerKg: 0.001, MaxMg: 0.1, Route: "IV"},
	"midazolam":  {MgPerKg: 0.1, MaxMg: 10, Route: "IV"},
	"rocuronium": {MgPerKg: 1.0, MaxMg: 0, Route: "IV"},
}

// Extract pulls structured fields out of a raw query: patient weight (with
// pound-to-kilogram conversion), mentioned drugs, and a computed dose when
// both a weight and a weight-based drug are present. Returns nil when the
// query carries no structured parameters.
func Extract(query string) map[string]string {
	fields := make(map[string]string)

	weightKg, ok := extractWeightKg(query)
	if ok {
		fields["weight"] = fmt.Sprintf("%skg", formatNumber(weightKg))
	}

	// Sorted so a query naming several drugs resolves the same fields
	// every time; the extracted fields feed the response cache key.
	drugs := make([]string, 0, len(dosingRules))
	for drug := range dosingRules {
		drugs = append(drugs, drug)
	}
	sort.Strings(drugs)

	lower := strings.ToLower(query)
	for _, drug := range drugs {
		if !strings.Contains(lower, drug) {
			continue
		}
		fields["drug"] = drug
		if ok {
			fields[drug+" dose"] = formatDose(weightKg, dosingRules[drug])
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

func extractWeightKg(query string) (float64, bool) {
	if m := kgPattern.FindStringSubmatch(query); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil && v > 0 {
			return v, true
		}
	}
	if m := lbPattern.FindStringSubmatch(query); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil && v > 0 {
			return v / lbPerKg, true
		}
	}
	return 0, false
}

func formatDose(weightKg float64, rule dosingRule) string {
	dose := weightKg * rule.MgPerKg
	capped := false
	if rule.MaxMg > 0 && dose > rule.MaxMg {
		dose = rule.MaxMg
		capped = true
	}

	out := fmt.Sprintf("%smg %s", formatNumber(dose), rule.Route)
	if capped {
		out += " (max dose)"
	}
	return out
}

func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
