package fingerprint

import "strings"

// CanonicalRegion maps a region to its canonical subdivision code so that
// "CA", "california", and " California " all collide. US states, DC, and
// Canadian provinces are recognized by postal code or full name; anything
// else falls back to the normalized uppercase string, which is still
// deterministic, just without alias folding. Returns "" for empty input.
func CanonicalRegion(region string) string {
	n := Normalize(region)
	if n == "" {
		return ""
	}
	if code, ok := regionAliases[n]; ok {
		return code
	}
	return strings.ToUpper(n)
}

// regionAliases maps normalized full names to subdivision codes.
var regionAliases = map[string]string{}

func init() {
	names := map[string]string{
		// US states and DC.
		"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
		"california": "CA", "colorado": "CO", "connecticut": "CT",
		"delaware": "DE", "district of columbia": "DC", "florida": "FL",
		"georgia": "GA", "hawaii": "HI", "idaho": "ID", "illinois": "IL",
		"indiana": "IN", "iowa": "IA", "kansas": "KS", "kentucky": "KY",
		"louisiana": "LA", "maine": "ME", "maryland": "MD",
		"massachusetts": "MA", "michigan": "MI", "minnesota": "MN",
		"mississippi": "MS", "missouri": "MO", "montana": "MT",
		"nebraska": "NE", "nevada": "NV", "new hampshire": "NH",
		"new jersey": "NJ", "new mexico": "NM", "new york": "NY",
		"north carolina": "NC", "north dakota": "ND", "ohio": "OH",
		"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA",
		"puerto rico": "PR", "rhode island": "RI", "south carolina": "SC",
		"south dakota": "SD", "tennessee": "TN", "texas": "TX",
		"utah": "UT", "vermont": "VT", "virginia": "VA", "washington": "WA",
		"west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",

		// Canadian provinces and territories.
		"alberta": "AB", "british columbia": "BC", "manitoba": "MB",
		"new brunswick": "NB", "newfoundland and labrador": "NL",
		"northwest territories": "NT", "nova scotia": "NS", "nunavut": "NU",
		"ontario": "ON", "prince edward island": "PE", "quebec": "QC",
		"saskatchewan": "SK", "yukon": "YT",
	}
	for name, code := range names {
		regionAliases[name] = code
	}
}
