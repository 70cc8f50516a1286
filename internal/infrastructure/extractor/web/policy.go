package web

// Policy holds the site-specific exceptions of the extractor.
type Policy struct {
	// TableAllowTitles lists title fragments whose pages keep tables even when
	// the table wraps paragraph content.
	TableAllowTitles []string `yaml:"table_allow_titles"`
	// PhoneMarkers mark anchor texts that are phone numbers; those links are not rewritten.
	PhoneMarkers []string `yaml:"phone_markers"`
	// NoiseStrings are removed from the raw markup before parsing.
	NoiseStrings []string `yaml:"noise_strings"`
}

func DefaultPolicy() Policy {
	return Policy{
		TableAllowTitles: []string{"Directions", "Semestertermine "},
		PhoneMarkers:     []string{"+49"},
		NoiseStrings:     []string{"[Bitte aktivieren Sie Javascript]"},
	}
}
