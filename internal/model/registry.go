package model

// TagDef and ProjectDef are registry entries carrying an optional scoring
// multiplier. A multiplier of 0 means "unset"; lookups fall back to 1.0.

type TagDef struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

type ProjectDef struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier,omitempty"`
}
