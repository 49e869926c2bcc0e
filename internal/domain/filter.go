package domain

// Filter restricts a dataset by sector and registry unit. An empty set means
// no restriction on that field; there is no "select all" sentinel value.
type Filter struct {
	Sectors       []string `json:"sectors,omitempty"`
	RegistryUnits []string `json:"registry_units,omitempty"`
}

// IsZero reports whether the filter lets every record through.
func (f Filter) IsZero() bool {
	return len(f.Sectors) == 0 && len(f.RegistryUnits) == 0
}

// Apply returns the records matching the filter. The input slice is returned
// unchanged when the filter is empty.
func (f Filter) Apply(records []IncidentRecord) []IncidentRecord {
	if f.IsZero() {
		return records
	}

	sectors := toSet(f.Sectors)
	units := toSet(f.RegistryUnits)

	out := make([]IncidentRecord, 0, len(records))
	for i := range records {
		if !matches(sectors, records[i].Sector) || !matches(units, records[i].RegistryUnit) {
			continue
		}
		out = append(out, records[i])
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// matches treats a nil set as "no restriction".
func matches(set map[string]struct{}, value string) bool {
	if set == nil {
		return true
	}
	_, ok := set[value]
	return ok
}
