package model

// TableDefinition describes one table of a Bitable design.
type TableDefinition struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []FieldDefinition `yaml:"fields" json:"fields"`
}

// Clone returns a deep copy so callers can mutate fields without touching
// the source table.
func (t TableDefinition) Clone() TableDefinition {
	out := t
	out.Fields = make([]FieldDefinition, len(t.Fields))
	for i, f := range t.Fields {
		cf := f
		if f.Options != nil {
			cf.Options = append([]string(nil), f.Options...)
		}
		out.Fields[i] = cf
	}
	return out
}

// APIFields serializes the table's fields to the remote API shape in
// declared order.
func (t TableDefinition) APIFields() []APIField {
	out := make([]APIField, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = f.ToAPI()
	}
	return out
}

// Design is a complete Bitable design: a container and its tables. It has
// no remote identity until it is materialized.
type Design struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Tables      []TableDefinition `json:"tables"`
}

// FieldSummary is the redacted field entry of a design summary.
type FieldSummary struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSummary is the redacted table entry of a design summary.
type TableSummary struct {
	Name   string         `json:"name"`
	Fields []FieldSummary `json:"fields"`
}

// DesignSummary carries names and types only, safe to echo back to users.
type DesignSummary struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tables      []TableSummary `json:"tables"`
}

// Summary produces the redacted summary of the design.
func (d Design) Summary() DesignSummary {
	sum := DesignSummary{
		Name:        d.Name,
		Description: d.Description,
		Tables:      make([]TableSummary, len(d.Tables)),
	}
	for i, t := range d.Tables {
		ts := TableSummary{
			Name:   t.Name,
			Fields: make([]FieldSummary, len(t.Fields)),
		}
		for j, f := range t.Fields {
			ts.Fields[j] = FieldSummary{Name: f.Name, Type: f.Type.String()}
		}
		sum.Tables[i] = ts
	}
	return sum
}
