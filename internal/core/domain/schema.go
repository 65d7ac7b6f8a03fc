package domain

// Format selects the syntactic validator applied to a field after the empty check.
type Format int

const (
	FormatAny Format = iota
	FormatDigits
	FormatDecimal
	FormatText
	FormatCadastral
	FormatDate
)

// FieldRule is one field's check list: empty, then format, then length.
// A zero Limit disables the length check.
type FieldRule struct {
	Name     string
	Label    string
	Format   Format
	Limit    int
	Exact    bool
	Optional bool
}

// Reference is a foreign key from Field to the parent's identity field.
type Reference struct {
	Field       string
	Parent      Kind
	ParentField string
}

// Schema describes the admissible shape of one entity kind.
type Schema struct {
	Kind       Kind
	Fields     []FieldRule
	Identity   []string
	UniqueKeys [][]string
	References []Reference
}

func cadastralCode(name, label string) FieldRule {
	return FieldRule{Name: name, Label: label, Format: FormatCadastral, Limit: 20}
}

func ownerUID(name string) FieldRule {
	return FieldRule{Name: name, Label: "owner id", Format: FormatDigits, Limit: 10, Exact: true}
}

func builderINN(name string) FieldRule {
	return FieldRule{Name: name, Label: "organization INN", Format: FormatDigits, Limit: 12, Exact: true}
}

func phoneNumber(name string) FieldRule {
	return FieldRule{Name: name, Label: "phone number", Format: FormatDigits, Limit: 11, Exact: true}
}

var schemas = map[Kind]Schema{
	KindApartment: {
		Kind: KindApartment,
		Fields: []FieldRule{
			cadastralCode("cod_num_hom", "cadastral code"),
			{Name: "address", Label: "address", Format: FormatText, Limit: 125},
			{Name: "year", Label: "year built", Format: FormatDate},
			{Name: "num_of_flrs", Label: "floor count", Format: FormatDigits, Limit: 4},
			{Name: "num_of_flts", Label: "flat count", Format: FormatDigits, Limit: 5},
			{Name: "square", Label: "total area", Format: FormatDecimal, Limit: 8},
		},
		Identity:   []string{"cod_num_hom"},
		UniqueKeys: [][]string{{"cod_num_hom"}},
	},
	KindOwner: {
		Kind: KindOwner,
		Fields: []FieldRule{
			ownerUID("uid"),
			{Name: "fio", Label: "full name", Format: FormatText, Limit: 50},
			phoneNumber("ph_numb"),
		},
		Identity:   []string{"uid"},
		UniqueKeys: [][]string{{"uid"}},
	},
	KindBuilder: {
		Kind: KindBuilder,
		Fields: []FieldRule{
			builderINN("inn_org"),
			{Name: "name_of_org", Label: "organization name", Format: FormatText, Limit: 50},
			phoneNumber("ph_numb"),
			{Name: "address", Label: "address", Format: FormatText, Limit: 125},
		},
		Identity:   []string{"inn_org"},
		UniqueKeys: [][]string{{"inn_org"}},
	},
	// The work catalog carries no syntax rules beyond a non-empty code.
	KindRepairWork: {
		Kind: KindRepairWork,
		Fields: []FieldRule{
			{Name: "cod_rep_work", Label: "work code"},
			{Name: "type_of_work", Label: "type of work", Optional: true},
		},
		Identity:   []string{"cod_rep_work"},
		UniqueKeys: [][]string{{"cod_rep_work"}},
	},
	KindFlat: {
		Kind: KindFlat,
		Fields: []FieldRule{
			cadastralCode("cod_flt", "flat code"),
			ownerUID("owner_uid"),
			cadastralCode("aprtmt_uid", "apartment code"),
			{Name: "nom_flt", Label: "flat number", Format: FormatDigits, Limit: 5},
			{Name: "floor_flt", Label: "floor", Format: FormatDigits, Limit: 5},
			{Name: "square_flt", Label: "area", Format: FormatDecimal, Limit: 7},
		},
		Identity:   []string{"cod_flt"},
		UniqueKeys: [][]string{{"cod_flt", "owner_uid", "aprtmt_uid"}, {"cod_flt"}},
		References: []Reference{
			{Field: "owner_uid", Parent: KindOwner, ParentField: "uid"},
			{Field: "aprtmt_uid", Parent: KindApartment, ParentField: "cod_num_hom"},
		},
	},
	KindCurrentRepair: {
		Kind: KindCurrentRepair,
		Fields: []FieldRule{
			{Name: "cod_rep_work", Label: "work code"},
			builderINN("inn_org"),
			cadastralCode("cod_num_hom", "cadastral code"),
			{Name: "name_of_work", Label: "work description", Format: FormatText, Limit: 50},
			{Name: "date_start", Label: "start date", Format: FormatDate},
			{Name: "date_end", Label: "end date", Format: FormatDate},
		},
		Identity:   []string{"cod_rep_work", "inn_org", "cod_num_hom"},
		UniqueKeys: [][]string{{"cod_rep_work", "inn_org", "cod_num_hom"}},
		References: []Reference{
			{Field: "cod_rep_work", Parent: KindRepairWork, ParentField: "cod_rep_work"},
			{Field: "inn_org", Parent: KindBuilder, ParentField: "inn_org"},
			{Field: "cod_num_hom", Parent: KindApartment, ParentField: "cod_num_hom"},
		},
	},
}

// SchemaFor returns the schema registered for kind, or a zero Schema.
func SchemaFor(kind Kind) Schema {
	return schemas[kind]
}

// FieldNames lists the schema's fields in declared order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

func (s Schema) IsIdentity(name string) bool {
	for _, id := range s.Identity {
		if id == name {
			return true
		}
	}
	return false
}

// Project keeps only the schema's fields, filling absent ones with "".
func (s Schema) Project(fields Fields) Fields {
	return fields.Pick(s.FieldNames()...)
}

// KeyOf extracts the identity fields and fails when one of them is blank.
func (s Schema) KeyOf(fields Fields) (Fields, error) {
	key := fields.Pick(s.Identity...)
	for _, name := range s.Identity {
		if IsEmpty(key[name]) {
			return nil, newValidationError(s.Kind, name, RuleEmpty, "%s must not be empty", s.label(name))
		}
	}
	return key, nil
}

// EditableReferences returns the references checked in mode. Identity fields
// cannot change on update, so references through them are skipped there.
func (s Schema) EditableReferences(mode Mode) []Reference {
	if mode == ModeInsert {
		return s.References
	}
	refs := make([]Reference, 0, len(s.References))
	for _, ref := range s.References {
		if !s.IsIdentity(ref.Field) {
			refs = append(refs, ref)
		}
	}
	return refs
}

// CheckFields runs every field rule in declared order and returns the first
// failure. On update the identity fields are not re-validated.
func (s Schema) CheckFields(fields Fields, mode Mode) error {
	for _, rule := range s.Fields {
		if mode == ModeUpdate && s.IsIdentity(rule.Name) {
			continue
		}
		if err := rule.check(s.Kind, fields[rule.Name]); err != nil {
			return err
		}
	}
	return nil
}

func (s Schema) label(name string) string {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Label
		}
	}
	return name
}

func (r FieldRule) check(kind Kind, value string) *ValidationError {
	if IsEmpty(value) {
		if r.Optional {
			return nil
		}
		return newValidationError(kind, r.Name, RuleEmpty, "%s must not be empty", r.Label)
	}

	if !r.formatOK(value) {
		return newValidationError(kind, r.Name, RuleBadFormat, "%s %s", r.Label, r.formatHint())
	}

	if r.Limit > 0 && !LengthOK(value, r.Limit, r.Exact) {
		if r.Exact {
			return newValidationError(kind, r.Name, RuleBadLength, "%s must be exactly %d characters long", r.Label, r.Limit)
		}
		return newValidationError(kind, r.Name, RuleBadLength, "%s must be at most %d characters long", r.Label, r.Limit)
	}
	return nil
}

func (r FieldRule) formatOK(value string) bool {
	switch r.Format {
	case FormatDigits:
		return NumericOnly(value, false)
	case FormatDecimal:
		return NumericOnly(value, true)
	case FormatText:
		return RestrictedCharset(value)
	case FormatCadastral:
		return CadastralFormat(value)
	case FormatDate:
		return ValidCalendarDate(value)
	default:
		return true
	}
}

func (r FieldRule) formatHint() string {
	switch r.Format {
	case FormatDigits:
		return "must contain digits only"
	case FormatDecimal:
		return "must be a number"
	case FormatText:
		return "must not contain any of " + RestrictedChars
	case FormatCadastral:
		return "may contain only digits and ':'"
	case FormatDate:
		return "must be a real date in YYYY-MM-DD format"
	default:
		return "is malformed"
	}
}
