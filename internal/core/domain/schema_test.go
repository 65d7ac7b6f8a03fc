package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOwner() Fields {
	return Fields{"uid": "1234567890", "fio": "Ivanov I.I.", "ph_numb": "79001234567"}
}

func requireRule(t *testing.T, err error, field string, rule Rule) {
	t.Helper()
	ve, ok := AsValidationError(err)
	require.Truef(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, field, ve.Field)
	assert.Equal(t, rule, ve.Rule)
}

func TestEveryKindHasSchema(t *testing.T) {
	for _, kind := range Kinds() {
		s := SchemaFor(kind)
		require.Equal(t, kind, s.Kind)
		require.NotEmpty(t, s.Identity)
		for _, id := range s.Identity {
			assert.Contains(t, s.FieldNames(), id)
		}
		for _, ref := range s.References {
			assert.Contains(t, SchemaFor(ref.Parent).Identity, ref.ParentField)
		}
	}
	assert.Equal(t, Kind(""), SchemaFor("garage").Kind)
}

func TestCheckFieldsAcceptsValidOwner(t *testing.T) {
	assert.NoError(t, SchemaFor(KindOwner).CheckFields(validOwner(), ModeInsert))
}

func TestCheckFieldsEmptyWinsOverFormatAndLength(t *testing.T) {
	f := validOwner()
	f["uid"] = ""
	requireRule(t, SchemaFor(KindOwner).CheckFields(f, ModeInsert), "uid", RuleEmpty)
}

func TestCheckFieldsFormatBeforeLength(t *testing.T) {
	f := validOwner()
	f["uid"] = "12ab"
	requireRule(t, SchemaFor(KindOwner).CheckFields(f, ModeInsert), "uid", RuleBadFormat)

	f["uid"] = "12345"
	requireRule(t, SchemaFor(KindOwner).CheckFields(f, ModeInsert), "uid", RuleBadLength)
}

func TestCheckFieldsStopsAtFirstFieldInSchemaOrder(t *testing.T) {
	f := Fields{"uid": "", "fio": "bad#name", "ph_numb": ""}
	requireRule(t, SchemaFor(KindOwner).CheckFields(f, ModeInsert), "uid", RuleEmpty)

	f["uid"] = "1234567890"
	requireRule(t, SchemaFor(KindOwner).CheckFields(f, ModeInsert), "fio", RuleBadFormat)
}

func TestCheckFieldsUpdateSkipsIdentity(t *testing.T) {
	f := validOwner()
	f["uid"] = "12345"
	assert.NoError(t, SchemaFor(KindOwner).CheckFields(f, ModeUpdate))
}

func TestCheckFieldsApartmentRules(t *testing.T) {
	f := Fields{
		"cod_num_hom": "77:01:0001",
		"address":     "Lenina 1",
		"year":        "1975-06-01",
		"num_of_flrs": "10",
		"num_of_flts": "40",
		"square":      "500.0",
	}
	s := SchemaFor(KindApartment)
	require.NoError(t, s.CheckFields(f, ModeInsert))

	bad := f.Clone()
	bad["cod_num_hom"] = "77-01"
	requireRule(t, s.CheckFields(bad, ModeInsert), "cod_num_hom", RuleBadFormat)

	bad = f.Clone()
	bad["year"] = "1975-02-30"
	requireRule(t, s.CheckFields(bad, ModeInsert), "year", RuleBadFormat)

	bad = f.Clone()
	bad["square"] = "123456.78"
	requireRule(t, s.CheckFields(bad, ModeInsert), "square", RuleBadLength)
}

func TestCheckFieldsRepairWorkOnlyNeedsCode(t *testing.T) {
	s := SchemaFor(KindRepairWork)
	assert.NoError(t, s.CheckFields(Fields{"cod_rep_work": "x#1"}, ModeInsert))
	requireRule(t, s.CheckFields(Fields{"type_of_work": "roof"}, ModeInsert), "cod_rep_work", RuleEmpty)
}

func TestKeyOf(t *testing.T) {
	s := SchemaFor(KindCurrentRepair)
	key, err := s.KeyOf(Fields{"cod_rep_work": "RW", "inn_org": "770000000001", "cod_num_hom": "1", "name_of_work": "x"})
	require.NoError(t, err)
	assert.Equal(t, Fields{"cod_rep_work": "RW", "inn_org": "770000000001", "cod_num_hom": "1"}, key)

	_, err = s.KeyOf(Fields{"cod_rep_work": "RW", "cod_num_hom": "1"})
	requireRule(t, err, "inn_org", RuleEmpty)
}

func TestEditableReferences(t *testing.T) {
	assert.Len(t, SchemaFor(KindFlat).EditableReferences(ModeUpdate), 2)
	assert.Len(t, SchemaFor(KindCurrentRepair).EditableReferences(ModeInsert), 3)
	assert.Empty(t, SchemaFor(KindCurrentRepair).EditableReferences(ModeUpdate))
}

func TestProjectFillsAndDrops(t *testing.T) {
	got := SchemaFor(KindOwner).Project(Fields{"uid": "1", "extra": "x"})
	assert.Equal(t, Fields{"uid": "1", "fio": "", "ph_numb": ""}, got)
}

func TestParseKindAndMode(t *testing.T) {
	kind, err := ParseKind("current_repair")
	require.NoError(t, err)
	assert.Equal(t, KindCurrentRepair, kind)
	_, err = ParseKind("garage")
	assert.ErrorIs(t, err, ErrInvalidKind)

	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeInsert, mode)
	_, err = ParseMode("upsert")
	assert.ErrorIs(t, err, ErrInvalidMode)
}
