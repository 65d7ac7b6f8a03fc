package domain

import "strconv"

type capacityBound struct {
	flatField      string
	apartmentField string
	what           string
	decimal        bool
}

var capacityBounds = []capacityBound{
	{flatField: "nom_flt", apartmentField: "num_of_flts", what: "flat number"},
	{flatField: "floor_flt", apartmentField: "num_of_flrs", what: "floor"},
	{flatField: "square_flt", apartmentField: "square", what: "area", decimal: true},
}

// CheckCapacity fails with RuleCapacityExceeded when the flat's number, floor or
// area is larger than the apartment building declares. Values compare numerically.
func CheckCapacity(flat, apartment Record) error {
	for _, b := range capacityBounds {
		have, err := parseBound(KindFlat, b.flatField, flat.Get(b.flatField), b.decimal)
		if err != nil {
			return err
		}
		limit, err := parseBound(KindApartment, b.apartmentField, apartment.Get(b.apartmentField), b.decimal)
		if err != nil {
			return err
		}
		if have > limit {
			return newValidationError(KindFlat, b.flatField, RuleCapacityExceeded,
				"%s %s exceeds apartment %s limit %s", b.what, flat.Get(b.flatField),
				apartment.Get("cod_num_hom"), apartment.Get(b.apartmentField))
		}
	}
	return nil
}

func parseBound(kind Kind, field, value string, decimal bool) (float64, error) {
	if !NumericOnly(value, decimal) {
		return 0, newValidationError(kind, field, RuleBadFormat, "%s %q is not a number", field, value)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, newValidationError(kind, field, RuleBadFormat, "%s %q is not a number", field, value)
	}
	return v, nil
}
