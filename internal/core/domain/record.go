package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind identifies one of the registry's entity sets.
type Kind string

const (
	KindApartment     Kind = "apartment"
	KindOwner         Kind = "owner"
	KindBuilder       Kind = "builder"
	KindRepairWork    Kind = "repair_work"
	KindFlat          Kind = "flat"
	KindCurrentRepair Kind = "current_repair"
)

// Kinds lists every entity kind, parents before the records referencing them.
func Kinds() []Kind {
	return []Kind{KindApartment, KindOwner, KindBuilder, KindRepairWork, KindFlat, KindCurrentRepair}
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Mode selects which checks run for a candidate record.
type Mode string

const (
	ModeInsert Mode = "insert"
	ModeUpdate Mode = "update"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeInsert, ModeUpdate:
		return Mode(s), nil
	case "":
		return ModeInsert, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Fields holds raw field values keyed by column name.
type Fields map[string]string

// Names returns the field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pick returns a copy holding only the named fields. Absent names map to "".
func (f Fields) Pick(names ...string) Fields {
	out := make(Fields, len(names))
	for _, name := range names {
		out[name] = f[name]
	}
	return out
}

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f Fields) String() string {
	parts := make([]string, 0, len(f))
	for _, name := range f.Names() {
		parts = append(parts, fmt.Sprintf("%s=%q", name, f[name]))
	}
	return strings.Join(parts, " ")
}

// Record is a flat entity row as submitted by the operator or read from storage.
type Record struct {
	Kind   Kind
	Fields Fields
}

func NewRecord(kind Kind, fields Fields) Record {
	return Record{Kind: kind, Fields: fields}
}

func (r Record) Get(name string) string {
	return r.Fields[name]
}

// Identity returns the fields addressing this record in its entity set.
func (r Record) Identity() Fields {
	return r.Fields.Pick(SchemaFor(r.Kind).Identity...)
}

// ListFilter selects a page of records ordered by identity. After holds the
// identity values of the last record already seen, in schema identity order.
type ListFilter struct {
	After []string
	Limit int
}

// ChangeAction names the write that produced a change event.
type ChangeAction string

const (
	ActionInsert ChangeAction = "insert"
	ActionUpdate ChangeAction = "update"
	ActionDelete ChangeAction = "delete"
)

// ChangeEvent records one committed write.
type ChangeEvent struct {
	EventID    string       `json:"event_id"`
	Kind       Kind         `json:"kind"`
	Action     ChangeAction `json:"action"`
	Key        Fields       `json:"key"`
	Fields     Fields       `json:"fields,omitempty"`
	Actor      string       `json:"actor"`
	OccurredAt time.Time    `json:"occurred_at"`
}

type ChangeFilter struct {
	Kind  Kind
	Limit int
}
