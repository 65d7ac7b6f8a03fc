package sqlstore

import (
	"fmt"
	"strconv"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
)

type apartmentModel struct {
	Code       string  `gorm:"column:cod_num_hom;primaryKey"`
	Address    string  `gorm:"column:address;not null"`
	Year       string  `gorm:"column:year;not null"`
	FloorCount int     `gorm:"column:num_of_flrs;not null"`
	FlatCount  int     `gorm:"column:num_of_flts;not null"`
	TotalArea  float64 `gorm:"column:square;not null"`
}

func (apartmentModel) TableName() string {
	return "apartment"
}

type ownerModel struct {
	UID      string `gorm:"column:uid;primaryKey"`
	FullName string `gorm:"column:fio;not null"`
	Phone    string `gorm:"column:ph_numb;not null"`
}

func (ownerModel) TableName() string {
	return "owner"
}

type builderModel struct {
	INN     string `gorm:"column:inn_org;primaryKey"`
	Name    string `gorm:"column:name_of_org;not null"`
	Phone   string `gorm:"column:ph_numb;not null"`
	Address string `gorm:"column:address;not null"`
}

func (builderModel) TableName() string {
	return "builder"
}

type repairWorkModel struct {
	Code string `gorm:"column:cod_rep_work;primaryKey"`
	Type string `gorm:"column:type_of_work;not null"`
}

func (repairWorkModel) TableName() string {
	return "repair_work"
}

type flatModel struct {
	Code          string  `gorm:"column:cod_flt;primaryKey"`
	OwnerUID      string  `gorm:"column:owner_uid;not null"`
	ApartmentCode string  `gorm:"column:aprtmt_uid;not null"`
	Number        int     `gorm:"column:nom_flt;not null"`
	Floor         int     `gorm:"column:floor_flt;not null"`
	Area          float64 `gorm:"column:square_flt;not null"`
}

func (flatModel) TableName() string {
	return "flat"
}

type currentRepairModel struct {
	WorkCode      string `gorm:"column:cod_rep_work;primaryKey"`
	BuilderINN    string `gorm:"column:inn_org;primaryKey"`
	ApartmentCode string `gorm:"column:cod_num_hom;primaryKey"`
	Description   string `gorm:"column:name_of_work;not null"`
	StartDate     string `gorm:"column:date_start;not null"`
	EndDate       string `gorm:"column:date_end;not null"`
}

func (currentRepairModel) TableName() string {
	return "current_repair"
}

// fieldParser converts validated field strings to column values, keeping the first error.
type fieldParser struct {
	fields domain.Fields
	err    error
}

func (p *fieldParser) int(name string) int {
	v, err := strconv.Atoi(p.fields[name])
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("parse %s: %w", name, err)
	}
	return v
}

func (p *fieldParser) float(name string) float64 {
	v, err := strconv.ParseFloat(p.fields[name], 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("parse %s: %w", name, err)
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var apartmentTable = gormTable[apartmentModel]{
	kind: domain.KindApartment,
	encode: func(f domain.Fields) (apartmentModel, error) {
		p := fieldParser{fields: f}
		m := apartmentModel{
			Code:       f["cod_num_hom"],
			Address:    f["address"],
			Year:       f["year"],
			FloorCount: p.int("num_of_flrs"),
			FlatCount:  p.int("num_of_flts"),
			TotalArea:  p.float("square"),
		}
		return m, p.err
	},
	decode: func(m apartmentModel) domain.Fields {
		return domain.Fields{
			"cod_num_hom": m.Code,
			"address":     m.Address,
			"year":        m.Year,
			"num_of_flrs": strconv.Itoa(m.FloorCount),
			"num_of_flts": strconv.Itoa(m.FlatCount),
			"square":      formatFloat(m.TotalArea),
		}
	},
}

var ownerTable = gormTable[ownerModel]{
	kind: domain.KindOwner,
	encode: func(f domain.Fields) (ownerModel, error) {
		return ownerModel{UID: f["uid"], FullName: f["fio"], Phone: f["ph_numb"]}, nil
	},
	decode: func(m ownerModel) domain.Fields {
		return domain.Fields{"uid": m.UID, "fio": m.FullName, "ph_numb": m.Phone}
	},
}

var builderTable = gormTable[builderModel]{
	kind: domain.KindBuilder,
	encode: func(f domain.Fields) (builderModel, error) {
		return builderModel{INN: f["inn_org"], Name: f["name_of_org"], Phone: f["ph_numb"], Address: f["address"]}, nil
	},
	decode: func(m builderModel) domain.Fields {
		return domain.Fields{"inn_org": m.INN, "name_of_org": m.Name, "ph_numb": m.Phone, "address": m.Address}
	},
}

var repairWorkTable = gormTable[repairWorkModel]{
	kind: domain.KindRepairWork,
	encode: func(f domain.Fields) (repairWorkModel, error) {
		return repairWorkModel{Code: f["cod_rep_work"], Type: f["type_of_work"]}, nil
	},
	decode: func(m repairWorkModel) domain.Fields {
		return domain.Fields{"cod_rep_work": m.Code, "type_of_work": m.Type}
	},
}

var flatTable = gormTable[flatModel]{
	kind: domain.KindFlat,
	encode: func(f domain.Fields) (flatModel, error) {
		p := fieldParser{fields: f}
		m := flatModel{
			Code:          f["cod_flt"],
			OwnerUID:      f["owner_uid"],
			ApartmentCode: f["aprtmt_uid"],
			Number:        p.int("nom_flt"),
			Floor:         p.int("floor_flt"),
			Area:          p.float("square_flt"),
		}
		return m, p.err
	},
	decode: func(m flatModel) domain.Fields {
		return domain.Fields{
			"cod_flt":    m.Code,
			"owner_uid":  m.OwnerUID,
			"aprtmt_uid": m.ApartmentCode,
			"nom_flt":    strconv.Itoa(m.Number),
			"floor_flt":  strconv.Itoa(m.Floor),
			"square_flt": formatFloat(m.Area),
		}
	},
}

var currentRepairTable = gormTable[currentRepairModel]{
	kind: domain.KindCurrentRepair,
	encode: func(f domain.Fields) (currentRepairModel, error) {
		return currentRepairModel{
			WorkCode:      f["cod_rep_work"],
			BuilderINN:    f["inn_org"],
			ApartmentCode: f["cod_num_hom"],
			Description:   f["name_of_work"],
			StartDate:     f["date_start"],
			EndDate:       f["date_end"],
		}, nil
	},
	decode: func(m currentRepairModel) domain.Fields {
		return domain.Fields{
			"cod_rep_work": m.WorkCode,
			"inn_org":      m.BuilderINN,
			"cod_num_hom":  m.ApartmentCode,
			"name_of_work": m.Description,
			"date_start":   m.StartDate,
			"date_end":     m.EndDate,
		}
	},
}
