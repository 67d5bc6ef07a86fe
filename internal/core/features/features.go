// Package features turns raw production records into the numeric matrices
// the models consume: missing-value fill, categorical encoding and the
// derived defect-rate, log and heat-index columns.
package features

import "math"

// Column names shared across preparation, training and prediction
const (
	ColTemperature       = "temperature"
	ColHumidity          = "humidity"
	ColQuantityProduced  = "quantity_produced"
	ColQuantityDefective = "quantity_defective"
	ColDefectRate        = "defect_rate"
	ColVibration         = "vibration"
	ColPressure          = "pressure"

	ColMachineCode   = "machine_code"
	ColShift         = "shift"
	ColOperatorName  = "operator_name"
	ColMaterialBatch = "material_batch"
	ColDefectCode    = "defect_code"

	ColDefectRateLog = "defect_rate_log"
	ColHeatIndex     = "heat_index"
)

// NumericCols and CategoricalCols are the candidate input columns in
// canonical order; derived columns follow them in prepared datasets
var (
	NumericCols = []string{
		ColTemperature, ColHumidity, ColQuantityProduced,
		ColQuantityDefective, ColDefectRate, ColVibration, ColPressure,
	}
	CategoricalCols = []string{
		ColMachineCode, ColShift, ColOperatorName,
		ColMaterialBatch, ColDefectCode,
	}
)

// Dataset is a prepared feature matrix. Rows[i][j] is the value of
// Columns[j] for record i
type Dataset struct {
	Columns []string
	Rows    [][]float64
}

// Column returns the index of name in Columns, -1 when absent
func (d *Dataset) Column(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Align reindexes the dataset onto cols, filling columns the dataset
// does not have with zeros
func (d *Dataset) Align(cols []string) [][]float64 {
	src := make([]int, len(cols))
	for j, c := range cols {
		src[j] = d.Column(c)
	}
	out := make([][]float64, len(d.Rows))
	for i, row := range d.Rows {
		o := make([]float64, len(cols))
		for j, s := range src {
			if s >= 0 {
				o[j] = row[s]
			}
		}
		out[i] = o
	}
	return out
}

// Prepare builds the feature matrix for records. With fit true it fits fresh
// encoders from the batch; otherwise it applies encs, mapping unseen values
// to the unknown bucket and emitting zeros for columns with no encoder.
//
// A numeric column participates when at least one record carries it.
// defect_rate is recomputed from the quantity columns when both are present
// (produced <= 0 yields 0) and defect_rate_log is added alongside it.
// heat_index is added when temperature and humidity are both present
func Prepare(records []RawRecord, fit bool, encs Encoders) (*Dataset, Encoders) {
	hasNum := make(map[string]bool, len(NumericCols))
	hasCat := make(map[string]bool, len(CategoricalCols))
	for i := range records {
		r := &records[i]
		for _, c := range NumericCols {
			if !hasNum[c] && r.numeric(c) != nil {
				hasNum[c] = true
			}
		}
		for _, c := range CategoricalCols {
			if !hasCat[c] && r.categorical(c) != nil {
				hasCat[c] = true
			}
		}
	}

	deriveRate := hasNum[ColQuantityProduced] && hasNum[ColQuantityDefective]
	if deriveRate {
		hasNum[ColDefectRate] = true
	}
	deriveHeat := hasNum[ColTemperature] && hasNum[ColHumidity]

	cols := make([]string, 0, len(NumericCols)+len(CategoricalCols)+2)
	for _, c := range NumericCols {
		if hasNum[c] {
			cols = append(cols, c)
		}
	}
	catCols := make([]string, 0, len(CategoricalCols))
	for _, c := range CategoricalCols {
		if hasCat[c] {
			cols = append(cols, c)
			catCols = append(catCols, c)
		}
	}
	if deriveRate {
		cols = append(cols, ColDefectRateLog)
	}
	if deriveHeat {
		cols = append(cols, ColHeatIndex)
	}

	if fit {
		encs = make(Encoders, len(catCols))
		for _, c := range catCols {
			vals := make([]string, len(records))
			for i := range records {
				if p := records[i].categorical(c); p != nil {
					vals[i] = *p
				} else {
					vals[i] = UnknownValue
				}
			}
			encs[c] = fitEncoder(vals)
		}
	}

	ds := &Dataset{Columns: cols, Rows: make([][]float64, len(records))}
	for i := range records {
		r := &records[i]
		row := make([]float64, len(cols))
		for j, c := range cols {
			switch c {
			case ColDefectRate:
				if deriveRate {
					row[j] = r.ComputedDefectRate()
				} else if r.DefectRate != nil {
					row[j] = *r.DefectRate
				}
			case ColDefectRateLog:
				row[j] = math.Log1p(r.ComputedDefectRate())
			case ColHeatIndex:
				var temp, hum float64
				if r.Temperature != nil {
					temp = *r.Temperature
				}
				if r.Humidity != nil {
					hum = *r.Humidity
				}
				row[j] = 0.6*temp + 0.4*hum
			default:
				if p := r.numeric(c); p != nil {
					row[j] = *p
					break
				}
				if p := r.categorical(c); p != nil || hasCat[c] {
					v := UnknownValue
					if p != nil {
						v = *p
					}
					if enc := encs[c]; enc != nil {
						row[j] = float64(enc.Code(v))
					}
				}
			}
		}
		ds.Rows[i] = row
	}
	return ds, encs
}
