package features

import "time"

// RawRecord is one production/defect observation as supplied by the caller.
// Optional fields are pointers; nil means the caller did not report the value
type RawRecord struct {
	ID   int64
	Date time.Time

	QuantityProduced  *float64
	QuantityDefective *float64
	DefectRate        *float64
	Temperature       *float64
	Humidity          *float64
	Vibration         *float64
	Pressure          *float64

	MachineCode   *string
	Shift         *string
	OperatorName  *string
	MaterialBatch *string
	DefectCode    *string

	// HasDefect is the optional explicit training target
	HasDefect *bool
}

// numeric returns the named numeric field, nil when unset or unknown column
func (r *RawRecord) numeric(col string) *float64 {
	switch col {
	case ColTemperature:
		return r.Temperature
	case ColHumidity:
		return r.Humidity
	case ColQuantityProduced:
		return r.QuantityProduced
	case ColQuantityDefective:
		return r.QuantityDefective
	case ColDefectRate:
		return r.DefectRate
	case ColVibration:
		return r.Vibration
	case ColPressure:
		return r.Pressure
	}
	return nil
}

// Numeric returns the named numeric field, nil when unset or unknown column
func (r *RawRecord) Numeric(col string) *float64 { return r.numeric(col) }

// categorical returns the named categorical field, nil when unset or unknown column
func (r *RawRecord) categorical(col string) *string {
	switch col {
	case ColMachineCode:
		return r.MachineCode
	case ColShift:
		return r.Shift
	case ColOperatorName:
		return r.OperatorName
	case ColMaterialBatch:
		return r.MaterialBatch
	case ColDefectCode:
		return r.DefectCode
	}
	return nil
}

// Machine returns the machine code or "Unknown" for display
func (r *RawRecord) Machine() string {
	if r.MachineCode != nil && *r.MachineCode != "" {
		return *r.MachineCode
	}
	return "Unknown"
}

// ShiftName returns the shift or "Unknown" for display
func (r *RawRecord) ShiftName() string {
	if r.Shift != nil && *r.Shift != "" {
		return *r.Shift
	}
	return "Unknown"
}

// ComputedDefectRate returns defective/produced, 0 when produced is not positive.
// Falls back to the supplied defect_rate when quantities are absent
func (r *RawRecord) ComputedDefectRate() float64 {
	if r.QuantityDefective != nil && r.QuantityProduced != nil {
		if *r.QuantityProduced > 0 {
			return *r.QuantityDefective / *r.QuantityProduced
		}
		return 0
	}
	if r.DefectRate != nil {
		return *r.DefectRate
	}
	return 0
}

// DeriveTargets returns the has-defect label per record.
// The explicit HasDefect field wins; otherwise quantity_defective > 0.
// ok is false when neither source exists anywhere in the batch
func DeriveTargets(records []RawRecord) (labels []int, ok bool) {
	for i := range records {
		if records[i].HasDefect != nil || records[i].QuantityDefective != nil {
			ok = true
			break
		}
	}
	if !ok {
		return nil, false
	}
	labels = make([]int, len(records))
	for i := range records {
		r := &records[i]
		switch {
		case r.HasDefect != nil && *r.HasDefect:
			labels[i] = 1
		case r.HasDefect == nil && r.QuantityDefective != nil && *r.QuantityDefective > 0:
			labels[i] = 1
		}
	}
	return labels, true
}
