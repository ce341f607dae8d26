package auction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// DefaultPrecision is the number of decimal places in a price bucket string unless
// the granularity schema overrides it.
const DefaultPrecision = 2

// GranularityRange is one segment of a price granularity schema. Max is exclusive;
// Min is implied by the previous range's Max and is filled in during validation.
type GranularityRange struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Increment float64 `json:"increment"`
}

// PriceGranularity maps a continuous bid price onto discrete bucket strings for
// targeting. A schema is either one of the named presets (low, medium, high, auto,
// dense) or a custom ordered range list. It is resolved once per auction and
// immutable afterwards.
type PriceGranularity struct {
	Precision int                `json:"precision,omitempty"`
	Ranges    []GranularityRange `json:"ranges,omitempty"`
}

// priceGranularityPlain is PriceGranularity without the UnmarshalJSON override,
// to prevent infinite loops.
type priceGranularityPlain PriceGranularity

// UnmarshalJSON accepts either a preset name ("medium") or a custom schema object.
func (pg *PriceGranularity) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		preset, ok := PriceGranularityFromString(name)
		if !ok {
			return fmt.Errorf("invalid price granularity preset: %s", name)
		}
		*pg = preset
		return nil
	}

	plain := priceGranularityPlain{}
	if err := json.Unmarshal(b, &plain); err != nil {
		return err
	}
	*pg = PriceGranularity(plain)
	return pg.validate()
}

func (pg *PriceGranularity) validate() error {
	if pg.Precision < 0 {
		return errors.New("price granularity error: precision must be non-negative")
	}
	prevMax := 0.0
	for i := range pg.Ranges {
		r := &pg.Ranges[i]
		if r.Increment <= 0 {
			return errors.New("price granularity error: increment must be a nonzero positive number")
		}
		if r.Max <= prevMax {
			return errors.New("price granularity error: range list must be ordered with increasing max")
		}
		// Ranges are contiguous, so the min is always the previous max.
		r.Min = prevMax
		prevMax = r.Max
	}
	return nil
}

// PriceBucket returns the bucket string for price. The price is floored to the nearest
// increment multiple of the first range whose (exclusive) upper bound exceeds it.
// Prices at or above the top bound clamp to the top bound's bucket, and non-positive
// prices land in the minimum bucket rather than being dropped.
func (pg PriceGranularity) PriceBucket(price float64) string {
	precision := pg.Precision
	if precision == 0 {
		precision = DefaultPrecision
	}
	if len(pg.Ranges) == 0 {
		return ""
	}
	if price <= 0 {
		return strconv.FormatFloat(0, 'f', precision, 64)
	}

	top := pg.Ranges[len(pg.Ranges)-1].Max
	if price >= top {
		return strconv.FormatFloat(top, 'f', precision, 64)
	}

	for _, r := range pg.Ranges {
		if price < r.Max {
			// Round up at the output precision before flooring, so that float
			// artifacts like 3.4/0.1 = 33.999... don't drop a whole increment.
			d := roundUp(price/r.Increment, precision)
			return strconv.FormatFloat(math.Floor(d)*r.Increment, 'f', precision, 64)
		}
	}
	return strconv.FormatFloat(top, 'f', precision, 64)
}

func roundUp(input float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Ceil(pow*input) / pow
}

var (
	priceGranularityLow = PriceGranularity{
		Precision: DefaultPrecision,
		Ranges:    []GranularityRange{{Min: 0, Max: 5, Increment: 0.5}},
	}
	priceGranularityMedium = PriceGranularity{
		Precision: DefaultPrecision,
		Ranges:    []GranularityRange{{Min: 0, Max: 20, Increment: 0.1}},
	}
	priceGranularityHigh = PriceGranularity{
		Precision: DefaultPrecision,
		Ranges:    []GranularityRange{{Min: 0, Max: 20, Increment: 0.01}},
	}
	priceGranularityAuto = PriceGranularity{
		Precision: DefaultPrecision,
		Ranges: []GranularityRange{
			{Min: 0, Max: 5, Increment: 0.05},
			{Min: 5, Max: 10, Increment: 0.1},
			{Min: 10, Max: 20, Increment: 0.5},
		},
	}
	priceGranularityDense = PriceGranularity{
		Precision: DefaultPrecision,
		Ranges: []GranularityRange{
			{Min: 0, Max: 3, Increment: 0.01},
			{Min: 3, Max: 8, Increment: 0.05},
			{Min: 8, Max: 20, Increment: 0.5},
		},
	}
)

// PriceGranularityFromString resolves a named preset. "med" is accepted as an alias
// for "medium" for compatibility with older clients.
func PriceGranularityFromString(name string) (PriceGranularity, bool) {
	switch name {
	case "low":
		return priceGranularityLow, true
	case "medium", "med":
		return priceGranularityMedium, true
	case "high":
		return priceGranularityHigh, true
	case "auto":
		return priceGranularityAuto, true
	case "dense":
		return priceGranularityDense, true
	}
	return PriceGranularity{}, false
}
