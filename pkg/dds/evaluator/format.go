package evaluator

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ddsurveys/dds-backend/pkg/dds/catalog"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

const DATE_FORMAT = "2006-01-02"

// format renders an extracted value as embedded data text for the category's type.
// Scale values are rounded to the nearest integer, half away from zero, unless the category
// is fractional.
func format(v any, cat catalog.Category) (string, error) {
	mismatch := func() (string, error) {
		return "", ddsTypes.NewConfigurationError(fmt.Sprintf("category %s: %T is not a %s value", cat.Name, v, cat.VariableType), nil)
	}

	switch cat.VariableType {
	case ddsTypes.VARIABLE_TYPE_SCALE:
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return mismatch()
		}
		if cat.Fractional {
			scale := math.Pow(10, float64(cat.Precision))
			return strconv.FormatFloat(math.Round(f*scale)/scale, 'f', cat.Precision, 64), nil
		}
		return strconv.FormatInt(int64(math.Round(f)), 10), nil
	case ddsTypes.VARIABLE_TYPE_DATE:
		switch d := v.(type) {
		case time.Time:
			return d.UTC().Format(DATE_FORMAT), nil
		case ddsTypes.Date:
			return d.String(), nil
		}
		return mismatch()
	case ddsTypes.VARIABLE_TYPE_STRING:
		s, ok := v.(string)
		if !ok {
			return mismatch()
		}
		return s, nil
	}
	return mismatch()
}
