package options

import (
	"fmt"
	"io"
	"strings"

	"github.com/aouyang1/grid-forecaster/forecast/util"
)

// TablePrint writes a human readable summary of the options
func (o *Options) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	if o == nil {
		return nil
	}
	growth := o.GrowthType
	if growth == "" {
		growth = "none"
	}
	if _, err := fmt.Fprintf(w, "%s%sGrowth: %s    Regularization: %.2g\n",
		prefix, util.IndentExpand(indent, indentGrowth), growth, o.Regularization); err != nil {
		return err
	}
	if err := o.SeasonalityOptions.TablePrint(w, prefix, indent, indentGrowth); err != nil {
		return err
	}
	if err := o.ChangepointOptions.TablePrint(w, prefix, indent, indentGrowth); err != nil {
		return err
	}
	if err := o.EventOptions.TablePrint(w, prefix, indent, indentGrowth); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sHolidays: %t    Weekends: %t\n",
		prefix, util.IndentExpand(indent, indentGrowth), o.HolidayOptions.Enabled, o.WeekendOptions.Enabled); err != nil {
		return err
	}
	regs := "None"
	if len(o.Regressors) > 0 {
		regs = strings.Join(o.Regressors, ", ")
	}
	_, err := fmt.Fprintf(w, "%s%sRegressors: %s\n", prefix, util.IndentExpand(indent, indentGrowth), regs)
	return err
}
