package options

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/grid-forecaster/forecast/util"
)

// SeasonalityOptions configures the number of seasonality components to fit for.
type SeasonalityOptions struct {
	SeasonalityConfigs []SeasonalityConfig `json:"seasonality_configs"`
}

func (s SeasonalityOptions) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	noCfg := " None"
	if len(s.SeasonalityConfigs) > 0 {
		noCfg = ""
		if _, err := fmt.Fprintf(tbl, "%s%sName\tPeriod\tOrders\t\n", prefix, util.IndentExpand(indent, indentGrowth+1)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%s%sSeasonality:%s\n", prefix, util.IndentExpand(indent, indentGrowth), noCfg); err != nil {
		return err
	}
	for _, seasCfg := range s.SeasonalityConfigs {
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%s\t%d\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			seasCfg.Name, seasCfg.Period, seasCfg.Orders); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

// NewDefaultSeasonalityOptions generates a default seasonality config with daily and weekly
// seasonal components sized for hourly grid data
func NewDefaultSeasonalityOptions() SeasonalityOptions {
	return SeasonalityOptions{
		SeasonalityConfigs: []SeasonalityConfig{
			NewDailySeasonalityConfig(4),
			NewWeeklySeasonalityConfig(3),
		},
	}
}

// removeDuplicates sorts the configs by period and keeps only one valid config per period,
// preferring the one with the most orders.
func (s *SeasonalityOptions) removeDuplicates() {
	cfgs := make([]SeasonalityConfig, len(s.SeasonalityConfigs))
	copy(cfgs, s.SeasonalityConfigs)
	sort.SliceStable(cfgs, func(i, j int) bool {
		if cfgs[i].Period != cfgs[j].Period {
			return cfgs[i].Period < cfgs[j].Period
		}
		return cfgs[i].Orders > cfgs[j].Orders
	})

	valid := make([]SeasonalityConfig, 0, len(cfgs))
	var lastValidPeriod time.Duration
	for _, seasCfg := range cfgs {
		if seasCfg.Period > 0 && seasCfg.Period > lastValidPeriod && seasCfg.Name != "" && seasCfg.Orders > 0 {
			valid = append(valid, seasCfg)
			lastValidPeriod = seasCfg.Period
		}
	}
	s.SeasonalityConfigs = valid
}

// Active returns the seasonality that can be resolved from a series sampled at freq and
// covering span. A period longer than the span cannot be estimated and orders at or above
// the Nyquist limit alias onto lower frequencies, so both are dropped. Orders that repeat
// the frequency of a shorter period are colinear and dropped as well.
func (s SeasonalityOptions) Active(freq, span time.Duration) SeasonalityOptions {
	s.removeDuplicates()

	var active []SeasonalityConfig
	var seen []SeasonalityConfig
	for _, seasCfg := range s.SeasonalityConfigs {
		if seasCfg.Period > span {
			continue
		}
		orders := make([]int, 0, seasCfg.Orders)
		for _, order := range seasCfg.OrderList() {
			if freq > 0 && 2*time.Duration(order)*freq >= seasCfg.Period {
				continue
			}
			if colinear(seen, seasCfg.Period, order) {
				continue
			}
			orders = append(orders, order)
		}
		if len(orders) == 0 {
			continue
		}
		seasCfg.Skip = skipped(seasCfg.Orders, orders)
		active = append(active, seasCfg)
		seen = append(seen, seasCfg)
	}
	return SeasonalityOptions{SeasonalityConfigs: active}
}

// colinear reports whether order/period matches the frequency of an order of a shorter period
func colinear(shorter []SeasonalityConfig, period time.Duration, order int) bool {
	for _, cfg := range shorter {
		if period%cfg.Period != 0 {
			continue
		}
		ratio := int(period / cfg.Period)
		if order%ratio == 0 && order/ratio <= cfg.Orders {
			return true
		}
	}
	return false
}

func skipped(n int, kept []int) []int {
	var skip []int
	k := 0
	for order := 1; order <= n; order++ {
		if k < len(kept) && kept[k] == order {
			k++
			continue
		}
		skip = append(skip, order)
	}
	return skip
}

// SeasonalityConfig represents a single seasonality configuration to model. This will generate
// Fourier series of the specified period and number of orders. E.g. a period of 24*time.Hour
// with 3 orders will create 6 Fourier series of order 1, 2, 3 and for the sine/cosine components
// where order 1 will have a period of 1 day and order 2 will have a period of 12 hours.
type SeasonalityConfig struct {
	Name   string        `json:"name"`
	Orders int           `json:"orders"`
	Period time.Duration `json:"period"`

	// Skip lists orders that are not modeled
	Skip []int `json:"skip,omitempty"`
}

// NewSeasonalityConfig creates a new seasonality config given a name, period and orders
func NewSeasonalityConfig(name string, period time.Duration, orders int) SeasonalityConfig {
	if orders < 0 {
		orders = 0
	}

	return SeasonalityConfig{
		Name:   name,
		Orders: orders,
		Period: period,
	}
}

// NewDailySeasonalityConfig creates a daily seasonality config given a specified number of orders
func NewDailySeasonalityConfig(orders int) SeasonalityConfig {
	return NewSeasonalityConfig(LabelSeasDaily, 24*time.Hour, orders)
}

// NewWeeklySeasonalityConfig creates a weekly seasonality config given a specified number of orders
func NewWeeklySeasonalityConfig(orders int) SeasonalityConfig {
	return NewSeasonalityConfig(LabelSeasWeekly, 7*24*time.Hour, orders)
}

// OrderList returns the modeled orders in ascending order
func (s SeasonalityConfig) OrderList() []int {
	orders := make([]int, 0, s.Orders)
	for order := 1; order <= s.Orders; order++ {
		skip := false
		for _, sk := range s.Skip {
			if sk == order {
				skip = true
				break
			}
		}
		if !skip {
			orders = append(orders, order)
		}
	}
	return orders
}
