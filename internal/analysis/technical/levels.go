package technical

import (
	"math"
	"sort"
	"time"

	"github.com/Alias1177/LeverageAdvisor/models"
)

// LevelOptions tunes swing detection and clustering
type LevelOptions struct {
	SwingWindow  int     // bars on each side a swing must exceed
	Tolerance    float64 // relative width of one price cluster
	MaxTouches   int     // touch count that maps to strength 1.0
	MaxLevels    int     // levels kept per side
	RecentCloses int     // trailing closes that count as extra touches
}

// DefaultLevelOptions returns the options used by the CLI
func DefaultLevelOptions() LevelOptions {
	return LevelOptions{
		SwingWindow:  2,
		Tolerance:    0.003,
		MaxTouches:   5,
		MaxLevels:    5,
		RecentCloses: 10,
	}
}

func (o LevelOptions) withDefaults() LevelOptions {
	d := DefaultLevelOptions()
	if o.SwingWindow < 1 {
		o.SwingWindow = d.SwingWindow
	}
	if !(o.Tolerance > 0) {
		o.Tolerance = d.Tolerance
	}
	if o.MaxTouches < 1 {
		o.MaxTouches = d.MaxTouches
	}
	if o.MaxLevels < 1 {
		o.MaxLevels = d.MaxLevels
	}
	if o.RecentCloses < 0 {
		o.RecentCloses = 0
	}
	return o
}

type swingPoint struct {
	price  float64
	at     time.Time
	volume float64
}

type cluster struct {
	sum     float64
	swings  int
	touches int
	first   time.Time
	last    time.Time
	volume  float64
}

func (c *cluster) price() float64 { return c.sum / float64(c.swings) }

func (c *cluster) touch(p swingPoint) {
	if c.swings == 0 || p.at.Before(c.first) {
		c.first = p.at
	}
	if c.swings == 0 || p.at.After(c.last) {
		c.last = p.at
	}
	c.sum += p.price
	c.swings++
	c.touches++
	c.volume += p.volume
}

// DetectLevels finds swing lows and highs, clusters them by relative price
// tolerance and splits the clusters around currentPrice. Supports come back
// nearest-first below the price, resistances nearest-first above it. A
// non-positive currentPrice means the last close.
func DetectLevels(candles []models.Candle, currentPrice float64, opts LevelOptions) (supports, resistances []models.SupportResistanceLevel) {
	opts = opts.withDefaults()
	w := opts.SwingWindow
	if len(candles) < 2*w+1 {
		return nil, nil
	}
	if !(currentPrice > 0) {
		currentPrice = candles[len(candles)-1].Close
	}

	var points []swingPoint
	for i := w; i < len(candles)-w; i++ {
		if isSwingLow(candles, i, w) {
			points = append(points, swingPoint{candles[i].Low, candles[i].Timestamp, candles[i].Volume})
		}
		if isSwingHigh(candles, i, w) {
			points = append(points, swingPoint{candles[i].High, candles[i].Timestamp, candles[i].Volume})
		}
	}
	if len(points) == 0 {
		return nil, nil
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].price != points[j].price {
			return points[i].price < points[j].price
		}
		return points[i].at.Before(points[j].at)
	})

	var clusters []*cluster
	for _, p := range points {
		if n := len(clusters); n > 0 {
			c := clusters[n-1]
			if math.Abs(p.price-c.price()) <= opts.Tolerance*c.price() {
				c.touch(p)
				continue
			}
		}
		c := &cluster{}
		c.touch(p)
		clusters = append(clusters, c)
	}

	// closes hugging a level count as retests
	if opts.RecentCloses > 0 {
		start := len(candles) - opts.RecentCloses
		if start < 0 {
			start = 0
		}
		for _, c := range clusters {
			lvl := c.price()
			for _, bar := range candles[start:] {
				if math.Abs(bar.Close-lvl) <= opts.Tolerance*lvl {
					c.touches++
					if bar.Timestamp.After(c.last) {
						c.last = bar.Timestamp
					}
				}
			}
		}
	}

	for _, c := range clusters {
		price := c.price()
		level := models.SupportResistanceLevel{
			Price:               price,
			Strength:            math.Min(1, float64(c.touches)/float64(opts.MaxTouches)),
			TouchCount:          c.touches,
			FirstTouch:          c.first,
			LastTouch:           c.last,
			VolumeAtLevel:       c.volume,
			DistanceFromCurrent: math.Abs(price-currentPrice) / currentPrice * 100,
		}
		switch {
		case price < currentPrice:
			level.LevelType = models.LevelSupport
			supports = append(supports, level)
		case price > currentPrice:
			level.LevelType = models.LevelResistance
			resistances = append(resistances, level)
		}
	}

	sort.SliceStable(supports, func(i, j int) bool { return supports[i].Price > supports[j].Price })
	sort.SliceStable(resistances, func(i, j int) bool { return resistances[i].Price < resistances[j].Price })
	if len(supports) > opts.MaxLevels {
		supports = supports[:opts.MaxLevels]
	}
	if len(resistances) > opts.MaxLevels {
		resistances = resistances[:opts.MaxLevels]
	}
	return supports, resistances
}

func isSwingLow(candles []models.Candle, i, w int) bool {
	for k := 1; k <= w; k++ {
		if candles[i].Low >= candles[i-k].Low || candles[i].Low >= candles[i+k].Low {
			return false
		}
	}
	return true
}

func isSwingHigh(candles []models.Candle, i, w int) bool {
	for k := 1; k <= w; k++ {
		if candles[i].High <= candles[i-k].High || candles[i].High <= candles[i+k].High {
			return false
		}
	}
	return true
}
