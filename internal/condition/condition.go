// Package condition parses and evaluates the textual strategy conditions
// used for entry/exit decisions (e.g. "RSI < 30", "MACD_crossover",
// "Price > Bollinger_Upper"). Each supported condition becomes a tagged
// variant; anything unparseable becomes KindUnsupported, which always
// evaluates to false — a malformed string must never abort a signal loop.
package condition

import (
	"strconv"
	"strings"
)

// Kind tags the condition variant.
type Kind int

const (
	KindUnsupported Kind = iota

	KindRSIThreshold  // RSI <op> threshold
	KindRSIOversold   // RSI <= configured oversold level
	KindRSIOverbought // RSI >= configured overbought level

	KindPriceThreshold  // Price <op> threshold
	KindMACompare       // MA(P1) <op> MA(P2)
	KindPriceMACompare  // Price <op> MA(P1)
	KindMACrossover     // MA(P1) crosses above MA(P2) on this bar
	KindMACrossunder    // MA(P1) crosses below MA(P2) on this bar
	KindMACDThreshold   // MACD line <op> threshold
	KindMACDCrossover   // MACD line crosses above signal
	KindMACDCrossunder  // MACD line crosses below signal
	KindMACDPositive    // MACD line > 0
	KindMACDNegative    // MACD line < 0
	KindPriceAboveUpper // Price > upper Bollinger band
	KindPriceBelowLower // Price < lower Bollinger band
	KindBollingerOut    // Price outside either band
	KindATRThreshold    // ATR <op> threshold
	KindVolumeAboveAvg  // Volume > Mult × rolling average volume
	KindPriceNearHigh   // Price within Mult percent of recent high
	KindPriceNearLow    // Price within Mult percent of recent low
	KindMomentum        // percent change over P1 bars <op> threshold
)

// Op is a comparison operator in a threshold-style condition.
type Op int

const (
	OpLT Op = iota
	OpGT
	OpLE
	OpGE
)

// compare applies the operator.
func (o Op) compare(a, b float64) bool {
	switch o {
	case OpLT:
		return a < b
	case OpGT:
		return a > b
	case OpLE:
		return a <= b
	case OpGE:
		return a >= b
	}
	return false
}

// Condition is one parsed strategy condition.
type Condition struct {
	Kind      Kind
	Op        Op
	Threshold float64
	P1, P2    int     // periods (MA fast/slow, momentum look-back)
	Exp       bool    // moving averages are exponential
	Mult      float64 // volume multiplier / proximity percent
	Raw       string  // original string, kept for warnings
}

// Parse turns a raw condition string into a tagged Condition. It never
// fails: unsupported input yields Kind == KindUnsupported.
func Parse(raw string) Condition {
	c := Condition{Kind: KindUnsupported, Raw: raw}

	fields := strings.Fields(raw)
	switch len(fields) {
	case 1:
		return parseKeyword(c, fields[0])
	case 3:
		return parseComparison(c, fields[0], fields[1], fields[2])
	}
	return c
}

// parseKeyword handles single-token conditions like "MACD_crossover" or
// "MA_crossover(9,21)".
func parseKeyword(c Condition, tok string) Condition {
	name, args, ok := splitTerm(tok)
	if !ok {
		return c
	}

	switch name {
	case "RSI_OVERSOLD":
		c.Kind = KindRSIOversold
	case "RSI_OVERBOUGHT":
		c.Kind = KindRSIOverbought
	case "MACD_CROSSOVER":
		c.Kind = KindMACDCrossover
	case "MACD_CROSSUNDER":
		c.Kind = KindMACDCrossunder
	case "MACD_POSITIVE":
		c.Kind = KindMACDPositive
	case "MACD_NEGATIVE":
		c.Kind = KindMACDNegative
	case "BOLLINGER_OUTSIDE":
		c.Kind = KindBollingerOut
	case "MA_CROSSOVER", "EMA_CROSSOVER":
		if len(args) != 2 || args[0] <= 0 || args[1] <= 0 {
			return c
		}
		c.Kind = KindMACrossover
		c.P1, c.P2 = int(args[0]), int(args[1])
		c.Exp = name == "EMA_CROSSOVER"
	case "MA_CROSSUNDER", "EMA_CROSSUNDER":
		if len(args) != 2 || args[0] <= 0 || args[1] <= 0 {
			return c
		}
		c.Kind = KindMACrossunder
		c.P1, c.P2 = int(args[0]), int(args[1])
		c.Exp = name == "EMA_CROSSUNDER"
	case "PRICE_NEAR_HIGH":
		c.Kind = KindPriceNearHigh
		c.Mult = optArg(args, 1.0)
	case "PRICE_NEAR_LOW":
		c.Kind = KindPriceNearLow
		c.Mult = optArg(args, 1.0)
	case "VOLUME_ABOVE_AVG":
		c.Kind = KindVolumeAboveAvg
		c.Mult = optArg(args, 1.0)
	default:
		return c
	}

	// Keywords other than the ones reading args above take none.
	switch c.Kind {
	case KindMACrossover, KindMACrossunder, KindPriceNearHigh, KindPriceNearLow, KindVolumeAboveAvg:
	default:
		if len(args) != 0 {
			return Condition{Kind: KindUnsupported, Raw: c.Raw}
		}
	}
	return c
}

// parseComparison handles "<term> <op> <term>" conditions.
func parseComparison(c Condition, lhs, opTok, rhs string) Condition {
	op, ok := parseOp(opTok)
	if !ok {
		return c
	}
	c.Op = op

	lname, largs, ok := splitTerm(lhs)
	if !ok {
		return c
	}

	// Numeric right-hand side.
	if num, err := strconv.ParseFloat(rhs, 64); err == nil {
		c.Threshold = num
		switch lname {
		case "RSI":
			c.Kind = KindRSIThreshold
		case "ATR":
			c.Kind = KindATRThreshold
		case "PRICE":
			c.Kind = KindPriceThreshold
		case "MACD":
			c.Kind = KindMACDThreshold
		case "MOMENTUM":
			if len(largs) != 1 || largs[0] <= 0 {
				return Condition{Kind: KindUnsupported, Raw: c.Raw}
			}
			c.Kind = KindMomentum
			c.P1 = int(largs[0])
		default:
			return Condition{Kind: KindUnsupported, Raw: c.Raw}
		}
		return c
	}

	// Symbolic right-hand side.
	rname, rargs, ok := splitTerm(rhs)
	if !ok {
		return c
	}

	switch {
	case lname == "PRICE" && rname == "BOLLINGER_UPPER":
		if op != OpGT && op != OpGE {
			return c
		}
		c.Kind = KindPriceAboveUpper

	case lname == "PRICE" && rname == "BOLLINGER_LOWER":
		if op != OpLT && op != OpLE {
			return c
		}
		c.Kind = KindPriceBelowLower

	case lname == "PRICE" && isMA(rname):
		if len(rargs) != 1 || rargs[0] <= 0 {
			return c
		}
		c.Kind = KindPriceMACompare
		c.P1 = int(rargs[0])
		c.Exp = rname == "EMA"

	case isMA(lname) && isMA(rname):
		if len(largs) != 1 || len(rargs) != 1 || largs[0] <= 0 || rargs[0] <= 0 {
			return c
		}
		c.Kind = KindMACompare
		c.P1, c.P2 = int(largs[0]), int(rargs[0])
		c.Exp = lname == "EMA" || rname == "EMA"

	case lname == "VOLUME" && rname == "VOLUME_AVG":
		if op != OpGT && op != OpGE {
			return c
		}
		c.Kind = KindVolumeAboveAvg
		c.Mult = 1.0
	}
	return c
}

func isMA(name string) bool {
	return name == "MA" || name == "SMA" || name == "EMA"
}

func parseOp(tok string) (Op, bool) {
	switch tok {
	case "<":
		return OpLT, true
	case ">":
		return OpGT, true
	case "<=":
		return OpLE, true
	case ">=":
		return OpGE, true
	}
	return 0, false
}

// splitTerm splits "NAME(a,b)" into an upper-cased name and numeric args.
// A bare "NAME" yields no args. Malformed parentheses or args fail.
func splitTerm(tok string) (string, []float64, bool) {
	open := strings.IndexByte(tok, '(')
	if open == -1 {
		return strings.ToUpper(tok), nil, true
	}
	if !strings.HasSuffix(tok, ")") {
		return "", nil, false
	}
	name := strings.ToUpper(tok[:open])
	inner := tok[open+1 : len(tok)-1]
	if inner == "" {
		return name, nil, true
	}

	parts := strings.Split(inner, ",")
	args := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, false
		}
		args = append(args, v)
	}
	return name, args, true
}

func optArg(args []float64, fallback float64) float64 {
	if len(args) >= 1 && args[0] > 0 {
		return args[0]
	}
	return fallback
}
