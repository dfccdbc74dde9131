package mathsolver

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

var (
	numberPattern     = regexp.MustCompile(`-?\d+(?:,\d{3})*(?:\.\d+)?`)
	assignPattern     = regexp.MustCompile(`\b([a-z])\s*=\s*[$₹€£]?\s*(-?\d+(?:,\d{3})*(?:\.\d+)?)`)
	radiusPattern     = regexp.MustCompile(`radius\s*(?:of|is|=)?\s*(\d+(?:\.\d+)?)`)
	diameterPattern   = regexp.MustCompile(`diameter\s*(?:of|is|=)?\s*(\d+(?:\.\d+)?)`)
	speedValuePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(km/h|kmph|kph|mph|m/s)`)
	timeValuePattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?)\b`)
	distValuePattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(km|kilometers?|kilometres?|miles?|meters?|metres?|m)\b`)
)

type formulaSolver func(q string) (*Result, error)

// word problems are matched by the first keyword that appears
var formulas = []struct {
	keyword string
	solve   formulaSolver
}{
	{"compound interest", compoundInterest},
	{"simple interest", simpleInterest},
	{"interest", simpleInterest},
	{"circle", circle},
	{"radius", circle},
	{"diameter", circle},
	{"rectangle", rectangle},
	{"square", square},
	{"triangle", triangle},
	{"speed", motion},
	{"distance", motion},
	{"velocity", motion},
	{"how long", motion},
	{"how far", motion},
	{"km/h", motion},
	{"mph", motion},
}

func solveWordProblem(query string) (*Result, error) {
	q := strings.ToLower(query)
	for _, f := range formulas {
		if strings.Contains(q, f.keyword) {
			res, err := f.solve(q)
			if err != nil {
				return nil, err
			}
			res.Expression = strings.TrimSpace(query)
			return res, nil
		}
	}
	return nil, fmt.Errorf("%w: no known formula applies", appErr.ErrUnsupported)
}

func parseNumber(s string) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return v
}

func numbers(q string) []float64 {
	var out []float64
	for _, m := range numberPattern.FindAllString(q, -1) {
		out = append(out, parseNumber(m))
	}
	return out
}

func assignments(q string) map[string]float64 {
	out := map[string]float64{}
	for _, m := range assignPattern.FindAllStringSubmatch(q, -1) {
		out[m[1]] = parseNumber(m[2])
	}
	return out
}

// operands picks named values first and falls back to the numbers in
// the order they appear.
func operands(q string, names ...string) ([]float64, error) {
	named := assignments(q)
	nums := numbers(q)
	if len(named) >= len(names) {
		out := make([]float64, 0, len(names))
		for _, n := range names {
			v, ok := named[n]
			if !ok {
				break
			}
			out = append(out, v)
		}
		if len(out) == len(names) {
			return out, nil
		}
	}
	if len(nums) < len(names) {
		return nil, fmt.Errorf("%w: need %d numbers, found %d", appErr.ErrInvalid, len(names), len(nums))
	}
	return nums[:len(names)], nil
}

func simpleInterest(q string) (*Result, error) {
	v, err := operands(q, "p", "r", "t")
	if err != nil {
		return nil, err
	}
	p, r, t := v[0], v[1], v[2]
	return &Result{
		Kind:    KindFormula,
		Formula: "SI = P × R × T / 100",
		Inputs:  []Input{{"P", p}, {"R", r}, {"T", t}},
		Value:   p * r * t / 100,
	}, nil
}

func compoundFrequency(q string) float64 {
	switch {
	case strings.Contains(q, "monthly"):
		return 12
	case strings.Contains(q, "quarterly"):
		return 4
	case strings.Contains(q, "half-yearly"), strings.Contains(q, "half yearly"), strings.Contains(q, "semi-annual"):
		return 2
	case strings.Contains(q, "daily"):
		return 365
	default:
		return 1
	}
}

func compoundInterest(q string) (*Result, error) {
	v, err := operands(q, "p", "r", "t")
	if err != nil {
		return nil, err
	}
	p, r, t := v[0], v[1], v[2]
	n := compoundFrequency(q)
	amount := p * math.Pow(1+r/(100*n), n*t)
	return &Result{
		Kind:    KindFormula,
		Formula: "CI = P × (1 + R/(100n))^(nT) - P",
		Inputs:  []Input{{"P", p}, {"R", r}, {"T", t}, {"n", n}},
		Value:   amount - p,
	}, nil
}

func circle(q string) (*Result, error) {
	var r float64
	if m := radiusPattern.FindStringSubmatch(q); m != nil {
		r = parseNumber(m[1])
	} else if m := diameterPattern.FindStringSubmatch(q); m != nil {
		r = parseNumber(m[1]) / 2
	} else if nums := numbers(q); len(nums) > 0 {
		r = nums[0]
	} else {
		return nil, fmt.Errorf("%w: circle needs a radius", appErr.ErrInvalid)
	}
	if strings.Contains(q, "circumference") || strings.Contains(q, "perimeter") {
		return &Result{Kind: KindFormula, Formula: "C = 2πr", Inputs: []Input{{"r", r}}, Value: 2 * math.Pi * r}, nil
	}
	return &Result{Kind: KindFormula, Formula: "A = πr²", Inputs: []Input{{"r", r}}, Value: math.Pi * r * r}, nil
}

func rectangle(q string) (*Result, error) {
	v, err := operands(q, "l", "w")
	if err != nil {
		return nil, err
	}
	l, w := v[0], v[1]
	if strings.Contains(q, "perimeter") {
		return &Result{Kind: KindFormula, Formula: "P = 2(l + w)", Inputs: []Input{{"l", l}, {"w", w}}, Value: 2 * (l + w)}, nil
	}
	return &Result{Kind: KindFormula, Formula: "A = l × w", Inputs: []Input{{"l", l}, {"w", w}}, Value: l * w}, nil
}

func square(q string) (*Result, error) {
	if strings.Contains(q, "root") {
		return nil, fmt.Errorf("%w: square root is an expression", appErr.ErrUnsupported)
	}
	v, err := operands(q, "s")
	if err != nil {
		return nil, err
	}
	s := v[0]
	if strings.Contains(q, "perimeter") {
		return &Result{Kind: KindFormula, Formula: "P = 4s", Inputs: []Input{{"s", s}}, Value: 4 * s}, nil
	}
	return &Result{Kind: KindFormula, Formula: "A = s²", Inputs: []Input{{"s", s}}, Value: s * s}, nil
}

func triangle(q string) (*Result, error) {
	v, err := operands(q, "b", "h")
	if err != nil {
		return nil, err
	}
	return &Result{
		Kind:    KindFormula,
		Formula: "A = ½ × b × h",
		Inputs:  []Input{{"b", v[0]}, {"h", v[1]}},
		Value:   v[0] * v[1] / 2,
	}, nil
}

// motion solves speed = distance / time for whichever quantity is
// missing. Speed is matched before distance so "60 km/h" is not read
// as a distance of 60 km.
func motion(q string) (*Result, error) {
	rest := q
	var speed, dist, hours float64
	var haveSpeed, haveDist, haveTime bool
	if m := speedValuePattern.FindStringSubmatch(rest); m != nil {
		speed, haveSpeed = parseNumber(m[1]), true
		rest = strings.Replace(rest, m[0], " ", 1)
	}
	if m := timeValuePattern.FindStringSubmatch(rest); m != nil {
		hours, haveTime = parseNumber(m[1]), true
		if strings.HasPrefix(m[2], "min") {
			hours /= 60
		}
		rest = strings.Replace(rest, m[0], " ", 1)
	}
	if m := distValuePattern.FindStringSubmatch(rest); m != nil {
		dist, haveDist = parseNumber(m[1]), true
	}
	switch {
	case haveDist && haveTime && !haveSpeed:
		if hours == 0 {
			return nil, fmt.Errorf("%w: time must be positive", appErr.ErrInvalid)
		}
		return &Result{Kind: KindFormula, Formula: "speed = distance / time", Inputs: []Input{{"distance", dist}, {"time (h)", hours}}, Value: dist / hours}, nil
	case haveSpeed && haveTime && !haveDist:
		return &Result{Kind: KindFormula, Formula: "distance = speed × time", Inputs: []Input{{"speed", speed}, {"time (h)", hours}}, Value: speed * hours}, nil
	case haveSpeed && haveDist && !haveTime:
		if speed == 0 {
			return nil, fmt.Errorf("%w: speed must be positive", appErr.ErrInvalid)
		}
		return &Result{Kind: KindFormula, Formula: "time = distance / speed", Inputs: []Input{{"distance", dist}, {"speed", speed}}, Value: dist / speed}, nil
	}
	return nil, fmt.Errorf("%w: need exactly two of speed, distance and time", appErr.ErrInvalid)
}
