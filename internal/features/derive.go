// Package features fills player-data keys that callers commonly leave out,
// using small expressions over the request context.
package features

import (
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mind-engage/mindengage-motivation/internal/inference"
)

// DurationRule copies the session duration into the feature map, for
// callers that only send it as request context. Operators opt in through
// DERIVED_FEATURES; nothing is derived by default.
const DurationRule = "duration_minutes=duration_minutes"

type rule struct {
	name    string
	source  string
	program *vm.Program
}

// Deriver evaluates rules of the form name=expression. A rule only fills
// name when the request's player data does not already carry it.
type Deriver struct {
	rules []rule
}

// Parse compiles ';'-separated rules. An empty string yields a Deriver that
// changes nothing.
func Parse(spec string) (*Deriver, error) {
	d := &Deriver{}
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, src, ok := strings.Cut(part, "=")
		name, src = strings.TrimSpace(name), strings.TrimSpace(src)
		if !ok || !validName(name) || src == "" {
			return nil, fmt.Errorf("features: rule %q: want name=expression", part)
		}
		prog, err := expr.Compile(src, expr.AsFloat64())
		if err != nil {
			return nil, fmt.Errorf("features: rule %q: %w", name, err)
		}
		d.rules = append(d.rules, rule{name: name, source: src, program: prog})
	}
	return d, nil
}

// Names lists the features the deriver can fill, in evaluation order.
func (d *Deriver) Names() []string {
	out := make([]string, len(d.rules))
	for i, r := range d.rules {
		out[i] = r.name
	}
	return out
}

// Apply returns a copy of req whose player data includes derived values.
// Rules see the request context as game_mode, difficulty and
// duration_minutes, every player-data key, and values derived before them.
func (d *Deriver) Apply(req inference.Request) (inference.Request, error) {
	data := make(map[string]float64, len(req.PlayerData)+len(d.rules))
	for k, v := range req.PlayerData {
		data[k] = v
	}
	out := req
	out.PlayerData = data
	if len(d.rules) == 0 {
		return out, nil
	}

	env := map[string]any{
		"game_mode":        req.GameMode,
		"difficulty":       req.Difficulty,
		"duration_minutes": req.DurationMinutes,
	}
	for k, v := range data {
		env[k] = v
	}
	for _, r := range d.rules {
		if _, ok := data[r.name]; ok {
			continue
		}
		v, err := expr.Run(r.program, env)
		if err != nil {
			return inference.Request{}, fmt.Errorf("features: derive %q: %w", r.name, err)
		}
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return inference.Request{}, fmt.Errorf("features: derive %q: %q gave %v", r.name, r.source, v)
		}
		data[r.name] = f
		env[r.name] = f
	}
	return out, nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
