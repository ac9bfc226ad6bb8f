package orchestrator

import (
	"github.com/tidwall/gjson"

	"github.com/randalmurphal/governor/internal/store"
)

// ParsedPlan is the Planner phase's structured output: a list of task
// entries to create as PENDING tasks (spec.md §4.8).
type ParsedPlan struct {
	Tasks []PlanTaskEntry
}

// PlanTaskEntry is one task the Planner proposed.
type PlanTaskEntry struct {
	Title              string
	Description        string
	Priority           int
	AcceptanceCriteria []string
	Dependencies       []string
	GateSpecs          []store.GateSpec
}

// ParsedArchitecture is the Architect phase's structured output: a set
// of options with trade-offs, plus ADR markdown bodies (spec.md §4.8).
type ParsedArchitecture struct {
	Options []ArchitectureOption
	ADRs    []string
}

// ArchitectureOption is one architecture option the Architect proposed.
type ArchitectureOption struct {
	ID         string
	Title      string
	Pros       []string
	Cons       []string
	Tradeoffs  []string
}

// Freeform is engine output that parsed as JSON but matched neither the
// Plan nor Architecture shape, or that carried no JSON at all.
type Freeform struct {
	Text string
}

// ParsedOutput is the tagged union of everything a phase run's engine
// output can resolve to. Exactly one of Plan, Architecture, or Freeform
// is non-nil.
type ParsedOutput struct {
	Plan         *ParsedPlan
	Architecture *ParsedArchitecture
	Freeform     *Freeform
}

// ParsePlan extracts the largest balanced JSON object from raw engine
// output and interprets it as a ParsedPlan. If no JSON object is found,
// or the found object lacks a "tasks" array, ok is false — callers
// treat that as the plan_parse failure spec.md §4.8 names.
func ParsePlan(raw string) (ParsedPlan, bool) {
	block, found := ExtractLargestBalancedJSON(raw)
	if !found {
		return ParsedPlan{}, false
	}
	result := gjson.Parse(block)
	tasksField := result.Get("tasks")
	if !tasksField.Exists() || !tasksField.IsArray() {
		return ParsedPlan{}, false
	}

	var plan ParsedPlan
	for _, t := range tasksField.Array() {
		entry := PlanTaskEntry{
			Title:       t.Get("title").String(),
			Description: t.Get("description").String(),
			Priority:    int(t.Get("priority").Int()),
		}
		for _, ac := range t.Get("acceptance_criteria").Array() {
			entry.AcceptanceCriteria = append(entry.AcceptanceCriteria, ac.String())
		}
		for _, dep := range t.Get("dependencies").Array() {
			entry.Dependencies = append(entry.Dependencies, dep.String())
		}
		for _, g := range t.Get("gates").Array() {
			entry.GateSpecs = append(entry.GateSpecs, store.GateSpec{
				Name:         g.Get("name").String(),
				Command:      g.Get("command").String(),
				PassCriteria: g.Get("pass_criteria").String(),
				Expected:     g.Get("expected").String(),
			})
		}
		plan.Tasks = append(plan.Tasks, entry)
	}
	return plan, true
}

// ParseArchitecture extracts the largest balanced JSON object from raw
// engine output and interprets it as a ParsedArchitecture.
func ParseArchitecture(raw string) (ParsedArchitecture, bool) {
	block, found := ExtractLargestBalancedJSON(raw)
	if !found {
		return ParsedArchitecture{}, false
	}
	result := gjson.Parse(block)
	optionsField := result.Get("options")
	if !optionsField.Exists() || !optionsField.IsArray() {
		return ParsedArchitecture{}, false
	}

	var arch ParsedArchitecture
	for _, o := range optionsField.Array() {
		opt := ArchitectureOption{
			ID:    o.Get("id").String(),
			Title: o.Get("title").String(),
		}
		for _, p := range o.Get("pros").Array() {
			opt.Pros = append(opt.Pros, p.String())
		}
		for _, c := range o.Get("cons").Array() {
			opt.Cons = append(opt.Cons, c.String())
		}
		for _, tr := range o.Get("tradeoffs").Array() {
			opt.Tradeoffs = append(opt.Tradeoffs, tr.String())
		}
		arch.Options = append(arch.Options, opt)
	}
	for _, adr := range result.Get("adrs").Array() {
		arch.ADRs = append(arch.ADRs, adr.String())
	}
	return arch, true
}

// Parse resolves raw engine output into the ParsedOutput tagged union,
// trying Plan, then Architecture, then falling back to Freeform. It
// never panics on malformed input (spec.md §9 design note).
func Parse(raw string) ParsedOutput {
	if plan, ok := ParsePlan(raw); ok {
		return ParsedOutput{Plan: &plan}
	}
	if arch, ok := ParseArchitecture(raw); ok {
		return ParsedOutput{Architecture: &arch}
	}
	return ParsedOutput{Freeform: &Freeform{Text: raw}}
}

// ExtractLargestBalancedJSON scans raw for brace-delimited JSON objects
// and returns the longest one that is both balanced and syntactically
// valid JSON, tolerating leading/trailing chatter around it (spec.md
// §4.8's parsing policy).
func ExtractLargestBalancedJSON(raw string) (string, bool) {
	var best string
	var bestLen int

	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidate := raw[start : i+1]
				if len(candidate) > bestLen && gjson.Valid(candidate) {
					best = candidate
					bestLen = len(candidate)
				}
				start = -1
			}
		}
	}

	return best, bestLen > 0
}
