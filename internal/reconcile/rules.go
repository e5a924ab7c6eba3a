package reconcile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule maps products whose text contains any keyword to a target category.
// Keywords are lower-case substrings.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Target   string   `yaml:"target"`
}

// RuleSet is an ordered rule table with the names of its target categories
type RuleSet struct {
	Rules   []Rule            `yaml:"rules"`
	Targets map[string]string `yaml:"targets"`
}

// DefaultRuleSet returns the built-in rule table
func DefaultRuleSet() RuleSet {
	return RuleSet{Rules: DefaultRules, Targets: DefaultTargets}
}

// LoadRules reads a rule table from a YAML file. Keywords are lower-cased;
// a target without a name in targets is named after its slug.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to read rules: %w", err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	if len(rs.Rules) == 0 {
		return RuleSet{}, fmt.Errorf("rules file %s defines no rules", path)
	}
	if rs.Targets == nil {
		rs.Targets = make(map[string]string)
	}

	for i, r := range rs.Rules {
		if r.Target == "" || len(r.Keywords) == 0 {
			return RuleSet{}, fmt.Errorf("rule %d (%s) needs a target and keywords", i, r.Name)
		}
		if r.Name == "" {
			rs.Rules[i].Name = r.Target
		}
		for j, kw := range r.Keywords {
			rs.Rules[i].Keywords[j] = strings.ToLower(kw)
		}
		if _, ok := rs.Targets[r.Target]; !ok {
			rs.Targets[r.Target] = r.Target
		}
	}
	return rs, nil
}

// Match reports whether the lower-cased text contains one of the keywords
func (r Rule) Match(text string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// DefaultRules is the classification table, highest priority first. Stone
// types come before fixtures so "marble sink" stays marble.
var DefaultRules = []Rule{
	{Name: "marble", Target: "marble", Keywords: []string{"marble", "marmer"}},
	{Name: "travertine", Target: "travertine", Keywords: []string{"travertine", "travertin"}},
	{Name: "granite", Target: "granite", Keywords: []string{"granite", "graniet"}},
	{Name: "onyx", Target: "onyx", Keywords: []string{"onyx"}},
	{Name: "quartzite", Target: "quartzite", Keywords: []string{"quartzite", "kwartsiet", "afyon"}},
	{Name: "sinks", Target: "sinks", Keywords: []string{"wasbak", "wastafel", "sink", "gootsteen", "hammam", "badkuip", "douchebak"}},
	{Name: "tiles", Target: "tiles", Keywords: []string{"tegel", "tile", "vloer", "wand", "metro", "mosaïek", "houtlook"}},
	{Name: "tools", Target: "tools", Keywords: []string{
		"bouwemmer", "lijm", "profiel", "titan", "schonox", "kalekim",
		"voegmiddel", "siliconen", "primer", "kitpistool", "spatel", "troffel",
		"kruisjes", "waterpas", "snijder", "boormachine", "reiniger", "afdichting",
	}},
}

// DefaultTargets names the categories the default rules point at
var DefaultTargets = map[string]string{
	"marble":     "Marmer",
	"travertine": "Travertin",
	"granite":    "Graniet",
	"onyx":       "Onyx",
	"quartzite":  "Kwartsiet",
	"sinks":      "Wastafels & Baden",
	"tiles":      "Tegels",
	"tools":      "Gereedschap & Toebehoren",
}

// ClassifyText lower-cases name and description the way rules expect
func ClassifyText(name, description string) string {
	return strings.ToLower(name + " " + description)
}

// Classify returns the first rule matching the product, if any
func Classify(rules []Rule, name, description string) (Rule, bool) {
	text := ClassifyText(name, description)
	for _, r := range rules {
		if r.Match(text) {
			return r, true
		}
	}
	return Rule{}, false
}
