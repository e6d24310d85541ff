package request

import "strings"

// NormalizeEffort lowercases and trims a user-provided reasoning effort.
// The second return value is false when reasoning should be omitted
// entirely ("none", "off", blank, and friends).
func NormalizeEffort(effort string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(effort))
	switch v {
	case "", "none", "off", "false", "0", "disable", "disabled":
		return "", false
	}
	return v, true
}

// EffortFor resolves the reasoning effort to submit for a model.
// Only models in the capability table accept a reasoning block; for
// those, an unsupported "xhigh" downgrades to "high" when available,
// and any other unsupported value disables reasoning rather than
// submitting something the API would reject.
func EffortFor(model, effort string) (string, bool) {
	v, enabled := NormalizeEffort(effort)
	if !enabled {
		return "", false
	}
	spec, known := Models[model]
	if !known {
		return "", false
	}
	if spec.supportsEffort(v) {
		return v, true
	}
	if v == "xhigh" && spec.supportsEffort("high") {
		return "high", true
	}
	return "", false
}
