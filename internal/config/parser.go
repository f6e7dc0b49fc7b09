package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/halvard/keyremap/internal/engine"
	"github.com/halvard/keyremap/internal/keycode"
)

// LineError reports a single rejected line: its 1-based line number, the
// trimmed text that was parsed, and the reason it failed.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Text, e.Err)
}

const nothingToken = "nothing"
const maxWaitMs = 1000

// ParseMapping translates a mapping profile into calls against r. Each line
// is parsed independently; a malformed line is collected as a LineError and
// parsing continues. The returned bool is the aggregate success: true only
// if every line parsed cleanly.
func ParseMapping(lines []string, r *engine.Remapper) (bool, []LineError) {
	success := true
	knownLayers := make(map[string]bool)
	var errs []LineError

	for i, raw := range lines {
		lineNum := i + 1
		if err := parseLine(r, knownLayers, raw); err != nil {
			errs = append(errs, LineError{Line: lineNum, Text: strings.TrimSpace(raw), Err: err})
			success = false
		}
	}
	return success, errs
}

func removeComment(line string) string {
	for _, marker := range []string{"//", "#"} {
		if pos := strings.Index(line, marker); pos >= 0 {
			line = line[:pos]
		}
	}
	return line
}

func parseLine(r *engine.Remapper, knownLayers map[string]bool, original string) error {
	line := strings.TrimSpace(removeComment(original))
	if line == "" {
		return nil
	}

	parts := strings.Split(line, "=")
	if len(parts) != 2 {
		return fmt.Errorf("not of the form A = B")
	}
	keyCombo := strings.TrimSpace(parts[0])
	action := strings.TrimSpace(parts[1])

	keys := strings.Split(keyCombo, "+")
	switch len(keys) {
	case 1:
		return parseAssignment(r, knownLayers, engine.BaseLayer, strings.TrimSpace(keys[0]), action)
	case 2:
		return parseLayerAssignment(r, knownLayers, strings.TrimSpace(keys[0]), strings.TrimSpace(keys[1]), action)
	default:
		return fmt.Errorf("cannot have more than one '+'")
	}
}

// splitKeyPrefix splits a token like "^A", "~A", or "A" into its prefix byte
// (0 if none) and resolved keycode.
func splitKeyPrefix(name string) (byte, keycode.Code, bool) {
	if name == "" {
		return 0, 0, false
	}
	var prefix byte
	if name[0] == '^' || name[0] == '~' {
		prefix = name[0]
		name = name[1:]
	}
	if name == "" {
		return 0, 0, false
	}
	full := name
	if !strings.HasPrefix(name, "KEY_") {
		full = "KEY_" + name
	}
	code, ok := keycode.NameToCode(full)
	return prefix, code, ok
}

func layerNameFromKey(code keycode.Code) string {
	return keycode.CodeToName(code) + "_layer"
}

func assignmentToActions(tokens []string) ([]engine.Action, error) {
	actions := []engine.Action{}
	for _, token := range tokens {
		if token == nothingToken || token == "^"+nothingToken || token == "~"+nothingToken {
			continue
		}
		if strings.HasSuffix(token, "ms") {
			ms, err := strconv.Atoi(strings.TrimSuffix(token, "ms"))
			if err != nil {
				return nil, fmt.Errorf("invalid wait token %q", token)
			}
			if ms <= 0 || ms > maxWaitMs {
				return nil, fmt.Errorf("out of range wait time %dms", ms)
			}
			actions = append(actions, engine.Wait(ms))
			continue
		}
		prefix, code, ok := splitKeyPrefix(token)
		if !ok {
			return nil, fmt.Errorf("invalid keycode in token %q", token)
		}
		if prefix == 0 || prefix == '^' {
			actions = append(actions, engine.EmitKey(code, engine.Press))
		}
		if prefix == 0 || prefix == '~' {
			actions = append(actions, engine.EmitKey(code, engine.Release))
		}
	}
	return actions, nil
}

// parseAssignment handles a plain "key_expr = action_expr" line (rule 1),
// on whatever layer it's called for — the base layer directly, or a
// just-registered layer when recursing from parseLayerAssignment.
func parseAssignment(r *engine.Remapper, knownLayers map[string]bool, layerName, keyStr, assignment string) error {
	leftPrefix, leftKey, ok := splitKeyPrefix(keyStr)
	if !ok {
		return fmt.Errorf("unknown key %q", keyStr)
	}
	if layerName == engine.BaseLayer && knownLayers[layerNameFromKey(leftKey)] {
		return fmt.Errorf("key assignments like KEY = ... must precede layer assignments KEY + OTHER_KEY = ...")
	}

	tokens := strings.Split(assignment, " ")
	if len(tokens) == 1 && tokens[0] == "*" {
		tokens[0] = keyStr
	}

	if leftPrefix == 0 {
		n := len(tokens)
		last := tokens[n-1]
		if len(last) > 0 && (last[0] == '^' || last[0] == '~') {
			return fmt.Errorf("if left does not have a prefix (^ or ~), the last token of assignment must not have either")
		}
		tokens[n-1] = "^" + last

		pressActions, err := assignmentToActions(tokens)
		if err != nil {
			return err
		}
		r.AddMapping(layerName, engine.Trigger{Code: leftKey, Kind: engine.Press}, pressActions)

		releaseActions, err := assignmentToActions([]string{"~" + last})
		if err != nil {
			return err
		}
		r.AddMapping(layerName, engine.Trigger{Code: leftKey, Kind: engine.Release}, releaseActions)
		return nil
	}

	actions, err := assignmentToActions(tokens)
	if err != nil {
		return err
	}
	kind := engine.Press
	if leftPrefix == '~' {
		kind = engine.Release
	}
	r.AddMapping(layerName, engine.Trigger{Code: leftKey, Kind: kind}, actions)
	return nil
}

// parseLayerAssignment handles a "layer_key + key = action_expr" line (rule
// 2): registering the layer on first sight, then recursing into rule 1 with
// the layer as target and the second key as the new left-hand side.
func parseLayerAssignment(r *engine.Remapper, knownLayers map[string]bool, layerKeyStr, keyStr, assignment string) error {
	layerPrefix, layerKey, ok := splitKeyPrefix(layerKeyStr)
	if layerPrefix != 0 {
		return fmt.Errorf("prefix (^ or ~) for layer keys is not supported yet")
	}
	if !ok {
		return fmt.Errorf("could not parse layer key %q", layerKeyStr)
	}
	layerName := layerNameFromKey(layerKey)

	if !knownLayers[layerName] {
		r.AddMapping(engine.BaseLayer, engine.Trigger{Code: layerKey, Kind: engine.Press}, []engine.Action{r.ActivateLayer(layerName)})
		r.SetAllowOtherKeys(layerName, false)
		knownLayers[layerName] = true
	}

	if keyStr == "*" {
		if assignment != "*" {
			return fmt.Errorf("must be a * on the right side for KEY + * = *")
		}
		r.SetAllowOtherKeys(layerName, true)
		return nil
	}

	if keyStr == nothingToken {
		tokens := strings.Split(assignment, " ")
		actions, err := assignmentToActions(tokens)
		if err != nil {
			return err
		}
		r.SetNullEventActions(layerName, actions)
		return nil
	}

	return parseAssignment(r, knownLayers, layerName, keyStr, assignment)
}
