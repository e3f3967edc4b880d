package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StateSelector locates the script element carrying the page's embedded state.
const StateSelector = "script#app-root-state"

// State is the decoded embedded state. Its top-level keys are synthetic and
// unstable, so it is searched rather than indexed, in document order.
type State struct {
	keys    []string
	entries map[string]any
}

// Len reports the number of top-level entries.
func (s State) Len() int { return len(s.keys) }

var errNotObject = errors.New("embedded state is not a json object")

// transferStateUnescaper reverses the entity escaping some server-side renderers
// apply to inlined JSON.
var transferStateUnescaper = strings.NewReplacer(
	"&q;", `"`,
	"&s;", "'",
	"&l;", "<",
	"&g;", ">",
	"&a;", "&",
)

// ExtractState parses html and decodes the embedded state script as JSON.
func ExtractState(html []byte) (State, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return State{}, &ParseError{Reason: "invalid html", Err: err}
	}

	sel := doc.Find(StateSelector).First()
	if sel.Length() == 0 {
		return State{}, &ParseError{Reason: "embedded state element not found"}
	}

	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return State{}, &ParseError{Reason: "embedded state element is empty"}
	}

	state, err := decodeState(text)
	if err != nil && !errors.Is(err, errNotObject) && strings.Contains(text, "&q;") {
		state, err = decodeState(transferStateUnescaper.Replace(text))
	}
	if errors.Is(err, errNotObject) {
		return State{}, &ParseError{Reason: errNotObject.Error()}
	}
	if err != nil {
		return State{}, &ParseError{Reason: "embedded state is not valid json", Err: err}
	}
	return state, nil
}

// decodeState decodes a JSON object keeping the order of its top-level keys.
// A repeated key keeps its first position and its last value.
func decodeState(text string) (State, error) {
	dec := json.NewDecoder(strings.NewReader(text))

	tok, err := dec.Token()
	if err != nil {
		return State{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		if json.Valid([]byte(text)) {
			return State{}, errNotObject
		}
		return State{}, fmt.Errorf("expected a json object, got %v", tok)
	}

	state := State{entries: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return State{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return State{}, fmt.Errorf("unexpected object key %v", tok)
		}

		var v any
		if err := dec.Decode(&v); err != nil {
			return State{}, err
		}
		if _, seen := state.entries[key]; !seen {
			state.keys = append(state.keys, key)
		}
		state.entries[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return State{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return State{}, errors.New("trailing data after embedded state")
	}
	return state, nil
}

// FindSummary returns the first element of the first entry's b.summaries list.
func FindSummary(state State) (Summary, bool) {
	entry, ok := state.first(func(m map[string]any) bool {
		b, ok := m["b"].(map[string]any)
		if !ok {
			return false
		}
		_, ok = b["summaries"].([]any)
		return ok
	})
	if !ok {
		return Summary{}, false
	}

	summaries := entry["b"].(map[string]any)["summaries"].([]any)
	if len(summaries) == 0 {
		return Summary{}, false
	}

	var s Summary
	if err := remarshal(summaries[0], &s); err != nil {
		return Summary{}, false
	}
	return s, true
}

// FindAPIKeyHint returns the apiKey query parameter of the first entry carrying a "u" URL.
func FindAPIKeyHint(state State) (string, bool) {
	entry, ok := state.first(func(m map[string]any) bool {
		_, ok := m["u"].(string)
		return ok
	})
	if !ok {
		return "", false
	}

	u, err := url.Parse(entry["u"].(string))
	if err != nil {
		return "", false
	}
	key := u.Query().Get("apiKey")
	if key == "" {
		return "", false
	}
	return key, true
}

// first returns the first top-level mapping matching fn in document order.
func (s State) first(fn func(map[string]any) bool) (map[string]any, bool) {
	for _, k := range s.keys {
		m, ok := s.entries[k].(map[string]any)
		if ok && fn(m) {
			return m, true
		}
	}
	return nil, false
}

func remarshal(in any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
