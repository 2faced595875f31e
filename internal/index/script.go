package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNoIndexScript = errors.New("index: no binding index script")

// Variable is the name the embedded script binds the index to; the browser
// runtime reads it.
const Variable = "statePaths"

const (
	scriptPrefix = "const " + Variable + " = JSON.parse(\""
	scriptSuffix = "\");"
)

func (ix *Index) MarshalJSON() ([]byte, error) {
	groups := ix.Groups
	if groups == nil {
		groups = []*Group{}
	}
	return json.Marshal(groups)
}

type wireGroup struct {
	ID          *int       `json:"id"`
	StateNumber *int       `json:"stateNumber"`
	Name        string     `json:"name"`
	StateName   string     `json:"stateName"`
	Call        *int       `json:"call"`
	Paths       []*Binding `json:"paths"`
}

// UnmarshalJSON accepts both the id/name and the older
// stateNumber/stateName group keys. A group without a call position is
// matched by its id.
func (ix *Index) UnmarshalJSON(data []byte) error {
	var groups []wireGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return err
	}

	*ix = *New()
	for _, g := range groups {
		id := NoneID
		switch {
		case g.ID != nil:
			id = *g.ID
		case g.StateNumber != nil:
			id = *g.StateNumber
		}
		name := g.Name
		if name == "" {
			name = g.StateName
		}

		call := id
		if g.Call != nil {
			call = *g.Call
		}

		if len(g.Paths) == 0 {
			ix.Groups = append(ix.Groups, &Group{StateID: id, StateName: name, Call: call})
			continue
		}
		for _, b := range g.Paths {
			if b.Kind == "" {
				b.Kind = KindText
			}
			ix.Add(id, name, b)
		}
		ix.Group(id).Call = call
	}
	return nil
}

// Script renders ix as the inline script that leads a transformed document.
func Script(ix *Index) (string, error) {
	data, err := json.Marshal(ix)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<script>\n  ")
	b.WriteString(scriptPrefix)
	b.WriteString(escape(string(data)))
	b.WriteString(scriptSuffix)
	b.WriteString("\n</script>\n")
	return b.String(), nil
}

// escape makes s safe inside a double-quoted JavaScript string. json.Marshal
// has already escaped <, > and & so the payload cannot close the script.
func escape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return r.Replace(s)
}

// DecodeScript reverses Script given the source text of the script element.
func DecodeScript(src string) (*Index, error) {
	src = strings.TrimSpace(src)
	if !strings.HasPrefix(src, scriptPrefix) || !strings.HasSuffix(src, scriptSuffix) {
		return nil, ErrNoIndexScript
	}

	lit := strings.TrimSuffix(strings.TrimPrefix(src, scriptPrefix), scriptSuffix)
	data, err := strconv.Unquote(`"` + lit + `"`)
	if err != nil {
		return nil, fmt.Errorf("index: bad script literal: %w", err)
	}

	ix := New()
	if err := json.Unmarshal([]byte(data), ix); err != nil {
		return nil, fmt.Errorf("index: bad script payload: %w", err)
	}
	return ix, nil
}

// Extract finds the index script in a parsed, transformed document and
// returns the decoded index together with the script element.
func Extract(doc *html.Node) (*Index, *html.Node, error) {
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.DataAtom != atom.Script || n.FirstChild == nil {
			continue
		}
		if n.FirstChild.Type != html.TextNode || !strings.Contains(n.FirstChild.Data, scriptPrefix) {
			continue
		}
		ix, err := DecodeScript(n.FirstChild.Data)
		if err != nil {
			return nil, nil, err
		}
		return ix, n, nil
	}
	return nil, nil, ErrNoIndexScript
}
