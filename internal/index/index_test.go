package index

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/gnituy18/txbind/internal/dom"
	"github.com/gnituy18/txbind/internal/state"
)

func build(t *testing.T, page string) *Index {
	t.Helper()
	doc, err := dom.Parse(page)
	if err != nil {
		t.Fatal(err)
	}
	table, err := state.Scan(dom.Scripts(doc))
	if err != nil {
		t.Fatal(err)
	}
	return Build(doc, table)
}

func TestBuildScenario(t *testing.T) {
	ix := build(t, `<span>{count}</span><script>let count = state(1)</script>`)

	if len(ix.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(ix.Groups))
	}
	g := ix.Groups[0]
	if g.StateID != 0 || g.StateName != "count" || len(g.Bindings) != 1 {
		t.Fatalf("group = %+v", g)
	}
	b := g.Bindings[0]
	want := Binding{Location: "/html[1]/body[1]/span[1]", Kind: KindText, Template: "{count}"}
	if !reflect.DeepEqual(*b, want) {
		t.Errorf("binding = %+v, want %+v", *b, want)
	}
}

func TestBuildSharedAttributeBinding(t *testing.T) {
	ix := build(t, `<a href="/{a}/{b}">x</a><script>let a = state("p"); let b = state("q")</script>`)

	if n := len(ix.Unique()); n != 1 {
		t.Fatalf("unique bindings = %d, want 1", n)
	}
	ga, gb := ix.Group(0), ix.Group(1)
	if ga == nil || gb == nil {
		t.Fatalf("groups = %+v", ix.Groups)
	}
	if len(ga.Bindings) != 1 || len(gb.Bindings) != 1 || ga.Bindings[0] != gb.Bindings[0] {
		t.Error("both groups should reference the same binding")
	}
	if b := ga.Bindings[0]; b.Kind != KindAttribute || b.AttributeName != "href" || b.Template != "/{a}/{b}" {
		t.Errorf("binding = %+v", *b)
	}
}

func TestBuildFanOut(t *testing.T) {
	ix := build(t, `<p>{a + b}</p><script>let a = state(1); let b = state(2)</script>`)
	if len(ix.Group(0).Bindings) != 1 || len(ix.Group(1).Bindings) != 1 {
		t.Errorf("groups = %+v", ix.Groups)
	}
}

func TestBuildNoneGroup(t *testing.T) {
	ix := build(t, `<p>{unknownVar}</p><i>{count}</i><script>let count = state(1)</script>`)

	if len(ix.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(ix.Groups))
	}
	none := ix.Groups[1]
	if none.StateID != NoneID || none.StateName != NoneName {
		t.Fatalf("last group = %+v, want NONE", none)
	}
	if len(none.Bindings) != 1 || none.Bindings[0].Location != "/html[1]/body[1]/p[1]" {
		t.Errorf("NONE bindings = %+v", none.Bindings)
	}
	for _, b := range ix.Group(0).Bindings {
		if b.Template == "{unknownVar}" {
			t.Error("undeclared placeholder filed under a state group")
		}
	}
}

func TestBuildDocumentOrder(t *testing.T) {
	ix := build(t, `<div title="{n}" class="c{n}">{n}<p>{n}</p></div><b>{n}</b>
<script>let n = state(0)</script>`)

	got := []string{}
	for _, b := range ix.Group(0).Bindings {
		got = append(got, b.Location+" "+string(b.Kind)+" "+b.AttributeName)
	}
	want := []string{
		"/html[1]/body[1]/div[1] TEXT ",
		"/html[1]/body[1]/div[1] ATTRIBUTE title",
		"/html[1]/body[1]/div[1] ATTRIBUTE class",
		"/html[1]/body[1]/div[1]/p[1] TEXT ",
		"/html[1]/body[1]/b[1] TEXT ",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("order:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestBuildIgnoresScripts(t *testing.T) {
	ix := build(t, `<p>plain</p><script>let n = state(0); const o = {n}</script>`)
	if len(ix.Groups) != 0 {
		t.Errorf("groups = %+v", ix.Groups)
	}
}

func TestScript(t *testing.T) {
	ix := build(t, `<p title="&lt;/script&gt; say &quot;{msg}&quot;">{msg}</p><script>let msg = state("x")</script>`)

	tag, err := Script(ix)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(tag, "</script>") != 1 {
		t.Errorf("payload closes the script early: %s", tag)
	}

	src := strings.TrimSuffix(strings.TrimPrefix(tag, "<script>"), "</script>\n")
	got, err := DecodeScript(src)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(ix)
	b, _ := json.Marshal(got)
	if string(a) != string(b) {
		t.Errorf("decoded index = %s, want %s", b, a)
	}
	if len(got.Unique()) != 2 {
		t.Errorf("unique = %d, want 2", len(got.Unique()))
	}
}

func TestUnmarshalLegacyKeys(t *testing.T) {
	var ix Index
	err := json.Unmarshal([]byte(`[{"stateNumber":2,"stateName":"c","paths":[{"location":"/html[1]/body[1]/p[1]","value":"{c}"}]}]`), &ix)
	if err != nil {
		t.Fatal(err)
	}
	g := ix.Group(2)
	if g == nil || g.StateName != "c" || g.Bindings[0].Kind != KindText || g.Call != 2 {
		t.Errorf("index = %+v", ix.Groups)
	}
}

func TestBuildCallPositions(t *testing.T) {
	ix := build(t, `<p>{count}</p><i>{nope}</i><script>let items = state([1, 2]); let count = state(0)</script>`)

	g := ix.Group(0)
	if g == nil || g.StateName != "count" || g.Call != 1 {
		t.Fatalf("count group = %+v", g)
	}
	if none := ix.Group(NoneID); none == nil || none.Call != NoneID {
		t.Errorf("NONE group = %+v", none)
	}

	data, err := json.Marshal(ix)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"id":0,"name":"count","call":1,`) {
		t.Errorf("index = %s", data)
	}

	var back Index
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Group(0).Call != 1 {
		t.Errorf("decoded call = %d", back.Group(0).Call)
	}
}

func TestBuildTextParts(t *testing.T) {
	ix := build(t, `<p>a {x}<b>y</b> c</p><h1>{x}</h1><script>let x = state(1)</script>`)

	bs := ix.Group(0).Bindings
	if len(bs) != 2 {
		t.Fatalf("bindings = %d", len(bs))
	}
	if bs[0].Template != "a {x} c" || !reflect.DeepEqual(bs[0].Parts, []string{"a {x}", " c"}) {
		t.Errorf("split text binding = %+v", *bs[0])
	}
	if bs[1].Parts != nil {
		t.Errorf("single text binding has parts %q", bs[1].Parts)
	}
}

func TestDecodeScriptRejectsOtherScripts(t *testing.T) {
	if _, err := DecodeScript(`console.log(1)`); !errors.Is(err, ErrNoIndexScript) {
		t.Errorf("error = %v", err)
	}
}
