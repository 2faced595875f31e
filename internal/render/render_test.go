package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gnituy18/txbind/internal/expr"
	"github.com/gnituy18/txbind/internal/index"
	"github.com/gnituy18/txbind/internal/state"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/tools/txtar"
)

func TestRenderGolden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txtar")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no golden files")
	}

	for _, file := range files {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txtar"), func(t *testing.T) {
			ar, err := txtar.ParseFile(file)
			if err != nil {
				t.Fatal(err)
			}
			// txtar ends every section with a newline, which the parser
			// would keep as a text node at the end of the body.
			sections := map[string]string{}
			for _, f := range ar.Files {
				sections[f.Name] = strings.TrimSuffix(string(f.Data), "\n")
			}

			out, err := New().Render(sections["input.html"])
			if err != nil {
				t.Fatal(err)
			}

			script, doc, ok := strings.Cut(out, "</script>\n")
			if !ok {
				t.Fatalf("output does not start with the index script:\n%s", out)
			}
			if got, want := strings.TrimSpace(doc), strings.TrimSpace(sections["output.html"]); got != want {
				t.Errorf("document:\n%s\nwant:\n%s", got, want)
			}

			ix, err := index.DecodeScript(strings.TrimPrefix(script, "<script>"))
			if err != nil {
				t.Fatal(err)
			}
			got, err := json.Marshal(ix)
			if err != nil {
				t.Fatal(err)
			}
			var want bytes.Buffer
			if err := json.Compact(&want, []byte(sections["index.json"])); err != nil {
				t.Fatal(err)
			}
			if string(got) != want.String() {
				t.Errorf("index:\n%s\nwant:\n%s", got, want.String())
			}
		})
	}
}

func TestCompileIsolatesFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := New(WithLogger(zap.New(core)))

	ctx, err := r.Compile(`<b>{n.x.y}</b><a title="{n.z.w}">{n}</a><script>let n = state(null)</script>`)
	if err != nil {
		t.Fatal(err)
	}

	if len(ctx.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", ctx.Errors)
	}
	if !errors.Is(ctx.Err(), expr.ErrNilProperty) {
		t.Errorf("Err = %v", ctx.Err())
	}

	entries := logs.FilterMessage("binding evaluation failed").All()
	if len(entries) != 2 {
		t.Fatalf("warn logs = %d, want 2", len(entries))
	}
	if loc := entries[0].ContextMap()["location"]; loc != "/html[1]/body[1]/b[1]" {
		t.Errorf("first failure location = %v", loc)
	}
}

func TestCompileEachRenderOwnsItsState(t *testing.T) {
	r := New()
	a, err := r.Compile(`<p>{v}</p><script>let v = state(1)</script>`)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Compile(`<p>{w}</p><script>let w = state(2)</script>`)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := b.States.Lookup("v"); ok {
		t.Error("state leaked between renders")
	}
	if s, _ := b.States.Lookup("w"); s.ID != 0 {
		t.Errorf("second render ids start at %d", s.ID)
	}
	if a.Index == b.Index {
		t.Error("renders share an index")
	}
}

func TestRenderScriptSyntaxError(t *testing.T) {
	_, err := New().Render(`<p>{a}</p><script>let a = state(</script>`)
	if !errors.Is(err, state.ErrScriptSyntax) {
		t.Errorf("error = %v, want ErrScriptSyntax", err)
	}
}

func TestRenderWithoutStates(t *testing.T) {
	out, err := New().Render(`<p>hello</p>`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `JSON.parse("[]")`) || !strings.Contains(out, "<p>hello</p>") {
		t.Errorf("output = %s", out)
	}
}
