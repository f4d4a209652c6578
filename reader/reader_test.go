package reader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadAll(t *testing.T) {
	assert := assert.New(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "Plain text document.")
	writeFile(t, filepath.Join(root, "b.json"), `{"Question": "What is Go?", "answer": "A language."}`)
	writeFile(t, filepath.Join(root, "c.md"), "# Title\n\nSome markdown.")
	writeFile(t, filepath.Join(root, "empty.txt"), "   \n")
	writeFile(t, filepath.Join(root, "image.png"), "not text")
	writeFile(t, filepath.Join(root, "broken.json"), `{"question": `)
	writeFile(t, filepath.Join(root, "nested", "d.txt"), "Nested document.")

	docs, err := New().ReadAll(context.Background(), root)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	if !assert.Len(docs, 4) {
		return
	}

	assert.Equal("a.txt", docs[0].Filename)
	assert.Equal(FileTypeText, docs[0].Type)

	assert.Equal("b.json", docs[1].Filename)
	assert.Equal(FileTypeJSON, docs[1].Type)
	assert.Equal("Q: What is Go?\nA: A language.", docs[1].Content)

	assert.Equal("c.md", docs[2].Filename)
	assert.Equal(FileTypeMarkdown, docs[2].Type)

	assert.Equal("d.txt", docs[3].Filename)
	assert.Equal(filepath.Join(root, "nested", "d.txt"), docs[3].Path)
}

func TestReadAllOptions(t *testing.T) {
	assert := assert.New(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "Plain text document.")
	writeFile(t, filepath.Join(root, "c.md"), "Some markdown.")
	writeFile(t, filepath.Join(root, "nested", "d.md"), "Nested markdown.")

	r := New(WithExtensions("md"), WithRecursive(false))

	docs, err := r.ReadAll(context.Background(), root)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	if assert.Len(docs, 1) {
		assert.Equal("c.md", docs[0].Filename)
	}
}

func TestReadAllInvalidRoot(t *testing.T) {
	assert := assert.New(t)

	_, err := New().ReadAll(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(err, ErrInvalidRoot)

	file := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, file, "content")

	_, err = New().ReadAll(context.Background(), file)
	assert.ErrorIs(err, ErrInvalidRoot)
}

func TestRenderJSON(t *testing.T) {
	assert := assert.New(t)

	records := []any{
		map[string]any{"question": "Q1?", "answer": "A1."},
		map[string]any{"QUESTION": "Q2?", "Answer": "A2."},
	}

	content, err := RenderJSON(records)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("Q: Q1?\nA: A1.\n\nQ: Q2?\nA: A2.", content)

	content, err = RenderJSON(map[string]any{"title": "doc"})
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("{\n  \"title\": \"doc\"\n}", content)
}

func TestFlattenMetadata(t *testing.T) {
	assert := assert.New(t)

	flat := FlattenMetadata(map[string]any{
		"source": "a.txt",
		"tags":   []any{"go", "rag"},
		"extra":  map[string]any{"k": "v"},
		"page":   3,
		"none":   nil,
	})

	assert.Equal("a.txt", flat["source"])
	assert.Equal("go, rag", flat["tags"])
	assert.Equal(`{"k":"v"}`, flat["extra"])
	assert.Equal("3", flat["page"])
	assert.Equal("", flat["none"])
}

func TestReadPDF(t *testing.T) {
	assert := assert.New(t)

	doc, err := New().Read(filepath.Join("testdata", "two_pages.pdf"))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(FileTypePDF, doc.Type)
	assert.Equal("two_pages.pdf", doc.Filename)
	assert.Equal("Orchards line the northern valley.\n\nCider presses open in October.", doc.Content)
}

func TestJoinPages(t *testing.T) {
	assert := assert.New(t)

	pages := []string{
		"  first page\n\n\n\nstill first ",
		" \n ",
		"second page\n \n\nend",
	}

	assert.Equal("first page\n\nstill first\n\nsecond page\n\nend", joinPages(pages))
	assert.Equal("", joinPages(nil))
}

// corruptPDF has a valid header, xref and trailer, but object 1 points
// at bytes that do not parse as an object.
func corruptPDF() string {
	body := "%PDF-1.4\ngarbage garbage garbage\n"
	xref := len(body)

	return body +
		"xref\n0 2\n" +
		"0000000000 65535 f \n" +
		"0000000009 00000 n \n" +
		"trailer\n<< /Size 2 /Root 1 0 R >>\n" +
		fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xref)
}

func TestReadAllSkipsMalformedPDF(t *testing.T) {
	assert := assert.New(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken.pdf"), corruptPDF())
	writeFile(t, filepath.Join(root, "ok.txt"), "Still readable.")

	_, err := New().Read(filepath.Join(root, "broken.pdf"))
	assert.Error(err)

	var docs []SourceDocument
	assert.NotPanics(func() {
		docs, err = New().ReadAll(context.Background(), root)
	})

	if !assert.NoError(err) {
		return
	}

	if assert.Len(docs, 1) {
		assert.Equal("ok.txt", docs[0].Filename)
		assert.Equal("Still readable.", docs[0].Content)
	}
}
