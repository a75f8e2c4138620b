package frontmatter

import (
	"strings"
	"testing"
	"time"
)

const sampleDoc = `---
title: Spike Protein Toxicity
tags:
  - spike-protein
  - research
date: 2025-03-12
source: /resources/spike.pdf
---

## Summary

The spike protein binds ACE2 receptors.
`

func TestParse_WellFormed(t *testing.T) {
	doc := Parse([]byte(sampleDoc))

	if doc.Title() != "Spike Protein Toxicity" {
		t.Errorf("title = %q", doc.Title())
	}
	if doc.Source() != "/resources/spike.pdf" {
		t.Errorf("source = %q", doc.Source())
	}
	tags := doc.Tags()
	if len(tags) != 2 || tags[0] != "spike-protein" {
		t.Errorf("tags = %v", tags)
	}
	date, ok := doc.Date()
	if !ok {
		t.Fatal("date should parse")
	}
	if y, m, d := date.Date(); y != 2025 || m != time.March || d != 12 {
		t.Errorf("date = %v", date)
	}
	if !strings.HasPrefix(doc.Body, "## Summary") {
		t.Errorf("body should start at the first heading, got %q", doc.Body[:20])
	}
}

func TestParse_NoFrontMatter(t *testing.T) {
	content := "# Just a heading\n\nBody text.\n"
	doc := Parse([]byte(content))
	if doc.Body != content {
		t.Errorf("body should be the whole content, got %q", doc.Body)
	}
	if doc.Title() != "" || doc.ResourceID() != "" {
		t.Error("missing front matter should yield empty fields")
	}
}

func TestParse_MalformedYAMLFallsBackToBody(t *testing.T) {
	content := "---\ntitle: [unclosed\n---\n\nBody.\n"
	doc := Parse([]byte(content))
	if doc.Body != content {
		t.Errorf("malformed yaml should keep full content as body, got %q", doc.Body)
	}
	if len(doc.Meta) != 0 {
		t.Errorf("malformed yaml should yield empty meta, got %v", doc.Meta)
	}
}

func TestParse_UnterminatedFrontMatter(t *testing.T) {
	content := "---\ntitle: dangling\n\nno closing fence\n"
	doc := Parse([]byte(content))
	if doc.Body != content {
		t.Errorf("unterminated front matter should keep full content as body")
	}
}

func TestWithResourceID_BodyHashStable(t *testing.T) {
	before := BodyHash([]byte(sampleDoc))

	updated, err := WithResourceID([]byte(sampleDoc), "res-123")
	if err != nil {
		t.Fatal(err)
	}

	after := BodyHash(updated)
	if before != after {
		t.Errorf("body hash changed after resource_id injection: %s vs %s", before, after)
	}

	doc := Parse(updated)
	if doc.ResourceID() != "res-123" {
		t.Errorf("resource_id = %q, want res-123", doc.ResourceID())
	}
	if doc.Title() != "Spike Protein Toxicity" {
		t.Errorf("title lost during rewrite: %q", doc.Title())
	}
}

func TestCompose_RoundTrip(t *testing.T) {
	meta := map[string]interface{}{
		"title":       "Gut Dysbiosis Notes",
		"resource_id": "res-9",
		"tags":        []string{"gut"},
	}
	body := "## Summary\n\nBifidobacterium levels decline.\n"

	data, err := Compose(meta, body)
	if err != nil {
		t.Fatal(err)
	}

	doc := Parse(data)
	if doc.Title() != "Gut Dysbiosis Notes" {
		t.Errorf("title = %q", doc.Title())
	}
	if doc.ResourceID() != "res-9" {
		t.Errorf("resource_id = %q", doc.ResourceID())
	}
	if doc.Body != body {
		t.Errorf("body = %q, want %q", doc.Body, body)
	}
}

func TestDate_StringLayouts(t *testing.T) {
	doc := &Doc{Meta: map[string]interface{}{"date": "2024-11-02"}}
	if _, ok := doc.Date(); !ok {
		t.Error("plain date string should parse")
	}
	doc = &Doc{Meta: map[string]interface{}{"date": "not a date"}}
	if _, ok := doc.Date(); ok {
		t.Error("garbage date should not parse")
	}
}
