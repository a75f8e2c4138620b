package mcpserver

// DocumentFormatContract describes the markdown format of generated
// knowledge documents, for LLM consumers reading or producing them.
const DocumentFormatContract = `# Knowledge Document Format

Every generated markdown document in the knowledge directory follows this
structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title         # REQUIRED - matched against resource titles
source: /resources/file.pdf         # OPTIONAL - where the content came from
type: pdf_chunks                    # OPTIONAL - the ingestion job type
tags:                               # OPTIONAL - YAML list
  - spike-protein
date: 2025-01-15                    # OPTIONAL - ISO-8601 date
resource_id: 3f2a...                # OPTIONAL - back-reference, written by reconciliation
---

## Summary

Extracted summary text in standard Markdown.

## Key Points

- One point per line.
` + "```" + `

## Rules

1. **YAML front matter comes first.** The ` + "`" + `---` + "`" + ` fences must open the file.
2. **` + "`" + `title` + "`" + ` is required.** Reconciliation uses it for fuzzy matching when no
   ` + "`" + `resource_id` + "`" + ` is present.
3. **` + "`" + `resource_id` + "`" + ` is authoritative.** When present it wins over every other
   matching strategy. Reconciliation writes it back into unlinked documents.
4. **The body is hashed.** Linking and change detection use a SHA-256 of the
   body only, so front-matter edits never count as content changes.
5. **File names** are lowercase slugs ending in ` + "`" + `.md` + "`" + `.
6. **Encoding** is UTF-8.
`
