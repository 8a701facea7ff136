package mcpserver

// DocumentFormatContract describes the Markdown document format that LLM
// consumers should follow when creating documents.
const DocumentFormatContract = `# Brief Document Format

Every document is a Markdown file whose YAML front matter names its model type.

## Structure

` + "```" + `markdown
---
type: post                # REQUIRED - a type registered in the model definitions
id: 1                     # OPTIONAL - value other models reference
title: Hello              # OPTIONAL - falls back to the first heading
---

# Hello

Intro paragraph.

## Summary

Text under a heading that matches a declared section name or alias.
` + "```" + `

## Rules

1. **Front matter comes first.** The ` + "`---`" + ` fences open the file with no leading blank lines.
2. **` + "`type`" + ` is required** and must be one of the defined types.
3. **Declared attributes.** When a definition lists attributes, no other front matter keys
   are accepted and required attributes must be present.
4. **Relationships are key matches.** A ` + "`hasMany`" + ` relationship collects models whose
   foreign key (e.g. ` + "`postId`" + `) equals this model's key; ` + "`belongsTo`" + ` finds the model whose
   referenced key equals this model's foreign key. Numbers compare by value.
5. **Paths** end with ` + "`.md`" + ` and use forward slashes. The model id defaults to the path
   without its extension.
6. **Sections** are headings whose text equals a declared section name or alias,
   ignoring case. A section spans the content up to the next heading of the same
   or higher level.
`
