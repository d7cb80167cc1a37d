package mcpserver

// NoteFormatContract describes the Markdown note format the index
// understands. LLM consumers read it before creating notes.
const NoteFormatContract = `# cleaan Note Format

Every note is a UTF-8 Markdown file in the vault, optionally preceded by YAML
frontmatter.

## Structure

` + "```" + `markdown
---
id: shopping-list        # OPTIONAL - stable note id; defaults to the vault path
title: Shopping list     # OPTIONAL - falls back to the first "# " heading
tags: [home, errands]    # OPTIONAL - YAML list or comma separated string
---

# Shopping list

milk, eggs #groceries
` + "```" + `

## Rules

1. File paths end with ` + "`" + `.md` + "`" + ` and use forward slashes.
2. Tags come from frontmatter first, then inline ` + "`" + `#tags` + "`" + ` in the body.
   Tag ids are the lower-cased name; duplicates are dropped case-insensitively.
3. Search is a case-insensitive substring match over the title and the body
   (frontmatter excluded). A leading ` + "`" + `#` + "`" + ` or ` + "`" + `>` + "`" + ` in a query is ignored.
4. Notes without a title are listed as "New Note"; notes without a body
   show "No content".
5. Ids must be unique across the vault.
`
