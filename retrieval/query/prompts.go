package query

// Prompt outputs use '^' as the separator because keywords and subqueries
// routinely contain commas.

const extractKeywordsPrompt = `You are extracting search keywords from a question.

Identify up to {max_keywords} keywords in the question below. Keywords are
the entities, concepts and qualifiers a person would search for to answer
the question. Respond with the keywords only, separated by '^'. Do not
number them or add any other text.

<question>
{text}
</question>
`

const extractSynonymsPrompt = `You are broadening search keywords with synonyms.

Identify up to {max_keywords} keywords in the question below, expanding
each with common synonyms, abbreviations and alternate spellings a
document might use instead. Respond with the keywords and synonyms only,
separated by '^'. Do not number them or add any other text.

<question>
{text}
</question>
`

const decomposeQueryPrompt = `You are decomposing a complex question into simpler subqueries.

If the question below asks about multiple distinct things, split it into
at most {max_subqueries} self-contained subqueries that can be answered
independently. If the question is already simple, return it unchanged.
Respond with one subquery per line and no other text.

<question>
{text}
</question>
`
